package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alnah/transcribe-long/internal/speaker"
	"github.com/alnah/transcribe-long/internal/workdir"
)

// deriveLabeledPath converts a transcript path to its labeled output path.
// Example: "transcript.txt" -> "transcript.labeled.txt"
func deriveLabeledPath(transcript string) string {
	return strings.TrimSuffix(transcript, filepath.Ext(transcript)) + ".labeled.txt"
}

// LabelCmd creates the label command.
func LabelCmd(env *Env) *cobra.Command {
	var (
		mapping string
		output  string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "label <transcript>",
		Short: "Replace chunk-local speaker labels with names",
		Long: `Replace speaker labels such as "0:A" at the start of transcript lines with
the names given in a YAML mapping:

  Alice: ["0:A", "2:B"]
  Bob: "1:A"

By default the mapping is the speakers.yaml written next to the transcript.`,
		Example: `  transcribe-long label .transcribe/meeting/<sha256>/transcript.txt
  transcribe-long label transcript.txt --mapping names.yaml -o named.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLabel(env, args[0], mapping, output, force)
		},
	}

	cmd.Flags().StringVar(&mapping, "mapping", "", "Speaker mapping file (default: speakers.yaml next to the transcript)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: <transcript>.labeled.txt)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite the output file")

	return cmd
}

func runLabel(env *Env, transcript, mapping, output string, force bool) error {
	// #nosec G304 -- user-specified transcript
	data, err := os.ReadFile(transcript)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, transcript)
		}
		return fmt.Errorf("cannot read transcript: %w", err)
	}

	if mapping == "" {
		mapping = filepath.Join(filepath.Dir(transcript), workdir.SpeakersFile)
	}
	m, err := speaker.LoadMapping(mapping)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, mapping)
		}
		return err
	}

	if output == "" {
		output = deriveLabeledPath(transcript)
	}
	labeled := speaker.ApplyMapping(string(data), m)
	if force {
		err = workdir.WriteFileAtomic(output, []byte(labeled))
	} else {
		err = writeFileAtomic(output, labeled)
	}
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(env.Stderr, "Labeled %d speakers: %s\n", len(m.Names()), output)
	return nil
}
