package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/alnah/transcribe-long/internal/watch"
)

// watchFlags holds the watch-only flags.
type watchFlags struct {
	files    int
	existing bool
	settle   time.Duration
}

// WatchCmd creates the watch command.
func WatchCmd(env *Env) *cobra.Command {
	var (
		f  transcribeFlags
		wf watchFlags
	)

	cmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: "Transcribe recordings as they appear in a directory",
		Long: `Watch a directory and transcribe every new recording once it has stopped
changing for --settle. Each recording runs exactly like the transcribe
command with the same flags. Press Ctrl+C to stop; recordings in progress
finish their in-flight chunks first.`,
		Example: `  transcribe-long watch ~/Recordings --mode diarize
  transcribe-long watch ./inbox --existing --files 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), env, args[0], f, wf, cmd.Flags().Changed)
		},
	}

	addTranscribeFlags(cmd, &f)
	cmd.Flags().IntVar(&wf.files, "files", 1, "Recordings processed at the same time")
	cmd.Flags().BoolVar(&wf.existing, "existing", false, "Also transcribe recordings already in the directory")
	cmd.Flags().DurationVar(&wf.settle, "settle", 2*time.Second, "Time a file must stay unchanged before it is processed")

	return cmd
}

func runWatch(ctx context.Context, env *Env, dir string, f transcribeFlags, wf watchFlags, changed func(string) bool) error {
	if env.Getenv(EnvOpenAIAPIKey) == "" {
		return fmt.Errorf("%w: %s (set it with: export %s=sk-...)", ErrAPIKeyMissing, EnvOpenAIAPIKey, EnvOpenAIAPIKey)
	}

	ffmpegPath, err := env.FFmpegResolver.Resolve()
	if err != nil {
		return err
	}
	env.FFmpegResolver.CheckVersion(ctx, ffmpegPath, env.Stderr)

	handler := func(ctx context.Context, path string) error {
		j, err := prepareJob(env, path, f, changed)
		if err != nil {
			return err
		}
		return j.run(ctx, env, ffmpegPath, filepath.Base(path))
	}

	w, err := watch.New(dir, handler,
		watch.WithParallel(wf.files),
		watch.WithExisting(wf.existing),
		watch.WithSettle(wf.settle),
		watch.WithOnStart(func(path string) {
			statusPrinter(env.Stderr, filepath.Base(path))("New recording")
		}),
		watch.WithOnDone(func(path string, err error) {
			status := statusPrinter(env.Stderr, filepath.Base(path))
			if err != nil {
				status("Failed: " + err.Error())
			}
		}),
	)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(env.Stderr, "Watching %s (Ctrl+C to stop)...\n", dir)
	err = w.Run(ctx)
	if errors.Is(err, context.Canceled) {
		_, _ = fmt.Fprintln(env.Stderr, "Stopped watching.")
		return nil
	}
	return err
}
