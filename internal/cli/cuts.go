package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alnah/transcribe-long/internal/format"
	"github.com/alnah/transcribe-long/internal/silence"
)

// cutsFlags holds the cuts command flags.
type cutsFlags struct {
	every         float64
	duration      float64
	window        float64
	startAt       float64
	stopBeforeEnd float64
	digits        int
	format        string
}

// CutsCmd creates the cuts command: choose cut points from an ffmpeg
// silencedetect log without touching any audio.
func CutsCmd(env *Env) *cobra.Command {
	var f cutsFlags

	cmd := &cobra.Command{
		Use:   "cuts <silence-log>",
		Short: "Choose cut points from an ffmpeg silencedetect log",
		Long: `Choose one silence midpoint near every --every seconds from a log produced by

  ffmpeg -i input -af silencedetect=noise=-30dB:d=0.5 -f null - 2> silence.log

Use "-" to read the log from stdin. Cuts are printed on stdout; a summary
goes to stderr.`,
		Example: `  transcribe-long cuts silence.log --every 600 --duration 3600
  transcribe-long cuts silence.log --format lines --window 0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCuts(env, cmd.InOrStdin(), args[0], f, cmd.Flags().Changed)
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&f.every, "every", 1200, "Target spacing between cuts in seconds")
	flags.Float64Var(&f.duration, "duration", 0, "Media duration in seconds (default: last silence + --every)")
	flags.Float64Var(&f.window, "window", 90, "Max distance from a target in seconds (0 disables)")
	flags.Float64Var(&f.startAt, "start-at", 0, "First target in seconds (default: --every)")
	flags.Float64Var(&f.stopBeforeEnd, "stop-before-end", 30, "No target closer than this to the end, in seconds")
	flags.IntVar(&f.digits, "digits", silence.DefaultDigits, "Decimal digits in printed times")
	flags.StringVar(&f.format, "format", string(silence.FormatSegmentTimes), "Output format: segment_times, lines, jsonlike")

	return cmd
}

func runCuts(env *Env, stdin io.Reader, logPath string, f cutsFlags, changed func(string) bool) error {
	outFormat, err := silence.ParseFormat(f.format)
	if err != nil {
		return err
	}

	r := stdin
	if logPath != "-" {
		// #nosec G304 -- user-specified log file
		file, err := os.Open(logPath)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: %s", ErrFileNotFound, logPath)
			}
			return fmt.Errorf("cannot open silence log: %w", err)
		}
		defer func() { _ = file.Close() }()
		r = file
	}

	intervals, stats, err := silence.ParseLogStats(r)
	if err != nil {
		return err
	}
	if n := stats.Skipped(); n > 0 {
		_, _ = fmt.Fprintf(env.Stderr, "Warning: skipped %d malformed silence entries\n", n)
	}
	if len(intervals) == 0 {
		return fmt.Errorf("%w in %s", ErrNoSilences, logPath)
	}

	params := silence.Params{
		Every:         f.every,
		StopBeforeEnd: f.stopBeforeEnd,
	}
	if changed("duration") {
		params.Duration = silence.Some(f.duration)
	}
	if changed("start-at") {
		params.StartAt = silence.Some(f.startAt)
	}
	window := "none"
	if f.window > 0 {
		params.Window = silence.Some(f.window)
		window = format.Float(f.window, f.digits) + "s"
	}

	cuts, err := silence.SelectCuts(silence.Mids(intervals), params)
	if err != nil {
		return err
	}
	if len(cuts) == 0 {
		return fmt.Errorf("%w: %d silences, every %ss", ErrNoCuts, len(intervals), format.Float(f.every, f.digits))
	}

	if err := silence.Write(env.Stdout, cuts, outFormat, f.digits); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(env.Stderr, "silences: %d, cuts: %d, window: %s\n", len(intervals), len(cuts), window)
	return nil
}
