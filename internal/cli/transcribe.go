package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/alnah/transcribe-long/internal/audio"
	"github.com/alnah/transcribe-long/internal/config"
	"github.com/alnah/transcribe-long/internal/diarize"
	"github.com/alnah/transcribe-long/internal/pipeline"
	"github.com/alnah/transcribe-long/internal/reformat"
	"github.com/alnah/transcribe-long/internal/silence"
	"github.com/alnah/transcribe-long/internal/transcribe"
	"github.com/alnah/transcribe-long/internal/watch"
	"github.com/alnah/transcribe-long/internal/workdir"
)

// Environment variable names for API keys.
const EnvOpenAIAPIKey = "OPENAI_API_KEY"

// rttmAuto is the --rttm value meaning "<input stem>.rttm next to the input".
const rttmAuto = "auto"

// supportedFormatsList returns a sorted, comma-separated list for error messages.
func supportedFormatsList() string {
	formats := make([]string, 0, len(watch.DefaultExtensions))
	for _, ext := range watch.DefaultExtensions {
		formats = append(formats, strings.TrimPrefix(ext, "."))
	}
	slices.Sort(formats)
	return strings.Join(formats, ", ")
}

// clampParallel constrains parallel request count to valid range [1, MaxRecommendedParallel].
func clampParallel(n int) int {
	if n < 1 {
		return 1
	}
	if n > transcribe.MaxRecommendedParallel {
		return transcribe.MaxRecommendedParallel
	}
	return n
}

// transcribeFlags holds the raw flag values shared by transcribe and watch.
type transcribeFlags struct {
	mode          string
	model         string
	language      string
	prompt        string
	jobs          int
	every         float64
	window        float64
	stopBeforeEnd float64
	outputDir     string
	rttm          string
	diarizerCmd   string
	reformat      bool
	provider      string
	reformatModel string
}

func addTranscribeFlags(cmd *cobra.Command, f *transcribeFlags) {
	flags := cmd.Flags()
	flags.StringVarP(&f.mode, "mode", "m", transcribe.ModePlain.String(), "Transcription mode: plain, words, diarize")
	flags.StringVar(&f.model, "model", "", "Transcription model (default depends on --mode)")
	flags.StringVarP(&f.language, "language", "l", "", "Audio language (ISO 639-1 code, e.g., en, fr)")
	flags.StringVar(&f.prompt, "prompt", "", "Context for the transcription model (names, vocabulary)")
	flags.IntVarP(&f.jobs, "jobs", "j", config.DefaultTranscriptionJobs, "Max concurrent transcription requests (1-10)")
	flags.Float64Var(&f.every, "every", config.DefaultSplitEvery, "Target chunk length in seconds")
	flags.Float64Var(&f.window, "window", config.DefaultSplitWindow, "Cut search window in seconds (0 disables)")
	flags.Float64Var(&f.stopBeforeEnd, "stop-before-end", config.DefaultStopBeforeEnd, "No cut closer than this to the end, in seconds")
	flags.StringVarP(&f.outputDir, "output-dir", "o", "", "Root of working directories (default: "+config.DefaultOutputDir+")")
	flags.StringVar(&f.rttm, "rttm", "", "Align words with speakers from an RTTM file (words mode; bare flag: <input>.rttm)")
	flags.Lookup("rttm").NoOptDefVal = rttmAuto
	flags.StringVar(&f.diarizerCmd, "diarizer-cmd", "", "Command printing RTTM for "+diarize.AudioPlaceholder+" (words mode)")
	flags.BoolVar(&f.reformat, "reformat", false, "Reformat the transcript into paragraphs with an LLM")
	flags.StringVar(&f.provider, "provider", "", "LLM provider for --reformat: openai, deepseek")
	flags.StringVar(&f.reformatModel, "reformat-model", "", "Chat model for --reformat (default depends on --provider)")
}

// job is one validated input, ready to run once ffmpeg is known.
type job struct {
	input       string
	dir         workdir.Dir
	cfg         config.Config
	configPath  string
	opts        transcribe.Options
	openaiKey   string
	reformat    bool
	provider    reformat.Provider
	reformatKey string
	rttm        string
	diarizerCmd []string
}

// applyFlags overlays explicitly set flags on cfg.
func applyFlags(cfg config.Config, f transcribeFlags, changed func(string) bool) config.Config {
	if changed("model") {
		cfg.TranscriptionModel = f.model
	}
	if changed("jobs") {
		cfg.TranscriptionJobs = f.jobs
	}
	if changed("every") {
		cfg.SplitEverySeconds = f.every
	}
	if changed("window") {
		cfg.SplitWindowSeconds = f.window
	}
	if changed("stop-before-end") {
		cfg.StopBeforeEndSeconds = f.stopBeforeEnd
	}
	if changed("output-dir") {
		cfg.OutputDir = config.ExpandPath(f.outputDir)
	}
	if changed("provider") {
		cfg.ReformatProvider = f.provider
	}
	if changed("reformat-model") {
		cfg.ReformatModel = f.reformatModel
	}
	return cfg
}

// prepareJob validates input and resolves its settings.
// Validation order: file exists -> format -> mode -> config -> diarizer -> API keys
func prepareJob(env *Env, input string, f transcribeFlags, changed func(string) bool) (job, error) {
	j := job{input: input}

	// 1. File exists
	info, err := os.Stat(input)
	if err != nil {
		if os.IsNotExist(err) {
			return j, fmt.Errorf("%w: %s", ErrFileNotFound, input)
		}
		return j, fmt.Errorf("cannot access input file: %w", err)
	}
	if info.IsDir() {
		return j, fmt.Errorf("%w: %s is a directory", ErrFileNotFound, input)
	}

	// 2. Format supported
	ext := strings.ToLower(filepath.Ext(input))
	if !slices.Contains(watch.DefaultExtensions, ext) {
		return j, fmt.Errorf("unsupported format %q (supported: %s): %w",
			ext, supportedFormatsList(), ErrUnsupportedFormat)
	}

	// 3. Mode
	mode, err := transcribe.ParseMode(f.mode)
	if err != nil {
		return j, err
	}

	// 4. Config: peer of the input, then its working directory, then cwd.
	root := config.DefaultOutputDir
	if v := env.Getenv(config.EnvOutputDir); v != "" {
		root = v
	}
	if changed("output-dir") {
		root = f.outputDir
	}
	root = config.ExpandPath(root)
	dir, err := workdir.Derive(input, root)
	if err != nil {
		return j, err
	}
	cfg, path, err := env.ConfigLoader.Load(env.Getenv, filepath.Dir(input), dir.Path, ".")
	if err != nil {
		return j, err
	}
	cfg = applyFlags(cfg, f, changed)
	if err := cfg.Validate(); err != nil {
		return j, err
	}
	if cfg.OutputDir != "" && cfg.OutputDir != root {
		dir = dir.Rebase(cfg.OutputDir)
	}
	j.dir, j.cfg, j.configPath = dir, cfg, path
	j.opts = transcribe.Options{
		Mode:     mode,
		Model:    cfg.TranscriptionModel,
		Prompt:   f.prompt,
		Language: f.language,
	}

	// 5. Diarizer only aligns word timestamps.
	if f.rttm != "" && f.diarizerCmd != "" {
		return j, fmt.Errorf("--rttm and --diarizer-cmd: %w", ErrIncompatibleFlags)
	}
	if (f.rttm != "" || f.diarizerCmd != "") && mode != transcribe.ModeWords {
		return j, fmt.Errorf("--rttm and --diarizer-cmd need --mode words, got %s: %w", mode, ErrIncompatibleFlags)
	}
	j.rttm = f.rttm
	if j.rttm == rttmAuto {
		j.rttm = strings.TrimSuffix(input, filepath.Ext(input)) + ".rttm"
	}
	argv, err := shellquote.Split(f.diarizerCmd)
	if err != nil {
		return j, fmt.Errorf("--diarizer-cmd: %v: %w", err, ErrInvalidFlag)
	}
	j.diarizerCmd = argv

	// 6. API keys
	j.openaiKey = env.Getenv(EnvOpenAIAPIKey)
	if j.openaiKey == "" {
		return j, fmt.Errorf("%w: %s (set it with: export %s=sk-...)", ErrAPIKeyMissing, EnvOpenAIAPIKey, EnvOpenAIAPIKey)
	}
	if f.reformat {
		provider, err := reformat.ParseProvider(cfg.ReformatProvider)
		if err != nil {
			return j, err
		}
		key := env.Getenv(provider.APIKeyEnv())
		if key == "" {
			return j, fmt.Errorf("%w: %s (set it with: export %s=sk-...)", ErrAPIKeyMissing, provider.APIKeyEnv(), provider.APIKeyEnv())
		}
		j.reformat, j.provider, j.reformatKey = true, provider, key
	}
	return j, nil
}

// newRunner builds the pipeline for j. prefix tags output lines when several
// inputs run at once.
func (j job) newRunner(env *Env, ffmpegPath, prefix string) (*pipeline.Runner, error) {
	status := statusPrinter(env.Stderr, prefix)

	window := silence.Optional{}
	if j.cfg.SplitWindowSeconds > 0 {
		window = silence.Some(j.cfg.SplitWindowSeconds)
	}
	seg := audio.NewSegmenter(
		env.ProcessorFactory.NewProcessor(ffmpegPath, audio.WarnFunc(status)),
		audio.WithEvery(j.cfg.SplitEverySeconds),
		audio.WithWindow(window),
		audio.WithStopBeforeEnd(j.cfg.StopBeforeEndSeconds),
	)

	opts := []pipeline.Option{
		pipeline.WithParallel(clampParallel(j.cfg.TranscriptionJobs)),
		pipeline.WithProgress(progressPrinter(env.Stderr, prefix)),
		pipeline.WithStatus(status),
		pipeline.WithNow(env.Now),
	}

	switch {
	case len(j.diarizerCmd) > 0:
		d, err := env.DiarizerFactory.NewCommandDiarizer(j.diarizerCmd)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithDiarizer(d))
	case j.rttm != "":
		opts = append(opts, pipeline.WithDiarizer(env.DiarizerFactory.NewRTTMDiarizer(j.rttm)))
	}

	if j.reformat {
		r, err := env.ReformatterFactory.NewReformatter(j.provider, j.reformatKey, j.cfg.ReformatModel,
			func(current, total int) {
				status(fmt.Sprintf("  Reformatting part %d/%d...", current, total))
			})
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithReformatter(r))
	}

	svc := env.TranscriberFactory.NewTranscriber(j.openaiKey)
	return pipeline.NewRunner(seg, svc, j.opts, opts...), nil
}

// run executes j and prints its summary.
func (j job) run(ctx context.Context, env *Env, ffmpegPath, prefix string) error {
	status := statusPrinter(env.Stderr, prefix)
	if j.configPath != "" {
		status("Config: " + j.configPath)
	}

	runner, err := j.newRunner(env, ffmpegPath, prefix)
	if err != nil {
		return err
	}
	out, err := runner.RunIn(ctx, j.dir)
	if err != nil {
		var agg *transcribe.AggregateError
		if errors.As(err, &agg) && ctx.Err() == nil {
			status("Completed chunks are cached; run again to retry the failed ones.")
		}
		return err
	}
	printSummary(env.Stderr, prefix, out)
	return nil
}

// TranscribeCmd creates the transcribe command.
// The env parameter provides injectable dependencies for testing.
func TranscribeCmd(env *Env) *cobra.Command {
	var f transcribeFlags

	cmd := &cobra.Command{
		Use:   "transcribe <recording>",
		Short: "Transcribe a long recording",
		Long: `Transcribe a long audio or video recording.

The audio track is extracted, cut at silences close to every --every seconds,
and the chunks are transcribed in parallel. Every intermediate file lives in a
working directory keyed by the recording's SHA-256, so an interrupted or
partially failed run resumes where it stopped.

Modes:
  plain    text only
  words    word timestamps; with --rttm or --diarizer-cmd, speakers are
           assigned across the whole recording
  diarize  per-chunk speaker labels (0:A, 1:B, ...) and a speakers.yaml
           roster to name them with the label command`,
		Example: `  transcribe-long transcribe meeting.mp4
  transcribe-long transcribe meeting.mp4 --mode diarize -l fr
  transcribe-long transcribe podcast.m4a --mode words --rttm
  transcribe-long transcribe lecture.m4a --reformat --provider deepseek`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscribe(cmd.Context(), env, args[0], f, cmd.Flags().Changed)
		},
	}

	addTranscribeFlags(cmd, &f)
	return cmd
}

func runTranscribe(ctx context.Context, env *Env, input string, f transcribeFlags, changed func(string) bool) error {
	j, err := prepareJob(env, input, f, changed)
	if err != nil {
		return err
	}

	ffmpegPath, err := env.FFmpegResolver.Resolve()
	if err != nil {
		return err
	}
	env.FFmpegResolver.CheckVersion(ctx, ffmpegPath, env.Stderr)

	return j.run(ctx, env, ffmpegPath, "")
}
