package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/alnah/transcribe-long/internal/config"
	"github.com/alnah/transcribe-long/internal/ffmpeg"
	"github.com/alnah/transcribe-long/internal/reformat"
	"github.com/alnah/transcribe-long/internal/transcribe"
	"github.com/alnah/transcribe-long/internal/workdir"
)

// Notes:
// - Tests drive runTranscribe and TranscribeCmd through a fully mocked Env.
// - mockProcessor writes placeholder audio and chunk files, so the real
//   Segmenter and pipeline run against a temporary working directory.
// - The default silence log yields two cuts, hence three chunks.

// ---------------------------------------------------------------------------
// Unit tests for helper functions
// ---------------------------------------------------------------------------

func TestClampParallel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"negative", -5, 1},
		{"zero", 0, 1},
		{"one", 1, 1},
		{"middle", 5, 5},
		{"max", transcribe.MaxRecommendedParallel, transcribe.MaxRecommendedParallel},
		{"over_max", 100, transcribe.MaxRecommendedParallel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := clampParallel(tt.input); got != tt.expected {
				t.Errorf("clampParallel(%d) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSupportedFormatsList(t *testing.T) {
	t.Parallel()

	got := supportedFormatsList()
	for _, format := range []string{"m4a", "mp3", "wav", "mp4", "flac"} {
		if !strings.Contains(got, format) {
			t.Errorf("expected %q in supported formats list, got %q", format, got)
		}
	}
	if !strings.HasPrefix(got, "aac, ") {
		t.Errorf("list should be sorted, got %q", got)
	}
}

func TestApplyFlags(t *testing.T) {
	t.Parallel()

	base := config.Default()
	base.TranscriptionModel = "from-file"
	f := defaultFlags()
	f.model = "whisper-1"
	f.jobs = 7
	f.window = 0
	f.provider = "deepseek"

	got := applyFlags(base, f, changedSet("model", "window", "provider"))

	if got.TranscriptionModel != "whisper-1" {
		t.Errorf("TranscriptionModel = %q, want whisper-1", got.TranscriptionModel)
	}
	if got.TranscriptionJobs != config.DefaultTranscriptionJobs {
		t.Errorf("TranscriptionJobs = %d, unchanged flag must not override", got.TranscriptionJobs)
	}
	if got.SplitWindowSeconds != 0 {
		t.Errorf("SplitWindowSeconds = %v, want 0", got.SplitWindowSeconds)
	}
	if got.ReformatProvider != "deepseek" {
		t.Errorf("ReformatProvider = %q, want deepseek", got.ReformatProvider)
	}
}

// ---------------------------------------------------------------------------
// Tests for prepareJob - validation
// ---------------------------------------------------------------------------

func TestPrepareJob_Validation(t *testing.T) {
	t.Parallel()

	audioFile := func(t *testing.T) string { return createTestAudioFile(t, "talk.m4a") }

	tests := []struct {
		name    string
		input   func(t *testing.T) string
		flags   func(f *transcribeFlags)
		changed []string
		envOpts []testEnvOption
		wantErr error
	}{
		{
			name:    "missing file",
			input:   func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.m4a") },
			wantErr: ErrFileNotFound,
		},
		{
			name:    "directory",
			input:   func(t *testing.T) string { return t.TempDir() },
			wantErr: ErrFileNotFound,
		},
		{
			name:    "unsupported format",
			input:   func(t *testing.T) string { return createTestAudioFile(t, "notes.txt") },
			wantErr: ErrUnsupportedFormat,
		},
		{
			name:    "unknown mode",
			input:   audioFile,
			flags:   func(f *transcribeFlags) { f.mode = "karaoke" },
			wantErr: transcribe.ErrUnknownMode,
		},
		{
			name:    "invalid jobs",
			input:   audioFile,
			flags:   func(f *transcribeFlags) { f.jobs = 0 },
			changed: []string{"jobs"},
			wantErr: config.ErrInvalidConfig,
		},
		{
			name:  "rttm and diarizer command",
			input: audioFile,
			flags: func(f *transcribeFlags) {
				f.mode, f.rttm, f.diarizerCmd = "words", "x.rttm", "pyannote {audio}"
			},
			wantErr: ErrIncompatibleFlags,
		},
		{
			name:  "unbalanced quote in diarizer command",
			input: audioFile,
			flags: func(f *transcribeFlags) {
				f.mode, f.diarizerCmd = "words", "diarize.py --model 'pyannote {audio}"
			},
			wantErr: ErrInvalidFlag,
		},
		{
			name:    "rttm outside words mode",
			input:   audioFile,
			flags:   func(f *transcribeFlags) { f.rttm = rttmAuto },
			wantErr: ErrIncompatibleFlags,
		},
		{
			name:    "missing OpenAI key",
			input:   audioFile,
			envOpts: []testEnvOption{withEnvVar(EnvOpenAIAPIKey, "")},
			wantErr: ErrAPIKeyMissing,
		},
		{
			name:    "missing DeepSeek key",
			input:   audioFile,
			flags:   func(f *transcribeFlags) { f.reformat, f.provider = true, "deepseek" },
			changed: []string{"provider"},
			envOpts: []testEnvOption{withEnvVar(reformat.ProviderDeepSeek.APIKeyEnv(), "")},
			wantErr: ErrAPIKeyMissing,
		},
		{
			name:    "unknown provider",
			input:   audioFile,
			flags:   func(f *transcribeFlags) { f.reformat, f.provider = true, "claude" },
			changed: []string{"provider"},
			wantErr: reformat.ErrUnknownProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env, _, _, _ := testEnv(t, tt.envOpts...)
			f := defaultFlags()
			if tt.flags != nil {
				tt.flags(&f)
			}

			_, err := prepareJob(env, tt.input(t), f, changedSet(tt.changed...))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("prepareJob() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Tests for prepareJob - settings resolution
// ---------------------------------------------------------------------------

func TestPrepareJob_Settings(t *testing.T) {
	t.Parallel()

	t.Run("config search order and rttm next to input", func(t *testing.T) {
		t.Parallel()

		env, mocks, _, _ := testEnv(t)
		input := createTestAudioFile(t, "board meeting.mp4")
		f := defaultFlags()
		f.mode, f.rttm, f.language = "words", rttmAuto, "fr"

		j, err := prepareJob(env, input, f, changedSet())
		if err != nil {
			t.Fatalf("prepareJob() error = %v", err)
		}
		if want := strings.TrimSuffix(input, ".mp4") + ".rttm"; j.rttm != want {
			t.Errorf("rttm = %q, want %q", j.rttm, want)
		}
		if j.opts.Mode != transcribe.ModeWords || j.opts.Language != "fr" {
			t.Errorf("opts = %+v", j.opts)
		}
		dirs := mocks.configLoader.Dirs()
		if len(dirs) != 1 || len(dirs[0]) != 3 ||
			dirs[0][0] != filepath.Dir(input) || dirs[0][1] != j.dir.Path || dirs[0][2] != "." {
			t.Errorf("config dirs = %v", dirs)
		}
		if !strings.HasPrefix(j.dir.Path, env.Getenv(config.EnvOutputDir)) {
			t.Errorf("workdir %q not under TRANSCRIPT_OUTPUT_DIR", j.dir.Path)
		}
	})

	t.Run("config output_dir relocates the workdir", func(t *testing.T) {
		t.Parallel()

		env, mocks, _, _ := testEnv(t, withEnvVar(config.EnvOutputDir, ""))
		elsewhere := t.TempDir()
		mocks.configLoader.LoadFunc = func(func(string) string, ...string) (config.Config, string, error) {
			cfg := config.Default()
			cfg.OutputDir = elsewhere
			cfg.TranscriptionJobs = 4
			return cfg, "/etc/transcribe.yaml", nil
		}
		input := createTestAudioFile(t, "talk.m4a")

		j, err := prepareJob(env, input, defaultFlags(), changedSet())
		if err != nil {
			t.Fatalf("prepareJob() error = %v", err)
		}
		if !strings.HasPrefix(j.dir.Path, elsewhere) {
			t.Errorf("workdir = %q, want under %q", j.dir.Path, elsewhere)
		}
		if j.cfg.TranscriptionJobs != 4 || j.configPath != "/etc/transcribe.yaml" {
			t.Errorf("cfg = %+v from %q", j.cfg, j.configPath)
		}
	})

	t.Run("diarizer command keeps quoted arguments", func(t *testing.T) {
		t.Parallel()

		env, _, _, _ := testEnv(t)
		f := defaultFlags()
		f.mode = "words"
		f.diarizerCmd = `diarize.py --model 'pyannote/speaker diarization' "{audio}"`

		j, err := prepareJob(env, createTestAudioFile(t, "talk.m4a"), f, changedSet())
		if err != nil {
			t.Fatalf("prepareJob() error = %v", err)
		}
		want := []string{"diarize.py", "--model", "pyannote/speaker diarization", "{audio}"}
		if !slices.Equal(j.diarizerCmd, want) {
			t.Errorf("diarizerCmd = %q, want %q", j.diarizerCmd, want)
		}
	})

	t.Run("output-dir flag wins", func(t *testing.T) {
		t.Parallel()

		env, _, _, _ := testEnv(t)
		flagRoot := t.TempDir()
		f := defaultFlags()
		f.outputDir = flagRoot

		j, err := prepareJob(env, createTestAudioFile(t, "talk.m4a"), f, changedSet("output-dir"))
		if err != nil {
			t.Fatalf("prepareJob() error = %v", err)
		}
		if !strings.HasPrefix(j.dir.Path, flagRoot) {
			t.Errorf("workdir = %q, want under %q", j.dir.Path, flagRoot)
		}
	})
}

// ---------------------------------------------------------------------------
// Tests for runTranscribe - end to end through mocks
// ---------------------------------------------------------------------------

func transcriptOf(t *testing.T, env *Env, input string) string {
	t.Helper()
	dir, err := workdir.Derive(input, env.Getenv(config.EnvOutputDir))
	if err != nil {
		t.Fatal(err)
	}
	return readFile(t, dir.TranscriptPath())
}

func TestRunTranscribe_Plain(t *testing.T) {
	t.Parallel()

	env, mocks, _, stderr := testEnv(t)
	input := createTestAudioFile(t, "talk.m4a")

	if err := runTranscribe(context.Background(), env, input, defaultFlags(), changedSet()); err != nil {
		t.Fatalf("runTranscribe() error = %v\n%s", err, stderr)
	}

	if got := transcriptOf(t, env, input); got != "part 0\n\npart 1\n\npart 2\n" {
		t.Errorf("transcript = %q", got)
	}
	if keys := mocks.transcriber.Keys(); len(keys) != 1 || keys[0] != "test-openai-key" {
		t.Errorf("transcriber keys = %v", keys)
	}
	if mocks.ffmpegResolver.ResolveCalls() != 1 {
		t.Errorf("Resolve calls = %d, want 1", mocks.ffmpegResolver.ResolveCalls())
	}
	out := stderr.String()
	for _, want := range []string{"ok  chunk_000.m4a", "(3/3)", "Done: "} {
		if !strings.Contains(out, want) {
			t.Errorf("stderr missing %q:\n%s", want, out)
		}
	}
}

func TestRunTranscribe_Resume(t *testing.T) {
	t.Parallel()

	env, mocks, _, stderr := testEnv(t)
	input := createTestAudioFile(t, "talk.m4a")

	mocks.transcriber.transcriber = &mockTranscriber{
		TranscribeFunc: func(_ context.Context, path string, _ transcribe.Options) (transcribe.Result, error) {
			if filepath.Base(path) == "chunk_001.m4a" {
				return nil, errors.New("upstream failure")
			}
			return transcribe.PlainText{Content: "ok " + filepath.Base(path)}, nil
		},
	}
	err := runTranscribe(context.Background(), env, input, defaultFlags(), changedSet())
	if !errors.Is(err, transcribe.ErrChunksFailed) {
		t.Fatalf("first run error = %v, want ErrChunksFailed", err)
	}
	if !strings.Contains(stderr.String(), "ERR chunk_001.m4a") || !strings.Contains(stderr.String(), "run again") {
		t.Errorf("stderr = %s", stderr)
	}

	second := &mockTranscriber{}
	mocks.transcriber.transcriber = second
	if err := runTranscribe(context.Background(), env, input, defaultFlags(), changedSet()); err != nil {
		t.Fatalf("second run error = %v", err)
	}
	if calls := len(second.Calls()); calls != 1 {
		t.Errorf("second run transcribed %d chunks, want 1", calls)
	}
	if got := transcriptOf(t, env, input); got != "ok chunk_000.m4a\n\npart 1\n\nok chunk_002.m4a\n" {
		t.Errorf("transcript = %q", got)
	}
	if !strings.Contains(stderr.String(), "Reused 2 cached chunk transcripts") {
		t.Errorf("stderr = %s", stderr)
	}
	if mocks.processor.processor.SplitCalls() != 1 {
		t.Errorf("Split calls = %d, chunks should be reused", mocks.processor.processor.SplitCalls())
	}
}

func TestRunTranscribe_Diarize(t *testing.T) {
	t.Parallel()

	env, _, _, stderr := testEnv(t)
	input := createTestAudioFile(t, "talk.m4a")
	f := defaultFlags()
	f.mode = "diarize"

	if err := runTranscribe(context.Background(), env, input, f, changedSet()); err != nil {
		t.Fatalf("runTranscribe() error = %v", err)
	}

	if got := transcriptOf(t, env, input); got != "0:A: part 0\n\n1:A: part 1\n\n2:A: part 2\n" {
		t.Errorf("transcript = %q", got)
	}
	if !strings.Contains(stderr.String(), "Speaker roster: ") || !strings.Contains(stderr.String(), "3 speakers") {
		t.Errorf("stderr = %s", stderr)
	}
}

func TestRunTranscribe_WordsWithRTTM(t *testing.T) {
	t.Parallel()

	env, mocks, _, _ := testEnv(t)
	input := createTestAudioFile(t, "talk.m4a")
	f := defaultFlags()
	f.mode, f.rttm = "words", rttmAuto

	if err := runTranscribe(context.Background(), env, input, f, changedSet()); err != nil {
		t.Fatalf("runTranscribe() error = %v", err)
	}

	if got := transcriptOf(t, env, input); got != "Host: word0 word1 word2\n" {
		t.Errorf("transcript = %q", got)
	}
	if want := strings.TrimSuffix(input, ".m4a") + ".rttm"; mocks.diarizer.rttmPath != want {
		t.Errorf("rttm path = %q, want %q", mocks.diarizer.rttmPath, want)
	}
}

func TestRunTranscribe_Reformat(t *testing.T) {
	t.Parallel()

	env, mocks, _, _ := testEnv(t)
	mocks.reformatter.reformatter = &mockReformatter{
		ReformatFunc: func(_ context.Context, text string) (string, error) {
			return strings.ToUpper(strings.ReplaceAll(text, "\n\n", " ")), nil
		},
	}
	input := createTestAudioFile(t, "talk.m4a")
	f := defaultFlags()
	f.reformat, f.provider, f.reformatModel = true, "deepseek", "deepseek-reasoner"

	if err := runTranscribe(context.Background(), env, input, f, changedSet("provider", "reformat-model")); err != nil {
		t.Fatalf("runTranscribe() error = %v", err)
	}

	if got := transcriptOf(t, env, input); got != "PART 0 PART 1 PART 2\n" {
		t.Errorf("transcript = %q", got)
	}
	calls := mocks.reformatter.Calls()
	want := reformatterCall{reformat.ProviderDeepSeek, "test-deepseek-key", "deepseek-reasoner"}
	if len(calls) != 1 || calls[0] != want {
		t.Errorf("reformatter calls = %+v, want %+v", calls, want)
	}
}

func TestRunTranscribe_FFmpegNotFound(t *testing.T) {
	t.Parallel()

	env, mocks, _, _ := testEnv(t)
	mocks.ffmpegResolver.ResolveFunc = func() (string, error) {
		return "", fmt.Errorf("%w in PATH", ffmpeg.ErrNotFound)
	}

	err := runTranscribe(context.Background(), env, createTestAudioFile(t, "talk.m4a"), defaultFlags(), changedSet())
	if !errors.Is(err, ffmpeg.ErrNotFound) {
		t.Errorf("error = %v, want ffmpeg.ErrNotFound", err)
	}
	if len(mocks.transcriber.Keys()) != 0 {
		t.Error("no transcriber should be created without ffmpeg")
	}
}

// ---------------------------------------------------------------------------
// Tests for TranscribeCmd - flag parsing
// ---------------------------------------------------------------------------

func TestTranscribeCmd(t *testing.T) {
	t.Parallel()

	env, mocks, _, _ := testEnv(t)
	input := createTestAudioFile(t, "talk.m4a")

	cmd := TranscribeCmd(env)
	cmd.SetArgs([]string{input, "--mode", "words", "--rttm", "-j", "3", "-l", "en", "--prompt", "Acme"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	calls := mocks.transcriber.transcriber.Calls()
	if len(calls) != 3 {
		t.Fatalf("transcribe calls = %d, want 3", len(calls))
	}
	if calls[0].Mode != transcribe.ModeWords || calls[0].Language != "en" || calls[0].Prompt != "Acme" {
		t.Errorf("options = %+v", calls[0])
	}
	if want := strings.TrimSuffix(input, ".m4a") + ".rttm"; mocks.diarizer.rttmPath != want {
		t.Errorf("bare --rttm path = %q, want %q", mocks.diarizer.rttmPath, want)
	}
}

func TestTranscribeCmd_RequiresOneArg(t *testing.T) {
	t.Parallel()

	env, _, _, _ := testEnv(t)
	cmd := TranscribeCmd(env)
	cmd.SetArgs([]string{})
	cmd.SilenceUsage, cmd.SilenceErrors = true, true

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "accepts 1 arg(s)") {
		t.Errorf("error = %v, want cobra arg count error", err)
	}
}
