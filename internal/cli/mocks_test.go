package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alnah/transcribe-long/internal/audio"
	"github.com/alnah/transcribe-long/internal/config"
	"github.com/alnah/transcribe-long/internal/diarize"
	"github.com/alnah/transcribe-long/internal/reformat"
	"github.com/alnah/transcribe-long/internal/speaker"
	"github.com/alnah/transcribe-long/internal/transcribe"
)

// ---------------------------------------------------------------------------
// Mock FFmpegResolver
// ---------------------------------------------------------------------------

type mockFFmpegResolver struct {
	ResolveFunc func() (string, error)

	mu           sync.Mutex
	resolveCalls int
}

func (m *mockFFmpegResolver) Resolve() (string, error) {
	m.mu.Lock()
	m.resolveCalls++
	m.mu.Unlock()

	if m.ResolveFunc != nil {
		return m.ResolveFunc()
	}
	return "/usr/bin/ffmpeg", nil
}

func (m *mockFFmpegResolver) CheckVersion(context.Context, string, io.Writer) {}

func (m *mockFFmpegResolver) ResolveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveCalls
}

// ---------------------------------------------------------------------------
// Mock ConfigLoader - defaults plus real environment overrides
// ---------------------------------------------------------------------------

type mockConfigLoader struct {
	LoadFunc func(getenv func(string) string, dirs ...string) (config.Config, string, error)

	mu   sync.Mutex
	dirs [][]string
}

func (m *mockConfigLoader) Load(getenv func(string) string, dirs ...string) (config.Config, string, error) {
	m.mu.Lock()
	m.dirs = append(m.dirs, dirs)
	m.mu.Unlock()

	if m.LoadFunc != nil {
		return m.LoadFunc(getenv, dirs...)
	}
	cfg := config.Default()
	if err := cfg.ApplyEnv(getenv); err != nil {
		return config.Config{}, "", err
	}
	return cfg, "", nil
}

func (m *mockConfigLoader) Dirs() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirs
}

// ---------------------------------------------------------------------------
// Mock ProcessorFactory + Processor - writes placeholder files
// ---------------------------------------------------------------------------

// testSilenceLog has silences centered on 1195s and 2395s.
const testSilenceLog = `[silencedetect @ 0x1] silence_start: 1190
[silencedetect @ 0x1] silence_end: 1200 | silence_duration: 10
[silencedetect @ 0x1] silence_start: 2390
[silencedetect @ 0x1] silence_end: 2400 | silence_duration: 10
`

type mockProcessor struct {
	length   time.Duration
	Log      string
	SplitErr error

	mu         sync.Mutex
	splitCalls int
}

func (m *mockProcessor) Extract(_ context.Context, input, dest string) error {
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("%w: %s", audio.ErrFileNotFound, input)
	}
	return os.WriteFile(dest, []byte("audio"), 0o644)
}

func (m *mockProcessor) DetectSilence(context.Context, string) (string, error) {
	if m.Log != "" {
		return m.Log, nil
	}
	return testSilenceLog, nil
}

func (m *mockProcessor) Split(_ context.Context, _ string, cuts []float64, dir string) ([]string, error) {
	m.mu.Lock()
	m.splitCalls++
	m.mu.Unlock()

	if m.SplitErr != nil {
		return nil, m.SplitErr
	}
	files := make([]string, len(cuts)+1)
	for i := range files {
		files[i] = filepath.Join(dir, audio.ChunkFileName(i, ".m4a"))
		if err := os.WriteFile(files[i], []byte("chunk"), 0o644); err != nil {
			return nil, err
		}
	}
	return files, nil
}

func (m *mockProcessor) Duration(context.Context, string) (time.Duration, error) {
	if m.length > 0 {
		return m.length, nil
	}
	return 3000 * time.Second, nil
}

func (m *mockProcessor) SplitCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.splitCalls
}

type mockProcessorFactory struct {
	processor *mockProcessor

	mu    sync.Mutex
	paths []string
}

func (m *mockProcessorFactory) NewProcessor(ffmpegPath string, _ audio.WarnFunc) audio.Processor {
	m.mu.Lock()
	m.paths = append(m.paths, ffmpegPath)
	m.mu.Unlock()

	if m.processor == nil {
		m.processor = &mockProcessor{}
	}
	return m.processor
}

// ---------------------------------------------------------------------------
// Mock TranscriberFactory + Transcriber
// ---------------------------------------------------------------------------

type mockTranscriber struct {
	TranscribeFunc func(ctx context.Context, path string, opts transcribe.Options) (transcribe.Result, error)

	mu    sync.Mutex
	calls []transcribe.Options
}

func (m *mockTranscriber) Transcribe(ctx context.Context, path string, opts transcribe.Options) (transcribe.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, opts)
	m.mu.Unlock()

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, path, opts)
	}

	idx, _ := audio.ChunkIndexFromName(path)
	switch opts.Mode {
	case transcribe.ModeWords:
		return transcribe.TimedWords{Words: []transcribe.TimedWord{
			{Word: fmt.Sprintf("word%d", idx), Start: 1, End: 2},
		}}, nil
	case transcribe.ModeDiarize:
		return transcribe.Diarized{Segments: []transcribe.DiarizedSegment{
			{Speaker: "A", Text: fmt.Sprintf("part %d", idx)},
		}}, nil
	default:
		return transcribe.PlainText{Content: fmt.Sprintf("part %d", idx)}, nil
	}
}

func (m *mockTranscriber) Calls() []transcribe.Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]transcribe.Options(nil), m.calls...)
}

type mockTranscriberFactory struct {
	transcriber *mockTranscriber

	mu   sync.Mutex
	keys []string
}

func (m *mockTranscriberFactory) NewTranscriber(apiKey string) transcribe.Service {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, apiKey)
	if m.transcriber == nil {
		m.transcriber = &mockTranscriber{}
	}
	return m.transcriber
}

func (m *mockTranscriberFactory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.keys...)
}

// ---------------------------------------------------------------------------
// Mock ReformatterFactory + Reformatter
// ---------------------------------------------------------------------------

type mockReformatter struct {
	ReformatFunc func(ctx context.Context, text string) (string, error)
}

func (m *mockReformatter) Reformat(ctx context.Context, text string) (string, error) {
	if m.ReformatFunc != nil {
		return m.ReformatFunc(ctx, text)
	}
	return text, nil
}

type reformatterCall struct {
	provider reformat.Provider
	apiKey   string
	model    string
}

type mockReformatterFactory struct {
	reformatter *mockReformatter
	err         error

	mu    sync.Mutex
	calls []reformatterCall
}

func (m *mockReformatterFactory) NewReformatter(provider reformat.Provider, apiKey, model string, _ func(int, int)) (reformat.Reformatter, error) {
	m.mu.Lock()
	m.calls = append(m.calls, reformatterCall{provider, apiKey, model})
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	if m.reformatter == nil {
		m.reformatter = &mockReformatter{}
	}
	return m.reformatter, nil
}

func (m *mockReformatterFactory) Calls() []reformatterCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]reformatterCall(nil), m.calls...)
}

// ---------------------------------------------------------------------------
// Mock DiarizerFactory + Diarizer
// ---------------------------------------------------------------------------

type mockDiarizer struct {
	segments []speaker.Segment
}

func (m *mockDiarizer) Diarize(context.Context, string) ([]speaker.Segment, error) {
	return m.segments, nil
}

type mockDiarizerFactory struct {
	diarizer *mockDiarizer

	mu       sync.Mutex
	rttmPath string
	argv     []string
}

func (m *mockDiarizerFactory) get() *mockDiarizer {
	if m.diarizer == nil {
		m.diarizer = &mockDiarizer{segments: []speaker.Segment{{Speaker: "Host", Start: 0, End: 3000}}}
	}
	return m.diarizer
}

func (m *mockDiarizerFactory) NewRTTMDiarizer(path string) diarize.Diarizer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rttmPath = path
	return m.get()
}

func (m *mockDiarizerFactory) NewCommandDiarizer(argv []string) (diarize.Diarizer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(argv) == 0 {
		return nil, errors.New("empty argv")
	}
	m.argv = argv
	return m.get(), nil
}

// Compile-time interface verification.
var (
	_ FFmpegResolver     = (*mockFFmpegResolver)(nil)
	_ ConfigLoader       = (*mockConfigLoader)(nil)
	_ ProcessorFactory   = (*mockProcessorFactory)(nil)
	_ TranscriberFactory = (*mockTranscriberFactory)(nil)
	_ ReformatterFactory = (*mockReformatterFactory)(nil)
	_ DiarizerFactory    = (*mockDiarizerFactory)(nil)
	_ audio.Processor    = (*mockProcessor)(nil)
)
