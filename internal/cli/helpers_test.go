package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alnah/transcribe-long/internal/config"
	"github.com/alnah/transcribe-long/internal/reformat"
)

// ---------------------------------------------------------------------------
// syncBuffer - thread-safe bytes.Buffer for concurrent test output
// ---------------------------------------------------------------------------

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Compile-time check that syncBuffer implements io.Writer.
var _ io.Writer = (*syncBuffer)(nil)

// ---------------------------------------------------------------------------
// testMocks - convenience struct for grouping all mocks
// ---------------------------------------------------------------------------

type testMocks struct {
	ffmpegResolver *mockFFmpegResolver
	configLoader   *mockConfigLoader
	processor      *mockProcessorFactory
	transcriber    *mockTranscriberFactory
	reformatter    *mockReformatterFactory
	diarizer       *mockDiarizerFactory
}

func newTestMocks() *testMocks {
	return &testMocks{
		ffmpegResolver: &mockFFmpegResolver{},
		configLoader:   &mockConfigLoader{},
		processor:      &mockProcessorFactory{},
		transcriber:    &mockTranscriberFactory{},
		reformatter:    &mockReformatterFactory{},
		diarizer:       &mockDiarizerFactory{},
	}
}

// ---------------------------------------------------------------------------
// testEnv - creates a fully mocked Env for testing
// ---------------------------------------------------------------------------

type testEnvOptions struct {
	vars  map[string]string
	mocks *testMocks
}

type testEnvOption func(*testEnvOptions)

// withEnvVar sets an environment variable; an empty value unsets it.
func withEnvVar(key, value string) testEnvOption {
	return func(o *testEnvOptions) {
		if value == "" {
			delete(o.vars, key)
			return
		}
		o.vars[key] = value
	}
}

// testEnv creates a test Env with all dependencies mocked.
// Returns the Env, the mocks, and the stdout and stderr buffers.
func testEnv(t *testing.T, opts ...testEnvOption) (*Env, *testMocks, *syncBuffer, *syncBuffer) {
	t.Helper()

	root := filepath.Join(t.TempDir(), "work")
	options := &testEnvOptions{
		vars: map[string]string{
			EnvOpenAIAPIKey:                       "test-openai-key",
			reformat.ProviderDeepSeek.APIKeyEnv(): "test-deepseek-key",
			config.EnvOutputDir:                   root,
		},
		mocks: newTestMocks(),
	}
	for _, opt := range opts {
		opt(options)
	}

	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	env := &Env{
		Stdout:             stdout,
		Stderr:             stderr,
		Getenv:             staticEnv(options.vars),
		Now:                fixedTime(time.Date(2026, 1, 26, 14, 30, 52, 0, time.UTC)),
		FFmpegResolver:     options.mocks.ffmpegResolver,
		ConfigLoader:       options.mocks.configLoader,
		ProcessorFactory:   options.mocks.processor,
		TranscriberFactory: options.mocks.transcriber,
		ReformatterFactory: options.mocks.reformatter,
		DiarizerFactory:    options.mocks.diarizer,
	}
	return env, options.mocks, stdout, stderr
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// fixedTime returns a function that always returns the given time.
func fixedTime(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// staticEnv returns a getenv function that returns values from the given map.
func staticEnv(env map[string]string) func(string) string {
	return func(key string) string {
		return env[key]
	}
}

// changedSet returns a Changed func reporting the given flag names as set.
func changedSet(names ...string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

// defaultFlags returns transcribe flags as cobra would set them with no
// arguments.
func defaultFlags() transcribeFlags {
	return transcribeFlags{
		mode:          "plain",
		jobs:          2,
		every:         1200,
		window:        90,
		stopBeforeEnd: 30,
	}
}

// createTestAudioFile creates a temporary audio file for testing.
// Returns the file path. The file is automatically cleaned up after the test.
func createTestAudioFile(t *testing.T, name string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, []byte("fake audio content"), 0644); err != nil {
		t.Fatalf("failed to create test audio file: %v", err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
