package cli

import (
	"context"
	"io"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alnah/transcribe-long/internal/audio"
	"github.com/alnah/transcribe-long/internal/config"
	"github.com/alnah/transcribe-long/internal/diarize"
	"github.com/alnah/transcribe-long/internal/ffmpeg"
	"github.com/alnah/transcribe-long/internal/reformat"
	"github.com/alnah/transcribe-long/internal/transcribe"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// All fields have sensible defaults via DefaultEnv(). Tests can override
// specific fields using the With* options or by creating a custom Env.
type Env struct {
	// I/O and environment
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string
	Now    func() time.Time

	// Factories for domain objects
	FFmpegResolver     FFmpegResolver
	ConfigLoader       ConfigLoader
	ProcessorFactory   ProcessorFactory
	TranscriberFactory TranscriberFactory
	ReformatterFactory ReformatterFactory
	DiarizerFactory    DiarizerFactory
}

// FFmpegResolver resolves the path to the FFmpeg binary.
type FFmpegResolver interface {
	Resolve() (string, error)
	CheckVersion(ctx context.Context, ffmpegPath string, w io.Writer)
}

// ConfigLoader loads transcribe.yaml from the first of dirs that has one and
// applies environment overrides. path is empty when no file was found.
type ConfigLoader interface {
	Load(getenv func(string) string, dirs ...string) (cfg config.Config, path string, err error)
}

// ProcessorFactory creates the audio tool used for segmentation.
type ProcessorFactory interface {
	NewProcessor(ffmpegPath string, warn audio.WarnFunc) audio.Processor
}

// TranscriberFactory creates transcription services.
type TranscriberFactory interface {
	NewTranscriber(apiKey string) transcribe.Service
}

// ReformatterFactory creates transcript reformatters.
type ReformatterFactory interface {
	NewReformatter(provider reformat.Provider, apiKey, model string, progress func(current, total int)) (reformat.Reformatter, error)
}

// DiarizerFactory creates recording-wide speaker diarizers.
type DiarizerFactory interface {
	NewRTTMDiarizer(path string) diarize.Diarizer
	NewCommandDiarizer(argv []string) (diarize.Diarizer, error)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stdout = w
	}
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) {
		e.Getenv = fn
	}
}

// WithNow sets the time provider.
func WithNow(fn func() time.Time) EnvOption {
	return func(e *Env) {
		e.Now = fn
	}
}

// WithFFmpegResolver sets the FFmpeg resolver.
func WithFFmpegResolver(r FFmpegResolver) EnvOption {
	return func(e *Env) {
		e.FFmpegResolver = r
	}
}

// WithConfigLoader sets the config loader.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) {
		e.ConfigLoader = l
	}
}

// WithProcessorFactory sets the audio processor factory.
func WithProcessorFactory(f ProcessorFactory) EnvOption {
	return func(e *Env) {
		e.ProcessorFactory = f
	}
}

// WithTranscriberFactory sets the transcriber factory.
func WithTranscriberFactory(f TranscriberFactory) EnvOption {
	return func(e *Env) {
		e.TranscriberFactory = f
	}
}

// WithReformatterFactory sets the reformatter factory.
func WithReformatterFactory(f ReformatterFactory) EnvOption {
	return func(e *Env) {
		e.ReformatterFactory = f
	}
}

// WithDiarizerFactory sets the diarizer factory.
func WithDiarizerFactory(f DiarizerFactory) EnvOption {
	return func(e *Env) {
		e.DiarizerFactory = f
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdout:             os.Stdout,
		Stderr:             os.Stderr,
		Getenv:             os.Getenv,
		Now:                time.Now,
		FFmpegResolver:     &defaultFFmpegResolver{},
		ConfigLoader:       &defaultConfigLoader{},
		ProcessorFactory:   &defaultProcessorFactory{},
		TranscriberFactory: &defaultTranscriberFactory{},
		ReformatterFactory: &defaultReformatterFactory{},
		DiarizerFactory:    &defaultDiarizerFactory{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

type defaultFFmpegResolver struct{}

func (defaultFFmpegResolver) Resolve() (string, error) {
	return ffmpeg.Resolve()
}

func (defaultFFmpegResolver) CheckVersion(ctx context.Context, ffmpegPath string, w io.Writer) {
	ffmpeg.CheckVersion(ctx, ffmpeg.NewExecutor(ffmpegPath), w)
}

type defaultConfigLoader struct{}

func (defaultConfigLoader) Load(getenv func(string) string, dirs ...string) (config.Config, string, error) {
	return config.Load(getenv, dirs...)
}

type defaultProcessorFactory struct{}

func (defaultProcessorFactory) NewProcessor(ffmpegPath string, warn audio.WarnFunc) audio.Processor {
	return audio.NewFFmpegProcessor(ffmpeg.NewExecutor(ffmpegPath), audio.WithWarnFunc(warn))
}

type defaultTranscriberFactory struct{}

func (defaultTranscriberFactory) NewTranscriber(apiKey string) transcribe.Service {
	return transcribe.NewOpenAITranscriber(openai.NewClient(apiKey), apiKey)
}

type defaultReformatterFactory struct{}

func (defaultReformatterFactory) NewReformatter(provider reformat.Provider, apiKey, model string, progress func(current, total int)) (reformat.Reformatter, error) {
	client, err := reformat.NewClient(provider, apiKey)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = provider.DefaultModel()
	}
	return reformat.NewChatReformatter(client, reformat.WithModel(model), reformat.WithProgress(progress)), nil
}

type defaultDiarizerFactory struct{}

func (defaultDiarizerFactory) NewRTTMDiarizer(path string) diarize.Diarizer {
	return diarize.NewRTTMDiarizer(path)
}

func (defaultDiarizerFactory) NewCommandDiarizer(argv []string) (diarize.Diarizer, error) {
	return diarize.NewCommandDiarizer(argv)
}

// Compile-time interface verification.
var (
	_ FFmpegResolver     = (*defaultFFmpegResolver)(nil)
	_ ConfigLoader       = (*defaultConfigLoader)(nil)
	_ ProcessorFactory   = (*defaultProcessorFactory)(nil)
	_ TranscriberFactory = (*defaultTranscriberFactory)(nil)
	_ ReformatterFactory = (*defaultReformatterFactory)(nil)
	_ DiarizerFactory    = (*defaultDiarizerFactory)(nil)
)
