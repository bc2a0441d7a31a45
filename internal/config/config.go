// Package config loads transcribe.yaml and applies environment overrides.
//
// The file is searched, in order, next to the input recording, in the
// working directory and in the current directory; the first one found wins.
// Environment variables override file values and command-line flags
// override both (flags are applied by the caller).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file.
const FileName = "transcribe.yaml"

// Environment variable overrides.
const (
	EnvTranscriptionModel = "TRANSCRIBE_MODEL"
	EnvTranscriptionJobs  = "TRANSCRIBE_JOBS"
	EnvReformatModel      = "REFORMAT_MODEL"
	EnvReformatProvider   = "REFORMAT_PROVIDER"
	EnvOutputDir          = "TRANSCRIPT_OUTPUT_DIR"
)

// Default values.
const (
	DefaultTranscriptionJobs = 2
	DefaultReformatProvider  = "openai"
	DefaultSplitEvery        = 1200
	DefaultSplitWindow       = 90
	DefaultStopBeforeEnd     = 30
	DefaultOutputDir         = ".transcribe"
)

// Config holds tool settings. Unknown keys in the file are ignored.
type Config struct {
	// TranscriptionModel overrides the per-mode default model when set.
	TranscriptionModel string `yaml:"transcription_model"`
	TranscriptionJobs  int    `yaml:"transcription_jobs"`
	// ReformatModel overrides the provider's default chat model when set.
	ReformatModel        string  `yaml:"reformat_model"`
	ReformatProvider     string  `yaml:"reformat_provider"`
	SplitEverySeconds    float64 `yaml:"split_every_seconds"`
	SplitWindowSeconds   float64 `yaml:"split_window_seconds"`
	StopBeforeEndSeconds float64 `yaml:"stop_before_end_seconds"`
	OutputDir            string  `yaml:"output_dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		TranscriptionJobs:    DefaultTranscriptionJobs,
		ReformatProvider:     DefaultReformatProvider,
		SplitEverySeconds:    DefaultSplitEvery,
		SplitWindowSeconds:   DefaultSplitWindow,
		StopBeforeEndSeconds: DefaultStopBeforeEnd,
		OutputDir:            DefaultOutputDir,
	}
}

// Find returns the first dirs/FileName that is a regular file.
// Empty entries are skipped.
func Find(dirs ...string) (string, bool) {
	for _, d := range dirs {
		if d == "" {
			continue
		}
		p := filepath.Join(d, FileName)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

// Load returns the defaults overlaid with the first config file found in
// dirs and then with environment overrides. The path of the file used is
// returned, or "" when none was found.
func Load(getenv func(string) string, dirs ...string) (Config, string, error) {
	cfg := Default()
	path, ok := Find(dirs...)
	if ok {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return Config{}, "", err
		}
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return Config{}, "", err
	}
	if err := cfg.Validate(); err != nil {
		if path != "" {
			return Config{}, "", fmt.Errorf("%s: %w", path, err)
		}
		return Config{}, "", err
	}
	return cfg, path, nil
}

// LoadFile returns the defaults overlaid with the file at path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- config path from the search list
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("%s: %w", path, ErrConfigNotFound)
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults. An empty document yields the
// defaults.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.OutputDir = ExpandPath(cfg.OutputDir)
	return cfg, nil
}

// ApplyEnv applies the environment overrides that are set.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		return nil
	}
	if v := getenv(EnvTranscriptionModel); v != "" {
		c.TranscriptionModel = v
	}
	if v := getenv(EnvTranscriptionJobs); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, EnvTranscriptionJobs, v)
		}
		c.TranscriptionJobs = n
	}
	if v := getenv(EnvReformatModel); v != "" {
		c.ReformatModel = v
	}
	if v := getenv(EnvReformatProvider); v != "" {
		c.ReformatProvider = v
	}
	if v := getenv(EnvOutputDir); v != "" {
		c.OutputDir = ExpandPath(v)
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch {
	case c.TranscriptionJobs < 1:
		return fmt.Errorf("%w: transcription_jobs must be at least 1, got %d", ErrInvalidConfig, c.TranscriptionJobs)
	case c.SplitEverySeconds <= 0:
		return fmt.Errorf("%w: split_every_seconds must be positive, got %g", ErrInvalidConfig, c.SplitEverySeconds)
	case c.SplitWindowSeconds < 0:
		return fmt.Errorf("%w: split_window_seconds must not be negative, got %g", ErrInvalidConfig, c.SplitWindowSeconds)
	case c.StopBeforeEndSeconds < 0:
		return fmt.Errorf("%w: stop_before_end_seconds must not be negative, got %g", ErrInvalidConfig, c.StopBeforeEndSeconds)
	}
	return nil
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[2:])
	}
	return p
}
