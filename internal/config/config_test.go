package config_test

// Notes:
// - Environment is injected as a map-backed getenv, so every test is parallel.
// - Files live in t.TempDir().

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alnah/transcribe-long/internal/config"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, config.FileName)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return p
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

// ---------------------------------------------------------------------------
// TestParse
// ---------------------------------------------------------------------------

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		check   func(t *testing.T, c config.Config)
		wantErr bool
	}{
		{
			name:  "empty keeps defaults",
			input: "",
			check: func(t *testing.T, c config.Config) {
				if c != config.Default() {
					t.Errorf("got %+v, want defaults", c)
				}
			},
		},
		{
			name: "values override defaults",
			input: "transcription_model: gpt-4o-mini-transcribe\n" +
				"transcription_jobs: 4\nsplit_window_seconds: 0\nreformat_provider: deepseek\n",
			check: func(t *testing.T, c config.Config) {
				if c.TranscriptionModel != "gpt-4o-mini-transcribe" || c.TranscriptionJobs != 4 {
					t.Errorf("got %+v", c)
				}
				if c.SplitWindowSeconds != 0 || c.SplitEverySeconds != config.DefaultSplitEvery {
					t.Errorf("split settings = %v/%v", c.SplitEverySeconds, c.SplitWindowSeconds)
				}
				if c.ReformatProvider != "deepseek" {
					t.Errorf("ReformatProvider = %q", c.ReformatProvider)
				}
			},
		},
		{
			name:  "unknown keys ignored",
			input: "colour: blue\ntranscription_jobs: 3\n",
			check: func(t *testing.T, c config.Config) {
				if c.TranscriptionJobs != 3 {
					t.Errorf("TranscriptionJobs = %d", c.TranscriptionJobs)
				}
			},
		},
		{
			name:    "wrong type",
			input:   "transcription_jobs: many\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := config.Parse(strings.NewReader(tt.input))
			if tt.wantErr {
				if !errors.Is(err, config.ErrInvalidConfig) {
					t.Errorf("Parse() error = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			tt.check(t, c)
		})
	}
}

// ---------------------------------------------------------------------------
// TestFind - Peer to input, then workdir, then cwd
// ---------------------------------------------------------------------------

func TestFind(t *testing.T) {
	t.Parallel()

	peer, work, cwd := t.TempDir(), t.TempDir(), t.TempDir()
	writeConfig(t, work, "transcription_jobs: 2\n")
	cwdFile := writeConfig(t, cwd, "transcription_jobs: 3\n")

	if p, ok := config.Find(peer, work, cwd); !ok || p != filepath.Join(work, config.FileName) {
		t.Errorf("Find() = %q, %v; want workdir file", p, ok)
	}
	peerFile := writeConfig(t, peer, "transcription_jobs: 1\n")
	if p, _ := config.Find(peer, work, cwd); p != peerFile {
		t.Errorf("Find() = %q, want %q", p, peerFile)
	}
	if p, _ := config.Find("", cwd); p != cwdFile {
		t.Errorf("Find() = %q, want %q", p, cwdFile)
	}
	if _, ok := config.Find(t.TempDir()); ok {
		t.Error("Find() in empty dir should fail")
	}

	// A directory named like the config file is not a config file.
	odd := t.TempDir()
	if err := os.Mkdir(filepath.Join(odd, config.FileName), 0o750); err != nil {
		t.Fatal(err)
	}
	if _, ok := config.Find(odd); ok {
		t.Error("Find() should skip directories")
	}
}

// ---------------------------------------------------------------------------
// TestLoad
// ---------------------------------------------------------------------------

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, dir, "transcription_jobs: 5\nreformat_model: gpt-4o-mini\n")

	t.Run("env overrides file", func(t *testing.T) {
		t.Parallel()

		c, used, err := config.Load(envMap(map[string]string{
			config.EnvTranscriptionJobs:  "7",
			config.EnvTranscriptionModel: "whisper-1",
			config.EnvOutputDir:          "/out",
		}), dir)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if used != path {
			t.Errorf("path = %q, want %q", used, path)
		}
		if c.TranscriptionJobs != 7 || c.TranscriptionModel != "whisper-1" || c.OutputDir != "/out" {
			t.Errorf("got %+v", c)
		}
		if c.ReformatModel != "gpt-4o-mini" {
			t.Errorf("file value lost: ReformatModel = %q", c.ReformatModel)
		}
	})

	t.Run("no file", func(t *testing.T) {
		t.Parallel()

		c, used, err := config.Load(envMap(nil), t.TempDir())
		if err != nil || used != "" || c != config.Default() {
			t.Errorf("Load() = %+v, %q, %v", c, used, err)
		}
	})

	t.Run("bad env", func(t *testing.T) {
		t.Parallel()

		_, _, err := config.Load(envMap(map[string]string{config.EnvTranscriptionJobs: "two"}))
		if !errors.Is(err, config.ErrInvalidConfig) {
			t.Errorf("error = %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("out of range", func(t *testing.T) {
		t.Parallel()

		bad := t.TempDir()
		writeConfig(t, bad, "split_every_seconds: 0\n")
		_, _, err := config.Load(envMap(nil), bad)
		if !errors.Is(err, config.ErrInvalidConfig) {
			t.Errorf("error = %v, want ErrInvalidConfig", err)
		}
	})
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFile(filepath.Join(t.TempDir(), config.FileName))
	if !errors.Is(err, config.ErrConfigNotFound) {
		t.Errorf("error = %v, want ErrConfigNotFound", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		ok     bool
	}{
		{"defaults", func(*config.Config) {}, true},
		{"zero jobs", func(c *config.Config) { c.TranscriptionJobs = 0 }, false},
		{"negative window", func(c *config.Config) { c.SplitWindowSeconds = -1 }, false},
		{"window disabled", func(c *config.Config) { c.SplitWindowSeconds = 0 }, true},
		{"negative stop", func(c *config.Config) { c.StopBeforeEndSeconds = -5 }, false},
	}
	for _, tt := range tests {
		c := config.Default()
		tt.mutate(&c)
		if err := c.Validate(); (err == nil) != tt.ok {
			t.Errorf("%s: Validate() = %v", tt.name, err)
		}
	}
}

func TestExpandPath(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := config.ExpandPath("~/notes"); got != filepath.Join(home, "notes") {
		t.Errorf("ExpandPath(~/notes) = %q", got)
	}
	if got := config.ExpandPath("/abs/~"); got != "/abs/~" {
		t.Errorf("ExpandPath(/abs/~) = %q", got)
	}
}
