// Package workdir owns the per-input working directory. The directory is keyed
// by the SHA-256 of the input file, so re-running on unchanged input finds the
// artifacts of the previous run.
package workdir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultRoot is the directory under which working directories are created.
const DefaultRoot = ".transcribe"

// Artifact names inside a working directory.
const (
	AudioFile      = "audio.m4a"
	SilenceLogFile = "silence.log"
	CutsFile       = "cuts.json"
	ChunksDirName  = "chunks"
	TranscriptsDir = "transcripts"
	TranscriptFile = "transcript.txt"
	RecordsFile    = "transcript.jsonl"
	SpeakersFile   = "speakers.yaml"
	ManifestFile   = "manifest.json"
)

// Dir is a working directory. It is passed explicitly to every component
// that reads or writes intermediate files.
type Dir struct {
	Path   string
	Input  string
	SHA256 string
}

// Derive computes the working directory for input under root
// (DefaultRoot when empty): <root>/<stem-with-dashes>/<sha256>.
// The directory is not created; see Ensure.
func Derive(input, root string) (Dir, error) {
	if root == "" {
		root = DefaultRoot
	}

	sum, err := HashFile(input)
	if err != nil {
		return Dir{}, err
	}

	return Dir{
		Path:   filepath.Join(root, stem(input), sum),
		Input:  input,
		SHA256: sum,
	}, nil
}

// Rebase returns d relocated under root without rehashing the input.
func (d Dir) Rebase(root string) Dir {
	if root == "" {
		root = DefaultRoot
	}
	d.Path = filepath.Join(root, stem(d.Input), d.SHA256)
	return d
}

func stem(input string) string {
	base := filepath.Base(input)
	return strings.ReplaceAll(strings.TrimSuffix(base, filepath.Ext(base)), " ", "-")
}

// HashFile returns the hex SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%s: %w", path, ErrInputNotFound)
	}

	// #nosec G304 -- path is the user-provided input recording
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Ensure creates the directory and its chunks/transcripts subdirectories.
func (d Dir) Ensure() error {
	for _, p := range []string{d.Path, d.ChunksDir(), d.TranscriptsDir()} {
		if err := os.MkdirAll(p, 0o750); err != nil {
			return fmt.Errorf("create working directory: %w", err)
		}
	}
	return nil
}

// Join returns a path inside the working directory.
func (d Dir) Join(elem ...string) string {
	return filepath.Join(append([]string{d.Path}, elem...)...)
}

func (d Dir) AudioPath() string      { return d.Join(AudioFile) }
func (d Dir) SilenceLogPath() string { return d.Join(SilenceLogFile) }
func (d Dir) CutsPath() string       { return d.Join(CutsFile) }
func (d Dir) ChunksDir() string      { return d.Join(ChunksDirName) }
func (d Dir) TranscriptsDir() string { return d.Join(TranscriptsDir) }
func (d Dir) TranscriptPath() string { return d.Join(TranscriptFile) }
func (d Dir) RecordsPath() string    { return d.Join(RecordsFile) }
func (d Dir) SpeakersPath() string   { return d.Join(SpeakersFile) }
func (d Dir) ManifestPath() string   { return d.Join(ManifestFile) }

// ChunkTranscriptPath is where the raw result for chunk index is cached.
func (d Dir) ChunkTranscriptPath(index int) string {
	return d.Join(TranscriptsDir, fmt.Sprintf("chunk_%03d.json", index))
}

// DiarizedTranscriptPath is where the diarized result for chunk index is cached.
func (d Dir) DiarizedTranscriptPath(index int) string {
	return d.Join(TranscriptsDir, fmt.Sprintf("chunk_%03d_diarized.json", index))
}

// Exists reports whether a regular file exists at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
