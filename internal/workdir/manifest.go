package workdir

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
)

// ChunkSpan records one chunk's file and time bounds, in seconds.
type ChunkSpan struct {
	Index int     `json:"index"`
	File  string  `json:"file"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Manifest describes one pipeline run over a working directory.
type Manifest struct {
	RunID     string      `json:"run_id"`
	Input     string      `json:"input"`
	SHA256    string      `json:"sha256"`
	Mode      string      `json:"mode"`
	Model     string      `json:"model,omitempty"`
	Duration  float64     `json:"duration"`
	Cuts      []float64   `json:"cuts"`
	Chunks    []ChunkSpan `json:"chunks"`
	StartedAt time.Time   `json:"started_at"`
}

// NewManifest starts a manifest for a run with a fresh run id.
func (d Dir) NewManifest(mode, model string, now time.Time) Manifest {
	return Manifest{
		RunID:     uuid.NewString(),
		Input:     d.Input,
		SHA256:    d.SHA256,
		Mode:      mode,
		Model:     model,
		StartedAt: now.UTC(),
	}
}

// WriteManifest stores m as manifest.json.
func (d Dir) WriteManifest(m Manifest) error {
	if err := WriteJSON(d.ManifestPath(), m); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads manifest.json. A missing file yields ErrNoManifest.
func (d Dir) ReadManifest() (Manifest, error) {
	var m Manifest
	if err := ReadJSON(d.ManifestPath(), &m); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Manifest{}, ErrNoManifest
		}
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	if _, err := uuid.Parse(m.RunID); err != nil {
		return Manifest{}, fmt.Errorf("read manifest: invalid run id %q: %w", m.RunID, err)
	}
	return m, nil
}
