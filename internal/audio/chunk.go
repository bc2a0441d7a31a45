package audio

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/alnah/transcribe-long/internal/format"
)

// Chunk is one contiguous slice of the source recording.
type Chunk struct {
	Index     int           // Zero-based, matches the number in the file name.
	Path      string        // Path to the chunk file.
	StartTime time.Duration // Start in the source audio.
	EndTime   time.Duration // End in the source audio.
}

// Duration returns the length of this chunk.
func (c Chunk) Duration() time.Duration {
	return c.EndTime - c.StartTime
}

// String returns a human-readable representation for logging.
func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d: %s-%s",
		c.Index,
		format.Duration(c.StartTime),
		format.Duration(c.EndTime))
}

// ChunkFileName returns the canonical file name for chunk index.
func ChunkFileName(index int, ext string) string {
	return fmt.Sprintf("chunk_%03d%s", index, ext)
}

var chunkIndexRe = regexp.MustCompile(`chunk_(\d+)`)

// ChunkIndexFromName extracts the chunk index from a file name such as
// "chunk_003.m4a". The file name, not directory listing order, is the
// source of chunk ordering.
func ChunkIndexFromName(name string) (int, bool) {
	m := chunkIndexRe.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Boundaries returns [0, cuts..., duration].
func Boundaries(cuts []float64, duration float64) []float64 {
	b := make([]float64, 0, len(cuts)+2)
	b = append(b, 0)
	b = append(b, cuts...)
	return append(b, duration)
}

// BuildChunks pairs chunk files with their time spans. Files are ordered by
// the index in their names, which must form 0..len(cuts). Spans are the
// consecutive boundaries [0, cut1), [cut1, cut2), ..., [cutN, duration).
func BuildChunks(files []string, cuts []float64, duration float64) ([]Chunk, error) {
	type indexed struct {
		index int
		path  string
	}
	entries := make([]indexed, 0, len(files))
	for _, f := range files {
		i, ok := ChunkIndexFromName(f)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no chunk index", ErrChunkMismatch, filepath.Base(f))
		}
		entries = append(entries, indexed{index: i, path: f})
	}
	slices.SortFunc(entries, func(a, b indexed) int { return a.index - b.index })

	if len(entries) != len(cuts)+1 {
		return nil, fmt.Errorf("%w: %d files for %d cuts", ErrChunkMismatch, len(entries), len(cuts))
	}

	bounds := Boundaries(cuts, duration)
	chunks := make([]Chunk, len(entries))
	for i, e := range entries {
		if e.index != i {
			return nil, fmt.Errorf("%w: expected chunk %d, found %s", ErrChunkMismatch, i, filepath.Base(e.path))
		}
		chunks[i] = Chunk{
			Index:     i,
			Path:      e.path,
			StartTime: format.FromSeconds(bounds[i]),
			EndTime:   format.FromSeconds(bounds[i+1]),
		}
	}
	return chunks, nil
}
