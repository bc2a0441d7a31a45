package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/alnah/transcribe-long/internal/format"
	"github.com/alnah/transcribe-long/internal/silence"
	"github.com/alnah/transcribe-long/internal/workdir"
)

// Default cut selection parameters, in seconds.
const (
	DefaultEvery         = 1200.0
	DefaultWindow        = 90.0
	DefaultStopBeforeEnd = 30.0
)

// Segmentation is the result of segmenting one input.
type Segmentation struct {
	Chunks   []Chunk
	Cuts     []silence.CutPoint
	Duration time.Duration
	Silences int
	Stats    silence.Stats
	Reused   bool // chunk files from a previous run were kept
}

// Segmenter extracts audio, detects silences, chooses cuts and splits.
// Every intermediate file lives in the working directory and is reused when
// present.
type Segmenter struct {
	proc          Processor
	every         float64
	window        silence.Optional
	stopBeforeEnd float64
}

// SegmenterOption configures a Segmenter.
type SegmenterOption func(*Segmenter)

// WithEvery sets the target chunk spacing in seconds.
func WithEvery(seconds float64) SegmenterOption {
	return func(s *Segmenter) { s.every = seconds }
}

// WithWindow sets the cut search window. An absent Optional disables it.
func WithWindow(w silence.Optional) SegmenterOption {
	return func(s *Segmenter) { s.window = w }
}

// WithStopBeforeEnd keeps cuts at least this many seconds from the end.
func WithStopBeforeEnd(seconds float64) SegmenterOption {
	return func(s *Segmenter) { s.stopBeforeEnd = seconds }
}

// NewSegmenter creates a Segmenter backed by proc.
func NewSegmenter(proc Processor, opts ...SegmenterOption) *Segmenter {
	s := &Segmenter{
		proc:          proc,
		every:         DefaultEvery,
		window:        silence.Some(DefaultWindow),
		stopBeforeEnd: DefaultStopBeforeEnd,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// cutRecord is persisted next to the chunks so a rerun can tell whether the
// chunk files on disk were produced by the same cuts.
type cutRecord struct {
	Duration float64   `json:"duration"`
	Cuts     []float64 `json:"cuts"`
}

// Segment turns input into chunks inside dir. The measured duration of the
// extracted audio is the duration used for cut selection and chunk spans.
func (s *Segmenter) Segment(ctx context.Context, input string, dir workdir.Dir) (Segmentation, error) {
	if err := dir.Ensure(); err != nil {
		return Segmentation{}, err
	}

	audioPath, err := s.extract(ctx, input, dir)
	if err != nil {
		return Segmentation{}, err
	}

	log, err := s.silenceLog(ctx, audioPath, dir)
	if err != nil {
		return Segmentation{}, err
	}
	intervals, stats, err := silence.ParseLogStats(strings.NewReader(log))
	if err != nil {
		return Segmentation{}, err
	}

	duration, err := s.proc.Duration(ctx, audioPath)
	if err != nil {
		return Segmentation{}, err
	}
	seconds := format.Seconds(duration)

	cuts, err := silence.SelectCuts(silence.Mids(intervals), silence.Params{
		Every:         s.every,
		Duration:      silence.Some(seconds),
		Window:        s.window,
		StopBeforeEnd: s.stopBeforeEnd,
	})
	if err != nil {
		return Segmentation{}, err
	}
	chosen := silence.Chosen(cuts)

	seg := Segmentation{
		Cuts:     cuts,
		Duration: duration,
		Silences: len(intervals),
		Stats:    stats,
	}

	if chunks, ok := s.reuse(dir, chosen, seconds); ok {
		seg.Chunks, seg.Reused = chunks, true
		return seg, nil
	}

	files, err := s.proc.Split(ctx, audioPath, chosen, dir.ChunksDir())
	if err != nil {
		return Segmentation{}, err
	}
	chunks, err := BuildChunks(files, chosen, seconds)
	if err != nil {
		return Segmentation{}, err
	}
	if err := workdir.WriteJSON(dir.CutsPath(), cutRecord{Duration: seconds, Cuts: chosen}); err != nil {
		return Segmentation{}, err
	}

	seg.Chunks = chunks
	return seg, nil
}

// extract writes the audio track once; an existing audio.m4a is reused.
func (s *Segmenter) extract(ctx context.Context, input string, dir workdir.Dir) (string, error) {
	dest := dir.AudioPath()
	if workdir.Exists(dest) {
		return dest, nil
	}

	// ffmpeg picks the container from the extension, so the partial file
	// keeps it.
	partial := dir.Join("audio.partial.m4a")
	if err := s.proc.Extract(ctx, input, partial); err != nil {
		_ = os.Remove(partial)
		return "", err
	}
	if err := os.Rename(partial, dest); err != nil {
		return "", fmt.Errorf("store extracted audio: %w", err)
	}
	return dest, nil
}

func (s *Segmenter) silenceLog(ctx context.Context, audioPath string, dir workdir.Dir) (string, error) {
	path := dir.SilenceLogPath()
	// #nosec G304 -- path is inside the working directory
	data, err := os.ReadFile(path)
	if err == nil {
		return string(data), nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read silence log: %w", err)
	}

	log, err := s.proc.DetectSilence(ctx, audioPath)
	if err != nil {
		return "", err
	}
	if err := workdir.WriteFileAtomic(path, []byte(log)); err != nil {
		return "", err
	}
	return log, nil
}

// reuse returns the existing chunks when they were cut at exactly the same
// points over the same duration.
func (s *Segmenter) reuse(dir workdir.Dir, cuts []float64, duration float64) ([]Chunk, bool) {
	var rec cutRecord
	if err := workdir.ReadJSON(dir.CutsPath(), &rec); err != nil {
		return nil, false
	}
	if rec.Duration != duration || !slices.Equal(rec.Cuts, cuts) {
		return nil, false
	}
	files, err := ListChunkFiles(dir.ChunksDir(), "")
	if err != nil {
		return nil, false
	}
	chunks, err := BuildChunks(files, cuts, duration)
	if err != nil {
		return nil, false
	}
	return chunks, true
}
