package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/transcribe-long/internal/format"
)

// Processor is the audio tool the segmenter delegates to.
type Processor interface {
	// Extract writes the audio track of input to dest.
	Extract(ctx context.Context, input, dest string) error
	// DetectSilence returns a silencedetect log for audio.
	DetectSilence(ctx context.Context, audio string) (string, error)
	// Split cuts audio at cuts (seconds) into chunk files in dir, returning
	// their paths. The files span [0,cut1], [cut1,cut2], ..., [cutN,end].
	Split(ctx context.Context, audio string, cuts []float64, dir string) ([]string, error)
	// Duration measures the length of audio.
	Duration(ctx context.Context, audio string) (time.Duration, error)
}

var _ Processor = (*FFmpegProcessor)(nil)

// Default silencedetect parameters.
const (
	// defaultNoiseDB is the silence threshold.
	defaultNoiseDB = -35.0

	// defaultMinSilence is the shortest pause reported as silence.
	defaultMinSilence = 400 * time.Millisecond

	// defaultChunkExt keeps the extracted AAC stream without re-encoding.
	defaultChunkExt = ".m4a"
)

// FFmpegProcessor implements Processor with ffmpeg subprocesses.
type FFmpegProcessor struct {
	ffmpeg     ffmpegRunner
	noiseDB    float64
	minSilence time.Duration
	chunkExt   string
	warn       WarnFunc
}

// WarnFunc receives non-fatal warnings.
type WarnFunc func(msg string)

// ProcessorOption configures an FFmpegProcessor.
type ProcessorOption func(*FFmpegProcessor)

// WithNoiseDB sets the silence detection threshold in dB.
func WithNoiseDB(db float64) ProcessorOption {
	return func(p *FFmpegProcessor) { p.noiseDB = db }
}

// WithMinSilence sets the minimum silence duration to detect.
func WithMinSilence(d time.Duration) ProcessorOption {
	return func(p *FFmpegProcessor) { p.minSilence = d }
}

// WithChunkExt sets the chunk file extension, including the dot.
func WithChunkExt(ext string) ProcessorOption {
	return func(p *FFmpegProcessor) { p.chunkExt = ext }
}

// WithWarnFunc sets the warning callback. nil discards warnings.
func WithWarnFunc(fn WarnFunc) ProcessorOption {
	return func(p *FFmpegProcessor) { p.warn = fn }
}

// NewFFmpegProcessor creates a processor that runs ffmpeg through runner,
// typically an *ffmpeg.Executor.
func NewFFmpegProcessor(runner ffmpegRunner, opts ...ProcessorOption) *FFmpegProcessor {
	p := &FFmpegProcessor{
		ffmpeg:     runner,
		noiseDB:    defaultNoiseDB,
		minSilence: defaultMinSilence,
		chunkExt:   defaultChunkExt,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *FFmpegProcessor) warnf(msg string, args ...any) {
	if p.warn != nil {
		p.warn(fmt.Sprintf(msg, args...))
	}
}

// Extract copies the first audio stream of input into dest. When the stream
// cannot be copied into dest's container, it is re-encoded to AAC.
func (p *FFmpegProcessor) Extract(ctx context.Context, input, dest string) error {
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("%w: %s", ErrFileNotFound, input)
	}

	base := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", input, "-vn", "-map", "0:a:0"}

	copyArgs := append(slices.Clone(base), "-c:a", "copy", dest)
	err := p.ffmpeg.Run(ctx, copyArgs...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	p.warnf("Warning: audio stream copy failed, re-encoding to AAC")
	encodeArgs := append(slices.Clone(base), "-c:a", "aac", "-b:a", "96k", dest)
	if err := p.ffmpeg.Run(ctx, encodeArgs...); err != nil {
		return fmt.Errorf("%w: extract audio from %s: %w", ErrChunkingFailed, input, err)
	}
	return nil
}

// DetectSilence runs silencedetect over audio and returns ffmpeg's log.
func (p *FFmpegProcessor) DetectSilence(ctx context.Context, audio string) (string, error) {
	args := []string{
		"-hide_banner",
		"-i", audio,
		"-vn",
		"-af", fmt.Sprintf("silencedetect=noise=%sdB:d=%s",
			format.Float(p.noiseDB, 2), format.Float(p.minSilence.Seconds(), 3)),
		"-f", "null",
		"-",
	}

	output, err := p.ffmpeg.RunOutput(ctx, args...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// ffmpeg may exit non-zero after printing a usable log.
		if output == "" {
			return "", fmt.Errorf("%w: silencedetect: %w", ErrChunkingFailed, err)
		}
		p.warnf("Warning: silencedetect exited with %v, using partial log", err)
	}
	return output, nil
}

// Split cuts audio with ffmpeg's segment muxer, copying the stream. Stale
// chunk files in dir are removed first.
func (p *FFmpegProcessor) Split(ctx context.Context, audio string, cuts []float64, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create chunks directory: %w", err)
	}
	if err := removeChunkFiles(dir); err != nil {
		return nil, err
	}

	var args []string
	if len(cuts) == 0 {
		args = []string{
			"-hide_banner", "-loglevel", "error", "-y",
			"-i", audio, "-vn", "-c", "copy",
			filepath.Join(dir, ChunkFileName(0, p.chunkExt)),
		}
	} else {
		times := make([]string, len(cuts))
		for i, c := range cuts {
			times[i] = format.Float(c, 6)
		}
		args = []string{
			"-hide_banner", "-loglevel", "error", "-y",
			"-i", audio, "-vn",
			"-f", "segment",
			"-segment_times", strings.Join(times, ","),
			"-reset_timestamps", "1",
			"-c", "copy",
			filepath.Join(dir, "chunk_%03d"+p.chunkExt),
		}
	}

	if err := p.ffmpeg.Run(ctx, args...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: split %s: %w", ErrChunkingFailed, audio, err)
	}

	return ListChunkFiles(dir, p.chunkExt)
}

// Duration probes audio with ffmpeg and parses the "Duration:" header.
func (p *FFmpegProcessor) Duration(ctx context.Context, audio string) (time.Duration, error) {
	// Without an output file ffmpeg exits 1 after printing the input header.
	output, _ := p.ffmpeg.RunOutput(ctx, "-hide_banner", "-i", audio)
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	d, err := parseDurationFromFFmpegOutput(output)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrNoDuration, audio)
	}
	return d, nil
}

// ListChunkFiles returns the chunk files with extension ext in dir, ordered
// by chunk index.
func ListChunkFiles(dir, ext string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "chunk_*"+ext))
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	files := matches[:0]
	for _, m := range matches {
		if _, ok := ChunkIndexFromName(m); ok {
			files = append(files, m)
		}
	}
	slices.SortFunc(files, func(a, b string) int {
		ia, _ := ChunkIndexFromName(a)
		ib, _ := ChunkIndexFromName(b)
		return ia - ib
	})
	return files, nil
}

func removeChunkFiles(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "chunk_*"))
	if err != nil {
		return fmt.Errorf("list stale chunks: %w", err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return fmt.Errorf("remove stale chunk: %w", err)
		}
	}
	return nil
}

var (
	durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)
	timeRe     = regexp.MustCompile(`time=(\d+):(\d+):(\d+)\.(\d+)`)
)

// parseDurationFromFFmpegOutput extracts duration from ffmpeg output.
// Looks for "Duration: HH:MM:SS.ff", else the last "time=HH:MM:SS.ff".
func parseDurationFromFFmpegOutput(output string) (time.Duration, error) {
	if m := durationRe.FindStringSubmatch(output); m != nil {
		return parseTimeComponents(m[1], m[2], m[3], m[4])
	}

	if all := timeRe.FindAllStringSubmatch(output, -1); len(all) > 0 {
		m := all[len(all)-1]
		return parseTimeComponents(m[1], m[2], m[3], m[4])
	}

	return 0, fmt.Errorf("no duration in ffmpeg output")
}

// parseTimeComponents converts HH, MM, SS and a fractional digit string to
// a Duration, keeping up to microsecond precision.
func parseTimeComponents(hours, minutes, seconds, fractional string) (time.Duration, error) {
	h, err := strconv.Atoi(hours)
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(minutes)
	if err != nil {
		return 0, err
	}
	s, err := strconv.Atoi(seconds)
	if err != nil {
		return 0, err
	}

	if len(fractional) > 6 {
		fractional = fractional[:6]
	}
	frac, err := strconv.Atoi(fractional)
	if err != nil {
		return 0, err
	}
	for range 6 - len(fractional) {
		frac *= 10
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(frac)*time.Microsecond, nil
}
