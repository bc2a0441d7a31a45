package audio

import (
	"context"

	"github.com/alnah/transcribe-long/internal/ffmpeg"
)

// ffmpegRunner runs ffmpeg with the given arguments.
type ffmpegRunner interface {
	// RunOutput returns ffmpeg's diagnostic output, also on non-zero exit.
	RunOutput(ctx context.Context, args ...string) (string, error)
	// Run fails when ffmpeg exits non-zero.
	Run(ctx context.Context, args ...string) error
}

var _ ffmpegRunner = (*ffmpeg.Executor)(nil)
