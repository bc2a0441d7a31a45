package audio

// Export internal functions for testing.

// ParseDurationFromFFmpegOutput exports parseDurationFromFFmpegOutput for testing.
var ParseDurationFromFFmpegOutput = parseDurationFromFFmpegOutput

// FFmpegRunner exports ffmpegRunner for testing.
type FFmpegRunner = ffmpegRunner
