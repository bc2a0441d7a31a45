package ffmpeg

import "errors"

// ErrNotFound indicates no usable ffmpeg binary was found.
var ErrNotFound = errors.New("ffmpeg not found")

// ErrFailed indicates ffmpeg exited with an error.
var ErrFailed = errors.New("ffmpeg failed")
