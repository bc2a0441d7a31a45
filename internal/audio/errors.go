package audio

import "errors"

// ErrFileNotFound indicates the specified input file does not exist.
var ErrFileNotFound = errors.New("file not found")

// ErrChunkingFailed indicates ffmpeg failed while extracting or splitting audio.
var ErrChunkingFailed = errors.New("audio chunking failed")

// ErrChunkMismatch indicates the chunk files on disk do not match the cut list.
var ErrChunkMismatch = errors.New("chunk files do not match cuts")

// ErrNoDuration indicates the audio duration could not be determined.
var ErrNoDuration = errors.New("could not determine audio duration")
