package diarize

import "errors"

// Sentinel errors for diarization.
var (
	// ErrMalformedRTTM indicates an RTTM SPEAKER record could not be parsed.
	ErrMalformedRTTM = errors.New("malformed RTTM")

	// ErrNoCommand indicates a CommandDiarizer was created without a command.
	ErrNoCommand = errors.New("no diarization command configured")

	// ErrCommandFailed indicates the external diarization command failed.
	ErrCommandFailed = errors.New("diarization command failed")
)
