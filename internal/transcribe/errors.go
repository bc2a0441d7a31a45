package transcribe

import "errors"

// ErrAPIKeyMissing indicates OPENAI_API_KEY environment variable is not set.
var ErrAPIKeyMissing = errors.New("OPENAI_API_KEY environment variable not set")

// ErrChunksFailed is matched by an *AggregateError with errors.Is.
var ErrChunksFailed = errors.New("chunk transcription failed")

// ErrUnknownMode indicates an unsupported transcription mode name.
var ErrUnknownMode = errors.New("unknown transcription mode")
