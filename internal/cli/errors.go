package cli

import "errors"

// CLI-specific sentinel errors.
// These are validation/usage errors that don't belong to domain packages.

var (
	// ErrAPIKeyMissing indicates a required API key environment variable is not set.
	ErrAPIKeyMissing = errors.New("API key environment variable not set")

	// ErrUnsupportedFormat indicates an input file has an unsupported extension.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrFileNotFound indicates the specified input file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrOutputExists indicates the output file already exists.
	ErrOutputExists = errors.New("output file already exists")

	// ErrNoSilences indicates a silence log contained no silence interval.
	ErrNoSilences = errors.New("no silences found")

	// ErrNoCuts indicates no cut point could be selected.
	ErrNoCuts = errors.New("no cut points selected")

	// ErrIncompatibleFlags indicates flags that cannot be used together.
	ErrIncompatibleFlags = errors.New("incompatible flags")

	// ErrInvalidFlag indicates a flag value that cannot be parsed.
	ErrInvalidFlag = errors.New("invalid flag value")
)
