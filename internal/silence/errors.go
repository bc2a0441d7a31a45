package silence

import "errors"

// ErrInvalidEvery indicates a non-positive target spacing.
var ErrInvalidEvery = errors.New("every must be greater than zero")

// ErrUnknownFormat indicates an output format name that is not supported.
var ErrUnknownFormat = errors.New("unknown cut format")
