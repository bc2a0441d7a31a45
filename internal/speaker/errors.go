package speaker

import "errors"

// Sentinel errors for speaker label mappings.
var (
	// ErrInvalidMapping indicates the mapping file is not a name -> labels map.
	ErrInvalidMapping = errors.New("invalid speaker mapping")

	// ErrConflictingLabel indicates a label is assigned to more than one name.
	ErrConflictingLabel = errors.New("label mapped to more than one name")
)
