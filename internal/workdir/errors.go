package workdir

import "errors"

// ErrInputNotFound indicates the input recording does not exist or is a directory.
var ErrInputNotFound = errors.New("input file not found")

// ErrNoManifest indicates the working directory has no manifest yet.
var ErrNoManifest = errors.New("no manifest in working directory")
