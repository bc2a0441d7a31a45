package assemble

import "errors"

// ErrNoTextFound indicates every part was blank.
var ErrNoTextFound = errors.New("no transcript text found")
