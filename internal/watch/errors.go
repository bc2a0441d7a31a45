package watch

import "errors"

// ErrNotDirectory indicates the watched path is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// ErrWatcherClosed indicates fsnotify closed its channels unexpectedly.
var ErrWatcherClosed = errors.New("watcher closed")
