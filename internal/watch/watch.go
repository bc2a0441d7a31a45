// Package watch processes recordings as they appear in a directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/semaphore"
)

// DefaultExtensions lists the audio and video containers ffmpeg can extract
// speech from.
var DefaultExtensions = []string{
	".m4a", ".mp3", ".wav", ".ogg", ".opus", ".flac", ".aac",
	".mp4", ".mov", ".mkv", ".webm", ".m4v",
}

const (
	defaultSettle   = 2 * time.Second
	defaultParallel = 1
)

// Handler processes one recording.
type Handler func(ctx context.Context, path string) error

// Watcher dispatches new recordings in one directory to a Handler.
//
// A file is dispatched once it has received no write for the settle period,
// so recordings still being copied are not picked up half-written. Each path
// is dispatched at most once per Watcher.
type Watcher struct {
	dir      string
	handler  Handler
	exts     []string
	settle   time.Duration
	parallel int64
	existing bool
	onStart  func(path string)
	onDone   func(path string, err error)

	fsw *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithExtensions replaces DefaultExtensions. Matching is case-insensitive.
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) {
		w.exts = make([]string, len(exts))
		for i, e := range exts {
			w.exts[i] = strings.ToLower(e)
		}
	}
}

// WithSettle sets how long a file must stay unchanged before dispatch.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// WithParallel bounds the number of recordings handled concurrently.
func WithParallel(n int) Option {
	return func(w *Watcher) {
		if n > 0 {
			w.parallel = int64(n)
		}
	}
}

// WithExisting also dispatches recordings present when Run starts.
func WithExisting(v bool) Option {
	return func(w *Watcher) { w.existing = v }
}

// WithOnStart sets a callback invoked when a recording is dispatched.
func WithOnStart(fn func(path string)) Option {
	return func(w *Watcher) { w.onStart = fn }
}

// WithOnDone sets a callback invoked with each handler result.
func WithOnDone(fn func(path string, err error)) Option {
	return func(w *Watcher) { w.onDone = fn }
}

// New starts watching dir. Events arriving before Run are buffered by the
// kernel and handled once Run starts. Call Close when Run is not used.
func New(dir string, handler Handler, opts ...Option) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch %s: %w", dir, ErrNotDirectory)
	}

	w := &Watcher{
		dir:      dir,
		handler:  handler,
		exts:     DefaultExtensions,
		settle:   defaultSettle,
		parallel: defaultParallel,
		onStart:  func(string) {},
		onDone:   func(string, error) {},
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	w.fsw = fsw
	return w, nil
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Matches reports whether path has one of the watched extensions and is
// not a hidden file.
func (w *Watcher) Matches(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return slices.Contains(w.exts, strings.ToLower(filepath.Ext(base)))
}

// Run handles recordings until ctx is canceled, then waits for in-flight
// handlers and returns ctx.Err(). Run closes the watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	var (
		wg         sync.WaitGroup
		sem        = semaphore.NewWeighted(w.parallel)
		ready      = make(chan string)
		pending    = make(map[string]*time.Timer)
		dispatched = make(map[string]bool)
	)

	stopTimers := func() {
		for _, t := range pending {
			t.Stop()
		}
	}

	schedule := func(path string) {
		if dispatched[path] || !w.Matches(path) {
			return
		}
		if t, ok := pending[path]; ok {
			t.Reset(w.settle)
			return
		}
		pending[path] = time.AfterFunc(w.settle, func() {
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}

	dispatch := func(path string) {
		dispatched[path] = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)
			w.onStart(path)
			w.onDone(path, w.handler(ctx, path))
		}()
	}

	if w.existing {
		entries, err := os.ReadDir(w.dir)
		if err != nil {
			return fmt.Errorf("watch %s: %w", w.dir, err)
		}
		for _, e := range entries {
			if e.Type().IsRegular() {
				schedule(filepath.Join(w.dir, e.Name()))
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			stopTimers()
			wg.Wait()
			return ctx.Err()

		case path := <-ready:
			if _, ok := pending[path]; !ok {
				continue
			}
			delete(pending, path)
			if _, err := os.Stat(path); err != nil {
				continue // removed before it settled
			}
			dispatch(path)

		case event, ok := <-w.fsw.Events:
			if !ok {
				stopTimers()
				wg.Wait()
				return ErrWatcherClosed
			}
			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				schedule(event.Name)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				if t, ok := pending[event.Name]; ok {
					t.Stop()
					delete(pending, event.Name)
				}
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				stopTimers()
				wg.Wait()
				return ErrWatcherClosed
			}
			w.onDone(w.dir, fmt.Errorf("watch: %w", err))
		}
	}
}
