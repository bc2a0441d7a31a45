package transcribe

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/alnah/transcribe-long/internal/audio"
)

// MaxRecommendedParallel is the recommended upper limit for concurrent API requests.
// Higher values may trigger rate limiting.
const MaxRecommendedParallel = 10

// ChunkResult is a successful chunk transcription.
type ChunkResult struct {
	Chunk  audio.Chunk
	Result Result
	Cached bool // loaded from the Store, the service was not called
}

// Transcript returns the chunk's text record.
func (r ChunkResult) Transcript() ChunkTranscript {
	return ChunkTranscript{
		Index:     r.Chunk.Index,
		Text:      r.Result.Text(),
		ChunkFile: filepath.Base(r.Chunk.Path),
	}
}

// ChunkFailure records why one chunk could not be transcribed.
type ChunkFailure struct {
	Index int
	File  string
	Err   error
}

func (f ChunkFailure) Error() string {
	return fmt.Sprintf("chunk %d (%s): %v", f.Index, f.File, f.Err)
}

func (f ChunkFailure) Unwrap() error { return f.Err }

// AggregateError lists every chunk that failed, ordered by index. Successful
// chunks of the same run are returned alongside it and are already persisted.
type AggregateError struct {
	Failures []ChunkFailure
	Total    int
}

func (e *AggregateError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d chunks failed", len(e.Failures), e.Total)
	for _, f := range e.Failures {
		b.WriteString("\n  ")
		b.WriteString(f.Error())
	}
	return b.String()
}

// Unwrap exposes ErrChunksFailed and every per-chunk failure to errors.Is/As.
func (e *AggregateError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+1)
	errs = append(errs, ErrChunksFailed)
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}

// Progress is called once per chunk as it finishes, with err nil on success.
// Calls are serialized.
type Progress func(done, total int, chunk audio.Chunk, err error)

type scheduleConfig struct {
	progress Progress
}

// ScheduleOption configures TranscribeAll.
type ScheduleOption func(*scheduleConfig)

// WithProgress sets the per-chunk completion callback.
func WithProgress(fn Progress) ScheduleOption {
	return func(c *scheduleConfig) { c.progress = fn }
}

// TranscribeAll transcribes every chunk exactly once with at most parallel
// service calls in flight.
//
// A failing chunk never stops its siblings. Successful results are saved to
// store (when non-nil) before they are returned; chunks already in store are
// not sent to the service. Results come back ordered by chunk index. When
// any chunk fails, the error is an *AggregateError and the successful
// results are still returned.
//
// Cancelling ctx stops chunks that have not started: they are recorded as
// failures with the context error. Calls already dispatched keep ctx, and a
// Service must let a request already sent finish; it may stop retrying.
func TranscribeAll(
	ctx context.Context,
	chunks []audio.Chunk,
	svc Service,
	opts Options,
	store Store,
	parallel int,
	options ...ScheduleOption,
) ([]ChunkResult, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	var cfg scheduleConfig
	for _, o := range options {
		o(&cfg)
	}

	parallel = max(parallel, 1)

	// Each goroutine owns its slot.
	results := make([]*ChunkResult, len(chunks))
	errs := make([]error, len(chunks))

	var (
		mu   sync.Mutex
		done int
	)
	report := func(c audio.Chunk, err error) {
		if cfg.progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		cfg.progress(done, len(chunks), c, err)
	}

	var g errgroup.Group
	g.SetLimit(parallel)

	for i, chunk := range chunks {
		g.Go(func() error {
			r, cached, err := transcribeOne(ctx, chunk, svc, opts, store)
			if err != nil {
				errs[i] = err
			} else {
				results[i] = &ChunkResult{Chunk: chunk, Result: r, Cached: cached}
			}
			report(chunk, err)
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors

	var (
		ok       []ChunkResult
		failures []ChunkFailure
	)
	for i, chunk := range chunks {
		if errs[i] != nil {
			failures = append(failures, ChunkFailure{
				Index: chunk.Index,
				File:  filepath.Base(chunk.Path),
				Err:   errs[i],
			})
			continue
		}
		ok = append(ok, *results[i])
	}

	slices.SortFunc(ok, func(a, b ChunkResult) int { return a.Chunk.Index - b.Chunk.Index })
	if len(failures) == 0 {
		return ok, nil
	}
	slices.SortFunc(failures, func(a, b ChunkFailure) int { return a.Index - b.Index })
	return ok, &AggregateError{Failures: failures, Total: len(chunks)}
}

func transcribeOne(ctx context.Context, chunk audio.Chunk, svc Service, opts Options, store Store) (Result, bool, error) {
	if store != nil {
		if r, ok := store.Load(chunk, opts); ok {
			return r, true, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	// The service finishes an attempt already sent even if ctx is cancelled,
	// so a completed response is still saved.
	r, err := svc.Transcribe(ctx, chunk.Path, opts)
	if err != nil {
		return nil, false, err
	}
	if r == nil {
		return nil, false, fmt.Errorf("service returned no result")
	}
	if r.Mode() != opts.Mode {
		return nil, false, fmt.Errorf("service returned %s result for %s request", r.Mode(), opts.Mode)
	}

	if store != nil {
		if err := store.Save(chunk, opts, r); err != nil {
			return nil, false, err
		}
	}
	return r, false, nil
}
