package transcribe_test

// Notes:
// - mockService counts calls per path and tracks peak concurrency.
// - Cancellation tests block the first dispatched call on a channel so the
//   remaining chunks are still queued when ctx is cancelled.

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alnah/transcribe-long/internal/audio"
	"github.com/alnah/transcribe-long/internal/transcribe"
	"github.com/alnah/transcribe-long/internal/workdir"
)

type mockService struct {
	mu       sync.Mutex
	calls    map[string]int
	fail     map[string]error
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
	hook     func(ctx context.Context, path string)
}

func newMockService() *mockService {
	return &mockService{calls: map[string]int{}, fail: map[string]error{}}
}

func (m *mockService) Transcribe(ctx context.Context, path string, opts transcribe.Options) (transcribe.Result, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}

	m.mu.Lock()
	m.calls[path]++
	err := m.fail[path]
	m.mu.Unlock()

	if m.hook != nil {
		m.hook(ctx, path)
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if err != nil {
		return nil, err
	}
	return transcribe.PlainText{Content: "text of " + filepath.Base(path)}, nil
}

func (m *mockService) callCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[path]
}

func (m *mockService) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func makeChunks(dir string, n int) []audio.Chunk {
	chunks := make([]audio.Chunk, n)
	for i := range chunks {
		chunks[i] = audio.Chunk{
			Index:     i,
			Path:      filepath.Join(dir, audio.ChunkFileName(i, ".m4a")),
			StartTime: time.Duration(i) * time.Minute,
			EndTime:   time.Duration(i+1) * time.Minute,
		}
	}
	return chunks
}

// ---------------------------------------------------------------------------
// TestTranscribeAll_Isolation - N jobs, M failures
// ---------------------------------------------------------------------------

func TestTranscribeAll_Isolation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		n        int
		failing  []int
		parallel int
	}{
		{"no failures", 8, nil, 3},
		{"one failure", 8, []int{3}, 3},
		{"several failures", 12, []int{0, 5, 11}, 4},
		{"all fail", 4, []int{0, 1, 2, 3}, 2},
		{"sequential", 5, []int{2}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			chunks := makeChunks("/c", tt.n)
			svc := newMockService()
			svc.delay = time.Millisecond
			for _, i := range tt.failing {
				svc.fail[chunks[i].Path] = fmt.Errorf("boom %d", i)
			}

			got, err := transcribe.TranscribeAll(context.Background(), chunks, svc,
				transcribe.Options{Mode: transcribe.ModePlain}, nil, tt.parallel)

			if len(got) != tt.n-len(tt.failing) {
				t.Errorf("successes = %d, want %d", len(got), tt.n-len(tt.failing))
			}
			for i := 1; i < len(got); i++ {
				if got[i-1].Chunk.Index >= got[i].Chunk.Index {
					t.Fatalf("results not ordered by index: %d then %d", got[i-1].Chunk.Index, got[i].Chunk.Index)
				}
			}
			for _, c := range chunks {
				if n := svc.callCount(c.Path); n != 1 {
					t.Errorf("chunk %d called %d times, want 1", c.Index, n)
				}
			}

			if len(tt.failing) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var agg *transcribe.AggregateError
			if !errors.As(err, &agg) {
				t.Fatalf("error = %v, want *AggregateError", err)
			}
			if !errors.Is(err, transcribe.ErrChunksFailed) {
				t.Error("aggregate error should match ErrChunksFailed")
			}
			if len(agg.Failures) != len(tt.failing) {
				t.Fatalf("failures = %d, want %d", len(agg.Failures), len(tt.failing))
			}
			for i, f := range agg.Failures {
				if f.Index != tt.failing[i] {
					t.Errorf("failure[%d].Index = %d, want %d", i, f.Index, tt.failing[i])
				}
				if f.File != audio.ChunkFileName(f.Index, ".m4a") {
					t.Errorf("failure[%d].File = %q", i, f.File)
				}
			}
		})
	}
}

func TestTranscribeAll_RespectsParallelLimit(t *testing.T) {
	t.Parallel()

	svc := newMockService()
	svc.delay = 5 * time.Millisecond
	_, err := transcribe.TranscribeAll(context.Background(), makeChunks("/c", 20), svc,
		transcribe.Options{}, nil, 3)
	if err != nil {
		t.Fatal(err)
	}
	if peak := svc.peak.Load(); peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
}

func TestTranscribeAll_Empty(t *testing.T) {
	t.Parallel()

	got, err := transcribe.TranscribeAll(context.Background(), nil, newMockService(), transcribe.Options{}, nil, 2)
	if got != nil || err != nil {
		t.Errorf("TranscribeAll(nil) = %v, %v", got, err)
	}
}

func TestTranscribeAll_UnorderedInput(t *testing.T) {
	t.Parallel()

	chunks := makeChunks("/c", 4)
	chunks[0], chunks[3] = chunks[3], chunks[0]

	got, err := transcribe.TranscribeAll(context.Background(), chunks, newMockService(), transcribe.Options{}, nil, 4)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range got {
		if r.Chunk.Index != i {
			t.Errorf("got[%d].Index = %d", i, r.Chunk.Index)
		}
	}
}

// ---------------------------------------------------------------------------
// TestTranscribeAll_Store - Persistence and cache hits
// ---------------------------------------------------------------------------

func TestTranscribeAll_Store(t *testing.T) {
	t.Parallel()

	dir := workdir.Dir{Path: t.TempDir()}
	if err := dir.Ensure(); err != nil {
		t.Fatal(err)
	}
	store := transcribe.NewDirStore(dir)
	chunks := makeChunks(dir.ChunksDir(), 4)

	svc := newMockService()
	svc.fail[chunks[2].Path] = errors.New("flaky")

	_, err := transcribe.TranscribeAll(context.Background(), chunks, svc, transcribe.Options{}, store, 2)
	if !errors.Is(err, transcribe.ErrChunksFailed) {
		t.Fatalf("first run error = %v, want ErrChunksFailed", err)
	}
	for _, i := range []int{0, 1, 3} {
		if !workdir.Exists(dir.ChunkTranscriptPath(i)) {
			t.Errorf("chunk %d result not persisted", i)
		}
	}
	if workdir.Exists(dir.ChunkTranscriptPath(2)) {
		t.Error("failed chunk must not be persisted")
	}

	// Second run: only the failed chunk reaches the service.
	delete(svc.fail, chunks[2].Path)
	got, err := transcribe.TranscribeAll(context.Background(), chunks, svc, transcribe.Options{}, store, 2)
	if err != nil {
		t.Fatalf("second run error = %v", err)
	}
	if n := svc.totalCalls(); n != 5 {
		t.Errorf("total service calls = %d, want 5", n)
	}
	for _, r := range got {
		wantCached := r.Chunk.Index != 2
		if r.Cached != wantCached {
			t.Errorf("chunk %d Cached = %v, want %v", r.Chunk.Index, r.Cached, wantCached)
		}
	}
}

// ---------------------------------------------------------------------------
// TestTranscribeAll_Cancellation
// ---------------------------------------------------------------------------

func TestTranscribeAll_Cancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chunks := makeChunks("/c", 5)
	release := make(chan struct{})
	var sawCanceled atomic.Bool

	svc := newMockService()
	svc.hook = func(ctx context.Context, path string) {
		if path == chunks[0].Path {
			cancel()
			<-release
			// The service sees the cancellation and decides what to stop.
			sawCanceled.Store(ctx.Err() != nil)
		}
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	got, err := transcribe.TranscribeAll(ctx, chunks, svc, transcribe.Options{}, nil, 1)

	if len(got) != 1 || got[0].Chunk.Index != 0 {
		t.Errorf("successes = %v, want only chunk 0", got)
	}
	if !sawCanceled.Load() {
		t.Error("dispatched call should see the caller's cancellation")
	}
	var agg *transcribe.AggregateError
	if !errors.As(err, &agg) {
		t.Fatalf("error = %v, want *AggregateError", err)
	}
	if len(agg.Failures) != 4 {
		t.Fatalf("failures = %d, want 4", len(agg.Failures))
	}
	for _, f := range agg.Failures {
		if !errors.Is(f.Err, context.Canceled) {
			t.Errorf("failure %d error = %v, want context.Canceled", f.Index, f.Err)
		}
	}
	if n := svc.totalCalls(); n != 1 {
		t.Errorf("service calls = %d, want 1", n)
	}
}

// ---------------------------------------------------------------------------
// TestTranscribeAll_Progress
// ---------------------------------------------------------------------------

func TestTranscribeAll_Progress(t *testing.T) {
	t.Parallel()

	chunks := makeChunks("/c", 6)
	svc := newMockService()
	svc.fail[chunks[4].Path] = errors.New("nope")

	var (
		mu     sync.Mutex
		dones  []int
		errCnt int
	)
	_, _ = transcribe.TranscribeAll(context.Background(), chunks, svc, transcribe.Options{}, nil, 3,
		transcribe.WithProgress(func(done, total int, c audio.Chunk, err error) {
			mu.Lock()
			defer mu.Unlock()
			if total != 6 {
				t.Errorf("total = %d, want 6", total)
			}
			dones = append(dones, done)
			if err != nil {
				errCnt++
			}
		}))

	if len(dones) != 6 {
		t.Fatalf("progress called %d times, want 6", len(dones))
	}
	for i, d := range dones {
		if d != i+1 {
			t.Errorf("done[%d] = %d, want %d", i, d, i+1)
		}
	}
	if errCnt != 1 {
		t.Errorf("progress errors = %d, want 1", errCnt)
	}
}

// wrongMode returns a result variant that does not match the request.
type wrongMode struct{}

func (wrongMode) Transcribe(context.Context, string, transcribe.Options) (transcribe.Result, error) {
	return transcribe.PlainText{Content: "x"}, nil
}

func TestTranscribeAll_ModeMismatch(t *testing.T) {
	t.Parallel()

	_, err := transcribe.TranscribeAll(context.Background(), makeChunks("/c", 1), wrongMode{},
		transcribe.Options{Mode: transcribe.ModeWords}, nil, 1)
	if !errors.Is(err, transcribe.ErrChunksFailed) {
		t.Errorf("error = %v, want ErrChunksFailed", err)
	}
}
