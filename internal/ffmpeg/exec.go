package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// runOutputFn runs a command and returns its combined output.
type runOutputFn func(ctx context.Context, path string, args []string) (string, error)

// Executor runs ffmpeg with an injectable process runner.
type Executor struct {
	path      string
	runOutput runOutputFn
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRunOutput sets a custom runOutput function (for testing).
func WithRunOutput(fn runOutputFn) ExecutorOption {
	return func(e *Executor) { e.runOutput = fn }
}

// NewExecutor creates an Executor for the ffmpeg binary at path.
func NewExecutor(path string, opts ...ExecutorOption) *Executor {
	e := &Executor{
		path:      path,
		runOutput: defaultRunOutput,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Path returns the ffmpeg binary this executor runs.
func (e *Executor) Path() string {
	return e.path
}

// RunOutput executes ffmpeg and returns its output, which carries the
// diagnostic output (probe info, silencedetect lines) even when the exit
// status is non-zero.
func (e *Executor) RunOutput(ctx context.Context, args ...string) (string, error) {
	return e.runOutput(ctx, e.path, args)
}

// Run executes ffmpeg and fails with ErrFailed, including the tail of its
// output, on a non-zero exit.
func (e *Executor) Run(ctx context.Context, args ...string) error {
	out, err := e.runOutput(ctx, e.path, args)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v\n%s", ErrFailed, err, tail(out, 10))
	}
	return nil
}

func defaultRunOutput(ctx context.Context, ffmpegPath string, args []string) (string, error) {
	// #nosec G204 -- ffmpegPath is resolved by Resolver, args are built internally
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)

	// -version prints to stdout; everything else of interest goes to stderr.
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	return out.String(), err
}

// tail returns the last n non-empty lines of s.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
