package diarize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/alnah/transcribe-long/internal/speaker"
)

// AudioPlaceholder is replaced by the audio path in command arguments.
const AudioPlaceholder = "{audio}"

// commandRunner runs a command and returns its stdout.
type commandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// CommandDiarizer runs an external program that prints RTTM to stdout.
type CommandDiarizer struct {
	argv []string
	run  commandRunner
}

// CommandOption configures a CommandDiarizer.
type CommandOption func(*CommandDiarizer)

// withRunner replaces process execution. Used by tests.
func withRunner(r commandRunner) CommandOption {
	return func(d *CommandDiarizer) { d.run = r }
}

// NewCommandDiarizer returns a diarizer running argv. Arguments equal to or
// containing AudioPlaceholder get the audio path substituted; without a
// placeholder the path is appended as the last argument.
func NewCommandDiarizer(argv []string, opts ...CommandOption) (*CommandDiarizer, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, ErrNoCommand
	}
	d := &CommandDiarizer{argv: append([]string(nil), argv...), run: runCommand}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Diarize runs the command for audioPath and parses its output.
func (d *CommandDiarizer) Diarize(ctx context.Context, audioPath string) ([]speaker.Segment, error) {
	args := make([]string, 0, len(d.argv))
	substituted := false
	for _, a := range d.argv[1:] {
		if strings.Contains(a, AudioPlaceholder) {
			a = strings.ReplaceAll(a, AudioPlaceholder, audioPath)
			substituted = true
		}
		args = append(args, a)
	}
	if !substituted {
		args = append(args, audioPath)
	}

	stdout, stderr, err := d.run(ctx, d.argv[0], args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			return nil, fmt.Errorf("%w: %s: %v", ErrCommandFailed, d.argv[0], err)
		}
		return nil, fmt.Errorf("%w: %s: %v\n%s", ErrCommandFailed, d.argv[0], err, msg)
	}
	segments, err := ParseRTTM(bytes.NewReader(stdout))
	if err != nil {
		return nil, fmt.Errorf("%s output: %w", d.argv[0], err)
	}
	return segments, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 -- command configured by the user
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		err = fmt.Errorf("exit status %d", exitErr.ExitCode())
	}
	return stdout.Bytes(), stderr.Bytes(), err
}
