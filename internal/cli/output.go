package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alnah/transcribe-long/internal/audio"
	"github.com/alnah/transcribe-long/internal/format"
	"github.com/alnah/transcribe-long/internal/pipeline"
	"github.com/alnah/transcribe-long/internal/transcribe"
)

// statusPrinter returns a callback writing one status line to w, prefixed
// with [prefix] when prefix is set.
func statusPrinter(w io.Writer, prefix string) func(string) {
	return func(msg string) {
		if prefix != "" {
			_, _ = fmt.Fprintf(w, "[%s] %s\n", prefix, msg)
			return
		}
		_, _ = fmt.Fprintln(w, msg)
	}
}

// progressPrinter returns a scheduler callback writing one "ok" or "ERR"
// line per finished chunk.
func progressPrinter(w io.Writer, prefix string) transcribe.Progress {
	status := statusPrinter(w, prefix)
	return func(done, total int, c audio.Chunk, err error) {
		name := filepath.Base(c.Path)
		if err != nil {
			status(fmt.Sprintf("  ERR %s (%d/%d): %v", name, done, total, err))
			return
		}
		status(fmt.Sprintf("  ok  %s %s-%s (%d/%d)", name,
			format.Duration(c.StartTime), format.Duration(c.EndTime), done, total))
	}
}

// printSummary reports the artifacts of a finished run.
func printSummary(w io.Writer, prefix string, out pipeline.Output) {
	status := statusPrinter(w, prefix)
	if out.Cached > 0 {
		status(fmt.Sprintf("Reused %d cached chunk transcripts", out.Cached))
	}
	if out.Speakers > 0 {
		status(fmt.Sprintf("%d speakers", out.Speakers))
	}
	status("Records: " + out.Artifacts.Records)
	if out.Artifacts.Speakers != "" {
		status(fmt.Sprintf("Speaker roster: %s (name the labels, then run: transcribe-long label %s)",
			out.Artifacts.Speakers, out.Artifacts.Transcript))
	}
	status("Done: " + out.Artifacts.Transcript)
}

// writeFileAtomic writes content to path atomically.
// It fails if the file already exists (O_EXCL), preventing accidental overwrites.
// On write failure, the partial file is removed.
func writeFileAtomic(path, content string) error {
	// #nosec G302 G304 -- user-specified output file with standard permissions
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("output file already exists: %s: %w", path, ErrOutputExists)
		}
		return fmt.Errorf("cannot create output file: %w", err)
	}

	writeErr := func() error {
		defer func() { _ = f.Close() }()
		if _, err := f.WriteString(content); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}()

	if writeErr != nil {
		_ = os.Remove(path)
		return writeErr
	}

	return nil
}
