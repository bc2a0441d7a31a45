// Package diarize provides speaker diarizers that produce recording-wide
// speaker segments. Diarization itself happens outside this program (for
// example with pyannote); segments are exchanged as RTTM.
package diarize

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/alnah/transcribe-long/internal/speaker"
)

// Diarizer returns the speaker segments of an audio file.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string) ([]speaker.Segment, error)
}

var (
	_ Diarizer = (*RTTMDiarizer)(nil)
	_ Diarizer = (*CommandDiarizer)(nil)
)

// ParseRTTM reads SPEAKER records:
//
//	SPEAKER <file> <chan> <onset> <duration> <NA> <NA> <speaker> <NA> <NA>
//
// Other record types, comments (";;") and blank lines are ignored. The
// segments are returned ordered by start time.
func ParseRTTM(r io.Reader) ([]speaker.Segment, error) {
	var segments []speaker.Segment
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";;") {
			continue
		}
		fields := strings.Fields(line)
		if fields[0] != "SPEAKER" {
			continue
		}
		if len(fields) < 8 {
			return nil, fmt.Errorf("%w: line %d: want at least 8 fields, got %d", ErrMalformedRTTM, lineNo, len(fields))
		}
		onset, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: onset %q", ErrMalformedRTTM, lineNo, fields[3])
		}
		dur, err := strconv.ParseFloat(fields[4], 64)
		if err != nil || dur < 0 {
			return nil, fmt.Errorf("%w: line %d: duration %q", ErrMalformedRTTM, lineNo, fields[4])
		}
		segments = append(segments, speaker.Segment{
			Speaker: fields[7],
			Start:   onset,
			End:     onset + dur,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read RTTM: %w", err)
	}
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].Start < segments[j].Start })
	return segments, nil
}

// RTTMDiarizer reads segments from an RTTM file produced beforehand.
type RTTMDiarizer struct {
	path string
}

// NewRTTMDiarizer returns a diarizer reading path. An empty path means the
// audio path with its extension replaced by ".rttm".
func NewRTTMDiarizer(path string) *RTTMDiarizer {
	return &RTTMDiarizer{path: path}
}

// Diarize parses the RTTM file for audioPath.
func (d *RTTMDiarizer) Diarize(ctx context.Context, audioPath string) ([]speaker.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := d.path
	if path == "" {
		path = strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".rttm"
	}
	f, err := os.Open(path) // #nosec G304 -- RTTM path from flags or next to the audio
	if err != nil {
		return nil, fmt.Errorf("open RTTM: %w", err)
	}
	defer func() { _ = f.Close() }()

	segments, err := ParseRTTM(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return segments, nil
}
