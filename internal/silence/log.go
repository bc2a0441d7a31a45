// Package silence parses ffmpeg silencedetect logs and chooses cut points
// near evenly spaced targets.
package silence

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
)

// Interval is a detected span of near-silence, in seconds.
type Interval struct {
	Start float64
	End   float64
}

// Mid returns the midpoint of the interval.
func (i Interval) Mid() float64 {
	return (i.Start + i.End) / 2
}

// Mids returns the midpoints of intervals, in input order.
func Mids(intervals []Interval) []float64 {
	mids := make([]float64, len(intervals))
	for i, iv := range intervals {
		mids[i] = iv.Mid()
	}
	return mids
}

// Stats describes entries ParseLogStats could not turn into intervals.
type Stats struct {
	Lines         int // lines read
	UnmatchedEnds int // silence_end without a pending silence_start
	Inverted      int // silence_end earlier than its silence_start
	DanglingStart bool
}

// Skipped returns the number of discarded entries.
func (s Stats) Skipped() int {
	n := s.UnmatchedEnds + s.Inverted
	if s.DanglingStart {
		n++
	}
	return n
}

// Matches lines like:
//
//	[silencedetect @ 0x...] silence_start: 42.123
//	[silencedetect @ 0x...] silence_end: 43.456 | silence_duration: 1.333
//
// A silence at the very start of a file can be reported slightly negative
// (silence_start: -0.0013); such values are clamped to 0.
var (
	startRe = regexp.MustCompile(`silence_start:\s*(-?[0-9]+(?:\.[0-9]+)?(?:[eE][-+]?[0-9]+)?)`)
	endRe   = regexp.MustCompile(`silence_end:\s*(-?[0-9]+(?:\.[0-9]+)?(?:[eE][-+]?[0-9]+)?)`)
)

// maxLineSize bounds a single log line; ffmpeg progress lines can be long.
const maxLineSize = 1 << 20

// ParseLog reads a silencedetect log and returns the silence intervals it
// describes, in log order. Malformed or unpaired entries are skipped.
func ParseLog(r io.Reader) ([]Interval, error) {
	intervals, _, err := ParseLogStats(r)
	return intervals, err
}

// ParseLogStats is ParseLog plus a count of what was discarded.
// A silence_start replaces any pending start. An end earlier than its start
// is dropped and clears the pending start. A start left open at the end of
// the log (truncated output) is dropped.
func ParseLogStats(r io.Reader) ([]Interval, Stats, error) {
	var (
		intervals []Interval
		stats     Stats
		start     float64
		pending   bool
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := sc.Text()
		stats.Lines++

		if m := startRe.FindStringSubmatch(line); m != nil {
			v, err := strconv.ParseFloat(m[1], 64)
			if err == nil {
				start, pending = max(v, 0), true
			}
			continue
		}

		m := endRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		end, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		end = max(end, 0)
		if !pending {
			stats.UnmatchedEnds++
			continue
		}
		pending = false
		if end < start {
			stats.Inverted++
			continue
		}
		intervals = append(intervals, Interval{Start: start, End: end})
	}
	if err := sc.Err(); err != nil {
		return nil, stats, fmt.Errorf("read silence log: %w", err)
	}
	stats.DanglingStart = pending

	return intervals, stats, nil
}
