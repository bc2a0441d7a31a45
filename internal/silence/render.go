package silence

import (
	"fmt"
	"io"
	"strings"

	"github.com/alnah/transcribe-long/internal/format"
)

// Format selects a rendering of a cut list.
type Format string

// Supported formats.
const (
	// FormatSegmentTimes is a comma-separated list of chosen times, suitable
	// for ffmpeg -segment_times.
	FormatSegmentTimes Format = "segment_times"
	// FormatLines prints "target=<t> chosen=<c> delta=<d>" per cut.
	FormatLines Format = "lines"
	// FormatJSONLike prints a bracketed list of {"target", "cut", "delta"} records.
	FormatJSONLike Format = "jsonlike"
)

// DefaultDigits is the default decimal precision for rendered times.
const DefaultDigits = 6

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatSegmentTimes, FormatLines, FormatJSONLike:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q (want segment_times, lines or jsonlike)", ErrUnknownFormat, s)
	}
}

// Render returns cuts in format f, each line newline-terminated.
func Render(cuts []CutPoint, f Format, digits int) (string, error) {
	var b strings.Builder
	if err := Write(&b, cuts, f, digits); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Write renders cuts in format f to w.
func Write(w io.Writer, cuts []CutPoint, f Format, digits int) error {
	num := func(x float64) string { return format.Float(x, digits) }

	var err error
	switch f {
	case FormatSegmentTimes:
		parts := make([]string, len(cuts))
		for i, c := range cuts {
			parts[i] = num(c.Chosen)
		}
		_, err = fmt.Fprintln(w, strings.Join(parts, ","))
	case FormatLines:
		for _, c := range cuts {
			if _, err = fmt.Fprintf(w, "target=%s chosen=%s delta=%s\n", num(c.Target), num(c.Chosen), num(c.Delta)); err != nil {
				break
			}
		}
	case FormatJSONLike:
		if _, err = fmt.Fprintln(w, "["); err != nil {
			break
		}
		for _, c := range cuts {
			if _, err = fmt.Fprintf(w, "  {\"target\": %s, \"cut\": %s, \"delta\": %s},\n", num(c.Target), num(c.Chosen), num(c.Delta)); err != nil {
				break
			}
		}
		if err == nil {
			_, err = fmt.Fprintln(w, "]")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	if err != nil {
		return fmt.Errorf("write cuts: %w", err)
	}
	return nil
}
