package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// minMajorVersion is the oldest ffmpeg whose silencedetect and segment muxer
// output we parse.
const minMajorVersion = 4

// CheckVersion warns on w when ffmpeg is older than the supported minimum.
// It reports whether the version could be determined.
func CheckVersion(ctx context.Context, e *Executor, w io.Writer) bool {
	output, err := e.RunOutput(ctx, "-version")
	if err != nil && output == "" {
		return false
	}

	first, _, _ := strings.Cut(output, "\n")
	major, ok := parseMajor(first)
	if !ok {
		return false
	}
	if major < minMajorVersion {
		_, _ = fmt.Fprintf(w, "Warning: ffmpeg version %d detected, version %d+ recommended\n",
			major, minMajorVersion)
	}
	return true
}

// parseMajor reads the major version from "ffmpeg version 6.1.1 ..." or
// "ffmpeg version n6.1 ...".
func parseMajor(line string) (int, bool) {
	var major int
	if _, err := fmt.Sscanf(line, "ffmpeg version %d", &major); err == nil {
		return major, true
	}
	if _, err := fmt.Sscanf(line, "ffmpeg version n%d", &major); err == nil {
		return major, true
	}
	return 0, false
}
