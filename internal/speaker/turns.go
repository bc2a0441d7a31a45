package speaker

import (
	"sort"
	"strings"

	"github.com/alnah/transcribe-long/internal/transcribe"
)

// Segment is a span of the recording attributed to one speaker, in seconds
// from the start of the recording.
type Segment struct {
	Speaker string
	Start   float64
	End     float64
}

// Turn is uninterrupted speech by one speaker.
type Turn struct {
	Speaker ID
	Text    string
}

// ChunkWords is the word-level transcript of one chunk. Start is the chunk's
// offset in the recording; word times are relative to it.
type ChunkWords struct {
	Index int
	Start float64
	Words []transcribe.TimedWord
}

// ChunkSegments is the diarized transcript of one chunk.
type ChunkSegments struct {
	Index    int
	Segments []transcribe.DiarizedSegment
}

// AlignWords assigns every word to the first segment whose [Start, End]
// contains the word's absolute start time, and groups consecutive words of
// the same speaker into turns. Words outside every segment belong to
// Unknown(). Chunks are processed in index order.
func AlignWords(chunks []ChunkWords, segments []Segment) []Turn {
	sorted := make([]ChunkWords, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	var b turnBuilder
	for _, c := range sorted {
		for _, w := range c.Words {
			b.add(speakerAt(segments, c.Start+w.Start), w.Word)
		}
	}
	return b.turns
}

func speakerAt(segments []Segment, t float64) ID {
	for _, s := range segments {
		if s.Start <= t && t <= s.End {
			return Global(s.Speaker)
		}
	}
	return Unknown()
}

// StitchDiarized namespaces each chunk's labels with the chunk index and
// merges consecutive segments of the same namespaced speaker. Segments with
// an empty label belong to Unknown(). Blank segments are dropped.
func StitchDiarized(chunks []ChunkSegments) []Turn {
	sorted := make([]ChunkSegments, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	var b turnBuilder
	for _, c := range sorted {
		for _, s := range c.Segments {
			text := strings.TrimSpace(s.Text)
			if text == "" {
				continue
			}
			id := Unknown()
			if s.Speaker != "" {
				id = ChunkLocal(c.Index, s.Speaker)
			}
			b.add(id, text)
		}
	}
	return b.turns
}

// turnBuilder appends text to the last turn while the speaker is unchanged.
type turnBuilder struct {
	turns []Turn
}

func (b *turnBuilder) add(id ID, text string) {
	if n := len(b.turns); n > 0 && b.turns[n-1].Speaker == id {
		b.turns[n-1].Text += " " + text
		return
	}
	b.turns = append(b.turns, Turn{Speaker: id, Text: text})
}

// RenderTurns renders turns as "speaker: text" paragraphs separated by blank
// lines.
func RenderTurns(turns []Turn) string {
	var sb strings.Builder
	for i, t := range turns {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(t.Speaker.String())
		sb.WriteString(": ")
		sb.WriteString(t.Text)
	}
	return sb.String()
}

// Roster lists the distinct chunk-local speakers of turns in order of first
// appearance.
func Roster(turns []Turn) []ID {
	seen := make(map[ID]bool)
	var out []ID
	for _, t := range turns {
		if t.Speaker.Kind() != KindChunkLocal || seen[t.Speaker] {
			continue
		}
		seen[t.Speaker] = true
		out = append(out, t.Speaker)
	}
	return out
}
