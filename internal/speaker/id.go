// Package speaker attributes transcript text to speakers.
//
// Two sources of speaker information are supported. With a global
// diarization (one set of segments for the whole recording), AlignWords
// assigns each timed word to the segment containing it. With per-chunk
// diarization, labels are only meaningful inside one chunk, so
// StitchDiarized namespaces them by chunk index ("3:A") and leaves the
// mapping of those labels to people to a separate ApplyMapping step.
package speaker

import (
	"strconv"
	"strings"
)

// Kind discriminates the variants of ID.
type Kind int

const (
	// KindUnknown is a word or segment no speaker could be assigned to.
	KindUnknown Kind = iota
	// KindGlobal is a speaker from a recording-wide diarization.
	KindGlobal
	// KindChunkLocal is a speaker label valid only within one chunk.
	KindChunkLocal
)

// ID identifies a speaker. The zero value is Unknown(). IDs are comparable.
type ID struct {
	kind  Kind
	chunk int
	label string
}

// Global returns the ID of a recording-wide speaker.
func Global(name string) ID {
	return ID{kind: KindGlobal, label: name}
}

// ChunkLocal returns the ID of label as reported for chunk index.
func ChunkLocal(index int, label string) ID {
	return ID{kind: KindChunkLocal, chunk: index, label: label}
}

// Unknown returns the ID used when no speaker applies.
func Unknown() ID {
	return ID{}
}

// Kind reports the variant.
func (id ID) Kind() Kind { return id.kind }

// Chunk returns the chunk index of a chunk-local ID, or -1.
func (id ID) Chunk() int {
	if id.kind != KindChunkLocal {
		return -1
	}
	return id.chunk
}

// Label returns the speaker name or chunk-local label. Empty for Unknown.
func (id ID) Label() string { return id.label }

// String renders the ID as it appears in transcripts: the name for global
// speakers, "index:label" for chunk-local ones and "unknown" otherwise.
func (id ID) String() string {
	switch id.kind {
	case KindGlobal:
		return id.label
	case KindChunkLocal:
		return strconv.Itoa(id.chunk) + ":" + id.label
	default:
		return "unknown"
	}
}

// ParseChunkLocal parses an "index:label" string.
func ParseChunkLocal(s string) (ID, bool) {
	idx, label, ok := strings.Cut(s, ":")
	if !ok || label == "" {
		return ID{}, false
	}
	n, err := strconv.Atoi(idx)
	if err != nil || n < 0 {
		return ID{}, false
	}
	return ChunkLocal(n, label), true
}
