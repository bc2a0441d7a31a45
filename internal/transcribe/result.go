// Package transcribe sends chunks to a speech-to-text service under bounded
// concurrency and persists each result in the working directory.
package transcribe

import (
	"fmt"
	"strings"
)

// Mode selects the shape of a transcription result.
type Mode int

const (
	// ModePlain returns text only.
	ModePlain Mode = iota
	// ModeWords returns text with per-word timestamps.
	ModeWords
	// ModeDiarize returns segments labeled with chunk-local speakers.
	ModeDiarize
)

func (m Mode) String() string {
	switch m {
	case ModePlain:
		return "plain"
	case ModeWords:
		return "words"
	case ModeDiarize:
		return "diarize"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "plain", "words" or "diarize".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "plain":
		return ModePlain, nil
	case "words":
		return ModeWords, nil
	case "diarize":
		return ModeDiarize, nil
	default:
		return 0, fmt.Errorf("%w: %q (want plain, words or diarize)", ErrUnknownMode, s)
	}
}

// TimedWord is a word with times relative to its chunk's start, in seconds.
type TimedWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// DiarizedSegment is a span of speech from one chunk. Speaker is only
// meaningful within that chunk.
type DiarizedSegment struct {
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Result is one of PlainText, TimedWords or Diarized, matching the Mode that
// was requested.
type Result interface {
	// Mode reports which variant this is.
	Mode() Mode
	// Text returns the transcript text of the result.
	Text() string
}

// PlainText is the result of ModePlain.
type PlainText struct {
	Content string
}

// TimedWords is the result of ModeWords.
type TimedWords struct {
	Content string
	Words   []TimedWord
}

// Diarized is the result of ModeDiarize.
type Diarized struct {
	Segments []DiarizedSegment
}

var (
	_ Result = PlainText{}
	_ Result = TimedWords{}
	_ Result = Diarized{}
)

func (PlainText) Mode() Mode  { return ModePlain }
func (TimedWords) Mode() Mode { return ModeWords }
func (Diarized) Mode() Mode   { return ModeDiarize }

func (r PlainText) Text() string { return r.Content }

func (r TimedWords) Text() string {
	if r.Content != "" || len(r.Words) == 0 {
		return r.Content
	}
	words := make([]string, len(r.Words))
	for i, w := range r.Words {
		words[i] = w.Word
	}
	return strings.Join(words, " ")
}

func (r Diarized) Text() string {
	parts := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// ChunkTranscript is the text of one chunk.
type ChunkTranscript struct {
	Index     int
	Text      string
	ChunkFile string
}
