// Package assemble joins per-chunk transcripts into the final transcript and
// writes the output artifacts.
package assemble

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/alnah/transcribe-long/internal/reformat"
)

// Part is the text of one chunk, or of the whole recording once speaker
// turns have been rendered.
type Part struct {
	Index int
	Text  string
}

// Transcript is the assembled result.
type Transcript struct {
	Text string
	// Reformatted is true when Text is the reformatter's output.
	Reformatted bool
	// Warnings lists problems that did not prevent assembly.
	Warnings []string
}

// Assembler orders parts and optionally reformats the joined text.
type Assembler struct {
	reformatter reformat.Reformatter
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithReformatter enables reformatting. A nil reformatter disables it.
func WithReformatter(r reformat.Reformatter) Option {
	return func(a *Assembler) { a.reformatter = r }
}

// NewAssembler creates an Assembler.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble sorts parts by index, drops blank ones and joins the rest with a
// blank line. If a reformatter is configured its output is used only when it
// keeps the same word sequence; otherwise, or when it fails, the joined text
// is kept and the reason recorded in Warnings.
func (a *Assembler) Assemble(ctx context.Context, parts []Part) (Transcript, error) {
	sorted := make([]Part, len(parts))
	copy(sorted, parts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	texts := make([]string, 0, len(sorted))
	for _, p := range sorted {
		if t := strings.TrimSpace(p.Text); t != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		return Transcript{}, ErrNoTextFound
	}
	joined := strings.Join(texts, "\n\n")
	out := Transcript{Text: joined}

	if a.reformatter == nil {
		return out, nil
	}

	formatted, err := a.reformatter.Reformat(ctx, joined)
	if err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("reformat failed, keeping raw transcript: %v", err))
		return out, nil
	}
	if err := reformat.CheckWords(joined, formatted); err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("reformat discarded, keeping raw transcript: %v", err))
		return out, nil
	}
	out.Text = strings.TrimSpace(formatted)
	out.Reformatted = true
	return out, nil
}
