// Package reformat adds punctuation and paragraph breaks to a transcript
// with a chat model, and checks that the words themselves were not changed.
package reformat

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Reformatter rewrites transcript text for readability.
type Reformatter interface {
	Reformat(ctx context.Context, text string) (string, error)
}

// Words returns the normalized word sequence of text: lower-cased,
// split on whitespace, with every rune that is not a letter or digit
// removed from each token. Tokens left empty are dropped, so "don't" and
// "dont" are the same word.
func Words(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := fields[:0]
	for _, f := range fields {
		w := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, f)
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

// SameWords reports whether before and after have the same normalized word
// sequence.
func SameWords(before, after string) bool {
	return CheckWords(before, after) == nil
}

// CheckWords returns an error wrapping ErrContractViolation that locates the
// first differing word, or nil when the sequences match.
func CheckWords(before, after string) error {
	a, b := Words(before), Words(after)
	n := min(len(a), len(b))
	for i := range n {
		if a[i] != b[i] {
			return fmt.Errorf("%w: word %d is %q, was %q", ErrContractViolation, i+1, b[i], a[i])
		}
	}
	switch {
	case len(b) > len(a):
		return fmt.Errorf("%w: %d words added after word %d (first %q)", ErrContractViolation, len(b)-len(a), n, b[n])
	case len(a) > len(b):
		return fmt.Errorf("%w: %d words dropped after word %d (first %q)", ErrContractViolation, len(a)-len(b), n, a[n])
	}
	return nil
}
