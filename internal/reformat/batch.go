package reformat

import "strings"

// Token estimation: conservative for non-English text (~3.5 chars/token, we use 3).
const defaultCharsPerToken = 3

func estimateTokens(text string) int {
	return len(text) / defaultCharsPerToken
}

// splitBatches divides text into batches of whole paragraphs, each at most
// maxTokens (estimated) unless a single paragraph is larger. Blank
// paragraphs are dropped. Text that fits returns one batch.
func splitBatches(text string, maxTokens int) []string {
	var batches []string
	var current strings.Builder
	currentTokens := 0

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		paraTokens := estimateTokens(para)

		// An oversized paragraph still goes out whole.
		if currentTokens+paraTokens > maxTokens && current.Len() > 0 {
			batches = append(batches, current.String())
			current.Reset()
			currentTokens = 0
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
		currentTokens += paraTokens
	}
	if current.Len() > 0 {
		batches = append(batches, current.String())
	}
	return batches
}
