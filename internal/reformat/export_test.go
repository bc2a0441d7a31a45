package reformat

// Exports for testing.

// ChatCompleter exports chatCompleter for mocks.
type ChatCompleter = chatCompleter

var (
	WithChatCompleter = withChatCompleter
	ClassifyError     = classifyError
	SplitBatches      = splitBatches
	EstimateTokens    = estimateTokens
)
