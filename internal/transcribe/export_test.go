package transcribe

// Exports for testing.

// AudioTranscriber exports audioTranscriber for mocks.
type AudioTranscriber = audioTranscriber

// NewTestTranscriber creates an OpenAITranscriber around a mock client.
func NewTestTranscriber(client audioTranscriber, opts ...TranscriberOption) *OpenAITranscriber {
	return newOpenAITranscriber(client, "test-api-key", opts...)
}

var (
	ClassifyError        = classifyError
	ParseDiarizeResponse = parseDiarizeResponse
)
