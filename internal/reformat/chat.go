package reformat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alnah/transcribe-long/internal/apierr"
)

// Provider names an OpenAI-compatible chat completion endpoint.
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderDeepSeek Provider = "deepseek"
)

// DeepSeekBaseURL is DeepSeek's OpenAI-compatible endpoint.
const DeepSeekBaseURL = "https://api.deepseek.com/v1"

// ParseProvider parses a provider name. Empty means OpenAI.
func ParseProvider(s string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case "", ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderDeepSeek:
		return ProviderDeepSeek, nil
	default:
		return "", fmt.Errorf("%w: %q (want openai or deepseek)", ErrUnknownProvider, s)
	}
}

// DefaultModel returns the chat model used for p when none is configured.
func (p Provider) DefaultModel() string {
	if p == ProviderDeepSeek {
		return "deepseek-chat"
	}
	return openai.GPT4o
}

// APIKeyEnv returns the environment variable holding p's API key.
func (p Provider) APIKeyEnv() string {
	if p == ProviderDeepSeek {
		return "DEEPSEEK_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// NewClient returns a go-openai client for p.
func NewClient(p Provider, apiKey string) (*openai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", p.APIKeyEnv(), ErrEmptyAPIKey)
	}
	cfg := openai.DefaultConfig(apiKey)
	if p == ProviderDeepSeek {
		cfg.BaseURL = DeepSeekBaseURL
	}
	return openai.NewClientWithConfig(cfg), nil
}

// chatCompleter is the subset of *openai.Client used here.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

var (
	_ Reformatter   = (*ChatReformatter)(nil)
	_ chatCompleter = (*openai.Client)(nil)
)

// Default configuration values.
const (
	defaultMaxBatchTokens = 12000
	defaultTemperature    = 0.1

	// Retry configuration: fewer retries than the transcriber (longer latency)
	defaultMaxRetries = 3
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 30 * time.Second
)

// systemPrompt instructs the model to touch punctuation and layout only.
const systemPrompt = `You are a transcript editor. You receive part of a raw speech-to-text transcript.

Your tasks:
1. Add punctuation (periods, commas, question marks) and capitalization where needed.
2. Add paragraph breaks (a blank line) where the topic shifts.
3. Lines that start with a speaker label followed by a colon (for example "0:A:" or "SPEAKER_00:") must keep that label unchanged at the start of the line.
4. Mark interruptions with "--" at the end of the interrupted text.

Do not add, remove, reorder, translate or correct any words. Output only the edited transcript.`

// ChatReformatter reformats text through a chat completion API. Long
// transcripts are sent in batches of whole paragraphs, in order.
type ChatReformatter struct {
	client         chatCompleter
	model          string
	maxBatchTokens int
	retry          apierr.RetryConfig
	onProgress     func(current, total int)
}

// Option configures a ChatReformatter.
type Option func(*ChatReformatter)

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(r *ChatReformatter) {
		if model != "" {
			r.model = model
		}
	}
}

// WithMaxBatchTokens sets the estimated token budget of one request.
func WithMaxBatchTokens(n int) Option {
	return func(r *ChatReformatter) {
		if n > 0 {
			r.maxBatchTokens = n
		}
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) Option {
	return func(r *ChatReformatter) {
		if n >= 0 {
			r.retry.MaxRetries = n
		}
	}
}

// WithRetryDelays sets the base and max delays for exponential backoff.
func WithRetryDelays(base, maxDelay time.Duration) Option {
	return func(r *ChatReformatter) {
		if base > 0 {
			r.retry.BaseDelay = base
		}
		if maxDelay > 0 {
			r.retry.MaxDelay = maxDelay
		}
	}
}

// WithProgress sets a callback invoked before each batch is sent.
func WithProgress(fn func(current, total int)) Option {
	return func(r *ChatReformatter) { r.onProgress = fn }
}

// withChatCompleter sets a custom chat completer (for testing).
func withChatCompleter(cc chatCompleter) Option {
	return func(r *ChatReformatter) { r.client = cc }
}

// NewChatReformatter creates a ChatReformatter using client. The default
// model is OpenAI's; pass WithModel for other providers.
func NewChatReformatter(client *openai.Client, opts ...Option) *ChatReformatter {
	r := &ChatReformatter{
		client:         client,
		model:          ProviderOpenAI.DefaultModel(),
		maxBatchTokens: defaultMaxBatchTokens,
		retry: apierr.RetryConfig{
			MaxRetries: defaultMaxRetries,
			BaseDelay:  defaultBaseDelay,
			MaxDelay:   defaultMaxDelay,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Model returns the configured chat model.
func (r *ChatReformatter) Model() string { return r.model }

// Reformat sends text batch by batch and joins the outputs with blank lines.
// Transient API errors are retried with exponential backoff.
func (r *ChatReformatter) Reformat(ctx context.Context, text string) (string, error) {
	batches := splitBatches(text, r.maxBatchTokens)
	outputs := make([]string, 0, len(batches))
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if r.onProgress != nil {
			r.onProgress(i+1, len(batches))
		}
		out, err := r.complete(ctx, batch)
		if err != nil {
			if len(batches) == 1 {
				return "", err
			}
			return "", fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
		}
		outputs = append(outputs, strings.TrimSpace(out))
	}
	return strings.Join(outputs, "\n\n"), nil
}

func (r *ChatReformatter) complete(ctx context.Context, content string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
		Temperature: defaultTemperature,
	}
	return apierr.RetryWithBackoff(ctx, r.retry, func() (string, error) {
		resp, err := r.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", classifyError(err)
		}
		if len(resp.Choices) == 0 {
			return "", ErrEmptyResponse
		}
		return resp.Choices[0].Message.Content, nil
	}, apierr.IsRetryable)
}

// classifyError maps go-openai errors to apierr sentinels, plus
// ErrTextTooLong for context length rejections.
func classifyError(err error) error {
	if isContextLength(err.Error()) {
		return fmt.Errorf("API rejected: %w", ErrTextTooLong)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apierr.FromStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return apierr.FromStatus(reqErr.HTTPStatusCode, reqErr.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", apierr.ErrTimeout)
	}
	return err
}

func isContextLength(msg string) bool {
	return strings.Contains(msg, "context_length_exceeded") ||
		strings.Contains(msg, "maximum context length")
}
