package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alnah/transcribe-long/internal/apierr"
)

// Transcription model and format identifiers not defined in go-openai.
const (
	// ModelGPT4oTranscribe is the default text transcription model.
	ModelGPT4oTranscribe = "gpt-4o-transcribe"

	// ModelGPT4oTranscribeDiarize is the transcription model with speaker identification.
	ModelGPT4oTranscribeDiarize = "gpt-4o-transcribe-diarize"

	// FormatDiarizedJSON is the response format for diarized transcription.
	FormatDiarizedJSON = "diarized_json"

	// ChunkingStrategyAuto lets the API choose internal boundaries. Required
	// by the diarization model for inputs longer than 30 seconds.
	ChunkingStrategyAuto = "auto"

	// DefaultTranscriptionURL is the OpenAI audio transcription endpoint.
	DefaultTranscriptionURL = "https://api.openai.com/v1/audio/transcriptions"
)

// Default retry configuration.
const (
	defaultMaxRetries = 5
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 30 * time.Second
)

// Options configures one transcription request.
type Options struct {
	Mode Mode
	// Model overrides the default model for Mode.
	Model string
	// Prompt provides context such as vocabulary or names.
	Prompt string
	// Language is an ISO 639-1 code. Empty means auto-detect.
	Language string
}

// Service transcribes one audio file.
type Service interface {
	// Transcribe returns the Result variant matching opts.Mode. Cancelling
	// ctx stops further attempts but lets a request already sent finish.
	Transcribe(ctx context.Context, path string, opts Options) (Result, error)
}

// DefaultModel returns the model used for mode when none is configured.
// Word timestamps are only offered by whisper-1.
func DefaultModel(mode Mode) string {
	switch mode {
	case ModeWords:
		return openai.Whisper1
	case ModeDiarize:
		return ModelGPT4oTranscribeDiarize
	default:
		return ModelGPT4oTranscribe
	}
}

// audioTranscriber is the subset of *openai.Client used here.
type audioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// httpDoer abstracts HTTP client for testing.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

var (
	_ Service          = (*OpenAITranscriber)(nil)
	_ audioTranscriber = (*openai.Client)(nil)
)

// OpenAITranscriber transcribes audio with the OpenAI API, retrying
// transient errors with exponential backoff.
type OpenAITranscriber struct {
	client     audioTranscriber
	httpClient httpDoer
	apiKey     string
	url        string
	retry      apierr.RetryConfig
}

// TranscriberOption configures an OpenAITranscriber.
type TranscriberOption func(*OpenAITranscriber)

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) TranscriberOption {
	return func(t *OpenAITranscriber) {
		if n >= 0 {
			t.retry.MaxRetries = n
		}
	}
}

// WithRetryDelays sets the base and max delays for exponential backoff.
func WithRetryDelays(base, maxDelay time.Duration) TranscriberOption {
	return func(t *OpenAITranscriber) {
		if base > 0 {
			t.retry.BaseDelay = base
		}
		if maxDelay > 0 {
			t.retry.MaxDelay = maxDelay
		}
	}
}

// WithHTTPClient sets the HTTP client used for diarization requests.
func WithHTTPClient(c httpDoer) TranscriberOption {
	return func(t *OpenAITranscriber) { t.httpClient = c }
}

// WithTranscriptionURL overrides the endpoint used for diarization requests.
func WithTranscriptionURL(url string) TranscriberOption {
	return func(t *OpenAITranscriber) { t.url = url }
}

// NewOpenAITranscriber creates an OpenAITranscriber. apiKey authenticates the
// diarization requests, which go through plain HTTP.
func NewOpenAITranscriber(client *openai.Client, apiKey string, opts ...TranscriberOption) *OpenAITranscriber {
	return newOpenAITranscriber(client, apiKey, opts...)
}

func newOpenAITranscriber(client audioTranscriber, apiKey string, opts ...TranscriberOption) *OpenAITranscriber {
	t := &OpenAITranscriber{
		client:     client,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		apiKey:     apiKey,
		url:        DefaultTranscriptionURL,
		retry: apierr.RetryConfig{
			MaxRetries: defaultMaxRetries,
			BaseDelay:  defaultBaseDelay,
			MaxDelay:   defaultMaxDelay,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcribe transcribes the audio file at path in the requested mode.
// Each HTTP attempt runs to completion; ctx only bounds the waits between
// retries.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, path string, opts Options) (Result, error) {
	model := effectiveModel(opts)

	switch opts.Mode {
	case ModePlain:
		req := openai.AudioRequest{
			Model:    model,
			FilePath: path,
			Format:   openai.AudioResponseFormatJSON,
			Prompt:   opts.Prompt,
			Language: opts.Language,
		}
		resp, err := t.create(ctx, req)
		if err != nil {
			return nil, err
		}
		return PlainText{Content: strings.TrimSpace(resp.Text)}, nil

	case ModeWords:
		req := openai.AudioRequest{
			Model:    model,
			FilePath: path,
			Format:   openai.AudioResponseFormatVerboseJSON,
			Prompt:   opts.Prompt,
			Language: opts.Language,
			TimestampGranularities: []openai.TranscriptionTimestampGranularity{
				openai.TranscriptionTimestampGranularityWord,
			},
		}
		resp, err := t.create(ctx, req)
		if err != nil {
			return nil, err
		}
		words := make([]TimedWord, 0, len(resp.Words))
		for _, w := range resp.Words {
			words = append(words, TimedWord{Word: w.Word, Start: w.Start, End: w.End})
		}
		return TimedWords{Content: strings.TrimSpace(resp.Text), Words: words}, nil

	case ModeDiarize:
		segments, err := apierr.RetryWithBackoff(ctx, t.retry, func() ([]DiarizedSegment, error) {
			return t.diarizeHTTP(context.WithoutCancel(ctx), path, model, opts)
		}, apierr.IsRetryable)
		if err != nil {
			return nil, err
		}
		return Diarized{Segments: segments}, nil

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownMode, opts.Mode)
	}
}

func (t *OpenAITranscriber) create(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	return apierr.RetryWithBackoff(ctx, t.retry, func() (openai.AudioResponse, error) {
		resp, err := t.client.CreateTranscription(context.WithoutCancel(ctx), req)
		if err != nil {
			return openai.AudioResponse{}, classifyError(err)
		}
		return resp, nil
	}, apierr.IsRetryable)
}

// diarizeHTTP performs a diarization request with a hand-built multipart
// body, since go-openai has no chunking_strategy field.
func (t *OpenAITranscriber) diarizeHTTP(ctx context.Context, path, model string, opts Options) ([]DiarizedSegment, error) {
	file, err := os.Open(path) // #nosec G304 -- path is a chunk in the working directory
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy file to form: %w", err)
	}

	fields := [][2]string{
		{"model", model},
		{"response_format", FormatDiarizedJSON},
		{"chunking_strategy", ChunkingStrategyAuto},
	}
	if opts.Prompt != "" {
		fields = append(fields, [2]string{"prompt", opts.Prompt})
	}
	if opts.Language != "" {
		fields = append(fields, [2]string{"language", opts.Language})
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("write %s field: %w", f[0], err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("request timed out: %w", apierr.ErrTimeout)
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, respBody)
	}
	return parseDiarizeResponse(respBody)
}

// diarizeResponse is the diarized_json response body.
type diarizeResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		ID      string  `json:"id"`
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
		Text    string  `json:"text"`
		Speaker string  `json:"speaker"`
	} `json:"segments"`
}

// parseDiarizeResponse converts the response into segments. A response
// without segments becomes a single unlabeled segment.
func parseDiarizeResponse(body []byte) ([]DiarizedSegment, error) {
	var resp diarizeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if len(resp.Segments) == 0 {
		if strings.TrimSpace(resp.Text) == "" {
			return nil, nil
		}
		return []DiarizedSegment{{Text: strings.TrimSpace(resp.Text)}}, nil
	}

	segments := make([]DiarizedSegment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, DiarizedSegment{
			Speaker: s.Speaker,
			Text:    strings.TrimSpace(s.Text),
			Start:   s.Start,
			End:     s.End,
		})
	}
	return segments, nil
}

// errorResponse is an OpenAI error body.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func parseHTTPError(statusCode int, body []byte) error {
	var e errorResponse
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		msg = e.Error.Message
	}
	return apierr.FromStatus(statusCode, msg)
}

// classifyError maps go-openai errors to apierr sentinels.
func classifyError(err error) error {
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
