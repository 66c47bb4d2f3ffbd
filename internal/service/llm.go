package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jharjadi/wikigpt/core-api-go/internal/model"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ErrorKind classifies a completion failure.
type ErrorKind string

const (
	KindTimeout            ErrorKind = "timeout"
	KindTransport          ErrorKind = "transport"
	KindUnexpectedResponse ErrorKind = "unexpected_response"
	KindMissingCredential  ErrorKind = "missing_credential"
)

// Sentinels matched by errors.Is against a *CompletionError.
var (
	ErrTimeout            = errors.New("completion timed out")
	ErrTransport          = errors.New("completion transport error")
	ErrUnexpectedResponse = errors.New("unexpected completion response")
	ErrMissingCredential  = errors.New("completion API key not configured")
)

// CompletionError is returned by LLMService.Complete for every failure.
type CompletionError struct {
	Kind       ErrorKind
	StatusCode int // HTTP status, 0 when no response was received
	Err        error
}

func (e *CompletionError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *CompletionError) Is(target error) bool {
	switch e.Kind {
	case KindTimeout:
		return target == ErrTimeout
	case KindTransport:
		return target == ErrTransport
	case KindUnexpectedResponse:
		return target == ErrUnexpectedResponse
	case KindMissingCredential:
		return target == ErrMissingCredential
	}
	return false
}

// UserMessage is the caller-visible text that replaces the answer on failure.
func (e *CompletionError) UserMessage() string {
	switch e.Kind {
	case KindMissingCredential:
		return "Error: Mistral API key not configured. Please set the MISTRAL_API_KEY environment variable."
	case KindTimeout:
		return "Error: The request to the AI timed out."
	case KindUnexpectedResponse:
		return "Error: Received unexpected response structure from AI."
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("Error getting response from Mistral API: Status %d", e.StatusCode)
	}
	return fmt.Sprintf("Error communicating with Mistral API: %v", e.Err)
}

const emptyContentText = "No content in response"

// Completion holds the model's answer and token usage.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// LLMConfig configures LLMService.
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
}

// LLMService calls an OpenAI-compatible chat-completions endpoint (Mistral).
type LLMService struct {
	client      openai.Client
	hasKey      bool
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
}

// NewLLMService creates a new LLMService. Extra request options are appended
// after the ones derived from cfg.
func NewLLMService(cfg LLMConfig, opts ...option.RequestOption) *LLMService {
	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}

	return &LLMService{
		client:      openai.NewClient(append(base, opts...)...),
		hasKey:      cfg.APIKey != "",
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}
}

// Complete sends the context as a system message followed by the conversation
// and returns the model's answer. Failures are *CompletionError.
func (s *LLMService) Complete(ctx context.Context, messages []model.ChatMessage, contextText string) (*Completion, error) {
	if !s.hasKey {
		return nil, &CompletionError{Kind: KindMissingCredential, Err: ErrMissingCredential}
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(s.model),
		Messages:    toOpenAIMessages(messages, contextText),
		Temperature: openai.Float(s.temperature),
	}
	if s.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(s.maxTokens))
	}

	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyCompletionError(ctx, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, &CompletionError{Kind: KindUnexpectedResponse, Err: ErrUnexpectedResponse}
	}

	text := resp.Choices[0].Message.Content
	if text == "" {
		text = emptyContentText
	}

	return &Completion{
		Text:             text,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

// toOpenAIMessages prepends the context system message to the turns kept by
// FilterMessages, in order.
func toOpenAIMessages(messages []model.ChatMessage, contextText string) []openai.ChatCompletionMessageParamUnion {
	turns := FilterMessages(messages)
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	out = append(out, openai.SystemMessage(BuildSystemMessage(contextText)))
	for _, m := range turns {
		if m.Role == model.RoleUser {
			out = append(out, openai.UserMessage(m.Content))
		} else {
			out = append(out, openai.AssistantMessage(m.Content))
		}
	}
	return out
}

func classifyCompletionError(ctx context.Context, err error) *CompletionError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &CompletionError{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &CompletionError{Kind: KindTimeout, Err: err}
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &CompletionError{Kind: KindTransport, StatusCode: apiErr.StatusCode, Err: err}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &CompletionError{Kind: KindUnexpectedResponse, Err: err}
	}

	return &CompletionError{Kind: KindTransport, Err: err}
}
