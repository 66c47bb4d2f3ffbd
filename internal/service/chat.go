package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jharjadi/wikigpt/core-api-go/internal/model"
)

// NoInputMessage is returned when a request has neither a question nor a link.
const NoInputMessage = "Please provide a question or a Wikipedia URL."

const urlNoteFormat = "(Note: Could not process the provided URL: %s)\n\n%s"

// ContextResolver produces grounding context and sources for a request.
type ContextResolver interface {
	Resolve(ctx context.Context, req ResolveRequest) *Resolution
}

// Completer generates an answer from a conversation and grounding context.
type Completer interface {
	Complete(ctx context.Context, messages []model.ChatMessage, contextText string) (*Completion, error)
}

// ChatResult is the response plus everything the caller may want to log.
type ChatResult struct {
	Response         *model.ChatResponse
	EffectiveQuery   string
	ShortCircuited   bool
	Resolution       *Resolution
	Completion       *Completion
	CompletionErr    *CompletionError
	ContextTokensEst int
	ResolveLatency   time.Duration
	LLMLatency       time.Duration
}

// ChatService runs one chat request through resolution and completion.
type ChatService struct {
	resolver   ContextResolver
	llm        Completer
	tokens     TokenCounter
	renderHTML bool
}

// NewChatService creates a new ChatService. A nil counter uses ApproxTokenCounter.
func NewChatService(resolver ContextResolver, llm Completer, tokens TokenCounter, renderHTML bool) *ChatService {
	if tokens == nil {
		tokens = ApproxTokenCounter{}
	}
	return &ChatService{
		resolver:   resolver,
		llm:        llm,
		tokens:     tokens,
		renderHTML: renderHTML,
	}
}

// Chat processes one request. It always returns a response; collaborator
// failures become response text.
func (s *ChatService) Chat(ctx context.Context, req *model.ChatRequest) *ChatResult {
	query := strings.TrimSpace(req.SearchQuery)
	if query == "" {
		query = strings.TrimSpace(LastUserMessage(req.Messages))
	}
	wikiURL := strings.TrimSpace(req.WikiURL)

	result := &ChatResult{EffectiveQuery: query}

	if query == "" && wikiURL == "" {
		slog.Warn("no search query or URL provided")
		result.ShortCircuited = true
		result.Response = &model.ChatResponse{
			Response: NoInputMessage,
			Sources:  []model.Source{},
		}
		return result
	}

	// ── Stage 1: Resolve context ─────────────────────────
	resolveStart := time.Now()
	res := s.resolver.Resolve(ctx, ResolveRequest{
		Query: query,
		URL:   wikiURL,
		Mode:  req.WikiMode,
	})
	result.ResolveLatency = time.Since(resolveStart)
	result.Resolution = res
	result.ContextTokensEst = s.tokens.Count(res.Context)

	// ── Stage 2: Completion ──────────────────────────────
	llmStart := time.Now()
	completion, err := s.llm.Complete(ctx, req.Messages, res.Context)
	result.LLMLatency = time.Since(llmStart)

	var answer string
	if err != nil {
		var cerr *CompletionError
		if !errors.As(err, &cerr) {
			cerr = &CompletionError{Kind: KindTransport, Err: err}
		}
		slog.Error("completion failed", "kind", cerr.Kind, "status", cerr.StatusCode, "error", cerr.Err)
		result.CompletionErr = cerr
		answer = cerr.UserMessage()
	} else {
		result.Completion = completion
		answer = completion.Text
		if s.renderHTML {
			answer = RenderAnswerHTML(answer)
		}
	}

	if wikiURL != "" && !res.URLTitleOK && res.Mode != ModeSearch {
		answer = fmt.Sprintf(urlNoteFormat, wikiURL, answer)
	}

	// ── Stage 3: Response ────────────────────────────────
	result.Response = &model.ChatResponse{
		Response: answer,
		Sources:  res.Sources,
	}
	if req.Debug {
		result.Response.Debug = &model.DebugInfo{
			Mode:             string(res.Mode),
			EffectiveQuery:   query,
			URLTitle:         res.URLTitle,
			Candidates:       res.Candidates,
			ContextChars:     len(res.Context),
			ContextTokensEst: result.ContextTokensEst,
		}
		if result.CompletionErr != nil {
			result.Response.Debug.CompletionErrorKind = string(result.CompletionErr.Kind)
		}
	}
	return result
}
