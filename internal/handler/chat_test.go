package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jharjadi/wikigpt/core-api-go/internal/config"
	"github.com/jharjadi/wikigpt/core-api-go/internal/model"
	"github.com/jharjadi/wikigpt/core-api-go/internal/service"
)

type stubResolver struct {
	res   *service.Resolution
	calls int
}

func (s *stubResolver) Resolve(ctx context.Context, req service.ResolveRequest) *service.Resolution {
	s.calls++
	return s.res
}

type stubCompleter struct {
	text string
	err  error
}

func (s *stubCompleter) Complete(ctx context.Context, messages []model.ChatMessage, contextText string) (*service.Completion, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &service.Completion{Text: s.text, PromptTokens: 10, CompletionTokens: 3}, nil
}

func newTestHandler(resolver service.ContextResolver, llm service.Completer) *ChatHandler {
	cfg := config.Defaults()
	return NewChatHandler(cfg, service.NewChatService(resolver, llm, nil, false))
}

func doChat(t *testing.T, h *ChatHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Post("/chat", h.Handle)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestChatHandler_Success(t *testing.T) {
	resolver := &stubResolver{res: &service.Resolution{
		Mode:       service.ModeSearch,
		Candidates: []string{"Alan Turing"},
		Context:    "--- Wikipedia article: Alan Turing ---\ntext",
		Sources:    []model.Source{{Title: "Alan Turing", URL: "https://en.wikipedia.org/wiki/Alan_Turing"}},
	}}
	h := newTestHandler(resolver, &stubCompleter{text: "He was a mathematician."})

	rec := doChat(t, h, `{"messages":[{"role":"user","content":"Who was Turing?"}]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}
	var resp model.ChatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Response != "He was a mathematician." {
		t.Errorf("unexpected response %q", resp.Response)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Title != "Alan Turing" {
		t.Errorf("unexpected sources %+v", resp.Sources)
	}
	if resp.Debug != nil {
		t.Error("debug block should be omitted unless requested")
	}
}

func TestChatHandler_NoInput(t *testing.T) {
	resolver := &stubResolver{}
	h := newTestHandler(resolver, &stubCompleter{text: "unused"})

	rec := doChat(t, h, `{"messages":[]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["response"] != service.NoInputMessage {
		t.Errorf("unexpected response %v", resp["response"])
	}
	sources, ok := resp["sources"].([]any)
	if !ok || len(sources) != 0 {
		t.Errorf("expected empty sources array, got %#v", resp["sources"])
	}
	if resolver.calls != 0 {
		t.Errorf("resolver should not be called, got %d calls", resolver.calls)
	}
}

func TestChatHandler_InvalidJSON(t *testing.T) {
	h := newTestHandler(&stubResolver{}, &stubCompleter{})

	rec := doChat(t, h, `{not json`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp model.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "bad_request" {
		t.Errorf("expected bad_request, got %s", resp.Error)
	}
}

func TestChatHandler_CompletionFailureIs200(t *testing.T) {
	resolver := &stubResolver{res: &service.Resolution{Mode: service.ModeSearch, Context: "ctx", Sources: []model.Source{}}}
	h := newTestHandler(resolver, &stubCompleter{err: &service.CompletionError{Kind: service.KindMissingCredential}})

	rec := doChat(t, h, `{"messages":[{"role":"user","content":"q"}]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp model.ChatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp.Response, "MISTRAL_API_KEY") {
		t.Errorf("expected credential message, got %q", resp.Response)
	}
}

func TestChatHandler_DebugTraceID(t *testing.T) {
	resolver := &stubResolver{res: &service.Resolution{Mode: service.ModeSearch, Context: "ctx", Sources: []model.Source{}}}
	h := newTestHandler(resolver, &stubCompleter{text: "ok"})

	rec := doChat(t, h, `{"messages":[{"role":"user","content":"q"}],"debug":true}`)

	var resp model.ChatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Debug == nil {
		t.Fatal("expected debug block")
	}
	if resp.Debug.TraceID == "" {
		t.Error("expected trace_id from request ID")
	}
	if resp.Debug.Mode != "search" {
		t.Errorf("expected mode search, got %s", resp.Debug.Mode)
	}
}

func TestChatHandler_TraceIDWithoutMiddleware(t *testing.T) {
	resolver := &stubResolver{res: &service.Resolution{Mode: service.ModeSearch, Context: "ctx", Sources: []model.Source{}}}
	h := newTestHandler(resolver, &stubCompleter{text: "ok"})

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"search_query":"q","debug":true}`))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	var resp model.ChatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Debug == nil || len(resp.Debug.TraceID) != 36 {
		t.Errorf("expected generated UUID trace_id, got %+v", resp.Debug)
	}
}

func TestHashQuery(t *testing.T) {
	if hashQuery("") != "" {
		t.Error("empty query should hash to empty string")
	}
	a, b := hashQuery("Who was Turing?"), hashQuery("Who was Turing?")
	if a != b || len(a) != 64 {
		t.Errorf("expected stable 64-char hex hash, got %q and %q", a, b)
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}
