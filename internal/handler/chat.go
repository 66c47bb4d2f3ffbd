// Package handler implements HTTP handlers for the chat API.
package handler

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jharjadi/wikigpt/core-api-go/internal/config"
	"github.com/jharjadi/wikigpt/core-api-go/internal/model"
	"github.com/jharjadi/wikigpt/core-api-go/internal/service"
)

const maxRequestBytes = 1 << 20

// ChatHandler handles POST /chat requests.
type ChatHandler struct {
	cfg  *config.Config
	chat *service.ChatService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(cfg *config.Config, chat *service.ChatService) *ChatHandler {
	return &ChatHandler{
		cfg:  cfg,
		chat: chat,
	}
}

// Handle processes a POST /chat request:
// decode → resolve wikipedia context → completion → response.
// Every pipeline outcome is a 200; only an undecodable body is a 400.
func (h *ChatHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	totalStart := time.Now()

	requestID := chimw.GetReqID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	var req model.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON: "+err.Error())
		return
	}

	clog := &model.ChatLog{
		Timestamp:     time.Now().UTC(),
		RequestID:     requestID,
		RequestedMode: req.WikiMode,
		HasURL:        strings.TrimSpace(req.WikiURL) != "",
		LLMModel:      h.cfg.ModelID,
	}

	result := h.chat.Chat(ctx, &req)

	clog.QueryHash = hashQuery(result.EffectiveQuery)
	clog.ShortCircuited = result.ShortCircuited
	clog.LatencyMSResolve = result.ResolveLatency.Milliseconds()
	clog.LatencyMSLLM = result.LLMLatency.Milliseconds()
	clog.ContextTokensEst = result.ContextTokensEst
	if res := result.Resolution; res != nil {
		clog.Mode = string(res.Mode)
		clog.URLTitleExtracted = res.URLTitleOK
		clog.NumSearchResults = res.SearchResults
		clog.NumCandidates = len(res.Candidates)
		clog.NumSources = len(res.Sources)
		clog.ContextChars = len(res.Context)
	}
	if result.Completion != nil {
		clog.LLMPromptTokens = result.Completion.PromptTokens
		clog.LLMCompletionTokens = result.Completion.CompletionTokens
	}
	if result.CompletionErr != nil {
		clog.CompletionErrorKind = string(result.CompletionErr.Kind)
	}

	if result.Response.Debug != nil {
		result.Response.Debug.TraceID = requestID
	}

	writeJSON(w, http.StatusOK, result.Response)
	h.emitChatLog(clog, http.StatusOK, totalStart)
}

// emitChatLog writes the structured per-request log line.
func (h *ChatHandler) emitChatLog(clog *model.ChatLog, httpStatus int, totalStart time.Time) {
	clog.HTTPStatus = httpStatus
	clog.LatencyMSTotal = time.Since(totalStart).Milliseconds()

	slog.Info("chat",
		"ts", clog.Timestamp.Format(time.RFC3339),
		"request_id", clog.RequestID,
		"query_hash", clog.QueryHash,
		"mode", clog.Mode,
		"requested_mode", clog.RequestedMode,
		"has_url", clog.HasURL,
		"url_title_extracted", clog.URLTitleExtracted,
		"short_circuited", clog.ShortCircuited,
		"num_search_results", clog.NumSearchResults,
		"num_candidates", clog.NumCandidates,
		"num_sources", clog.NumSources,
		"context_chars", clog.ContextChars,
		"context_tokens_est", clog.ContextTokensEst,
		"latency_ms_total", clog.LatencyMSTotal,
		"latency_ms_resolve", clog.LatencyMSResolve,
		"latency_ms_llm", clog.LatencyMSLLM,
		"llm_model", clog.LLMModel,
		"llm_prompt_tokens", clog.LLMPromptTokens,
		"llm_completion_tokens", clog.LLMCompletionTokens,
		"completion_error_kind", clog.CompletionErrorKind,
		"http_status", clog.HTTPStatus,
	)
}

// hashQuery returns SHA-256 hex of the query, or "" for an empty query.
func hashQuery(query string) string {
	if query == "" {
		return ""
	}
	h := sha256.Sum256([]byte(query))
	return fmt.Sprintf("%x", h)
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// writeError writes a standard error response.
func writeError(w http.ResponseWriter, status int, errCode, message string) {
	writeJSON(w, status, model.ErrorResponse{
		Error:   errCode,
		Message: message,
	})
}
