// Package model defines the domain types for the chat API.
package model

import "time"

// Message roles accepted from callers.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one role-tagged turn of the conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the POST /chat request body.
type ChatRequest struct {
	Messages    []ChatMessage `json:"messages"`
	SearchQuery string        `json:"search_query,omitempty"`
	WikiURL     string        `json:"wiki_url,omitempty"`
	WikiMode    string        `json:"wiki_mode,omitempty"`
	Debug       bool          `json:"debug,omitempty"`
}

// ChatResponse is the POST /chat response body.
type ChatResponse struct {
	Response string     `json:"response"`
	Sources  []Source   `json:"sources"`
	Debug    *DebugInfo `json:"debug,omitempty"`
}

// Source identifies a Wikipedia page that contributed to the grounding context.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DebugInfo contains debug information when debug=true.
type DebugInfo struct {
	TraceID             string   `json:"trace_id"`
	Mode                string   `json:"mode"`
	EffectiveQuery      string   `json:"effective_query"`
	URLTitle            string   `json:"url_title,omitempty"`
	Candidates          []string `json:"candidates"`
	ContextChars        int      `json:"context_chars"`
	ContextTokensEst    int      `json:"context_tokens_est"`
	CompletionErrorKind string   `json:"completion_error_kind,omitempty"`
}

// ChatLog holds all fields for the structured per-request log line.
type ChatLog struct {
	Timestamp           time.Time `json:"ts"`
	RequestID           string    `json:"request_id"`
	QueryHash           string    `json:"query_hash"`
	Mode                string    `json:"mode"`
	RequestedMode       string    `json:"requested_mode"`
	HasURL              bool      `json:"has_url"`
	URLTitleExtracted   bool      `json:"url_title_extracted"`
	ShortCircuited      bool      `json:"short_circuited"`
	NumSearchResults    int       `json:"num_search_results"`
	NumCandidates       int       `json:"num_candidates"`
	NumSources          int       `json:"num_sources"`
	ContextChars        int       `json:"context_chars"`
	ContextTokensEst    int       `json:"context_tokens_est"`
	LatencyMSTotal      int64     `json:"latency_ms_total"`
	LatencyMSResolve    int64     `json:"latency_ms_resolve"`
	LatencyMSLLM        int64     `json:"latency_ms_llm"`
	LLMModel            string    `json:"llm_model"`
	LLMPromptTokens     int       `json:"llm_prompt_tokens"`
	LLMCompletionTokens int       `json:"llm_completion_tokens"`
	CompletionErrorKind string    `json:"completion_error_kind"`
	HTTPStatus          int       `json:"http_status"`
}
