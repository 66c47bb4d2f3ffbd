// Package service implements the chat pipeline business logic.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jharjadi/wikigpt/core-api-go/internal/model"
	"github.com/jharjadi/wikigpt/core-api-go/internal/wiki"
)

// Mode selects where candidate pages come from.
type Mode string

const (
	ModeSearch  Mode = "search"
	ModeURLOnly Mode = "url_only"
	ModeBoth    Mode = "both"
)

// ParseMode maps a request's wiki_mode to a Mode. Empty means search.
// Unknown values also map to search, with ok=false.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "", ModeSearch:
		return ModeSearch, true
	case ModeURLOnly:
		return ModeURLOnly, true
	case ModeBoth:
		return ModeBoth, true
	default:
		return ModeSearch, false
	}
}

const (
	couldNotProcessURLMessage = "Could not process the provided Wikipedia URL: %s"
	noPagesFoundMessage       = "No relevant Wikipedia pages found for query: '%s'"
)

// TitleSearcher returns candidate titles for a free-text query. It never fails.
type TitleSearcher interface {
	Search(ctx context.Context, query string) []string
}

// PageFetcher loads page content for candidate titles. It never fails.
type PageFetcher interface {
	Fetch(ctx context.Context, titles []string) *wiki.FetchResult
}

// ResolveRequest is the resolver's input.
type ResolveRequest struct {
	Query string
	URL   string
	Mode  string
}

// Resolution is the grounding context and the caller-visible sources for one request.
type Resolution struct {
	Mode          Mode
	URLTitle      string
	URLTitleOK    bool
	SearchResults int
	Candidates    []string
	Context       string
	Sources       []model.Source
}

// Resolver combines link extraction and search according to the mode and
// fetches the resulting candidates.
type Resolver struct {
	search     TitleSearcher
	fetch      PageFetcher
	maxResults int
}

// NewResolver creates a new Resolver. maxResults caps the candidate list.
func NewResolver(search TitleSearcher, fetch PageFetcher, maxResults int) *Resolver {
	return &Resolver{
		search:     search,
		fetch:      fetch,
		maxResults: maxResults,
	}
}

// Resolve runs the mode state machine and returns context plus sources.
// Context is never empty.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) *Resolution {
	mode, ok := ParseMode(req.Mode)
	if !ok {
		slog.Warn("invalid wiki_mode, defaulting to search", "wiki_mode", req.Mode)
	}

	res := &Resolution{
		Mode:       mode,
		Candidates: []string{},
		Sources:    []model.Source{},
	}

	// The link is ignored entirely in search mode.
	if mode != ModeSearch && req.URL != "" {
		res.URLTitle, res.URLTitleOK = wiki.ExtractTitle(req.URL)
		if res.URLTitleOK {
			slog.Info("extracted title from URL", "title", res.URLTitle)
		} else {
			slog.Warn("could not extract title from URL", "url", req.URL)
		}
	}

	var candidates []string
	switch mode {
	case ModeURLOnly:
		if !res.URLTitleOK {
			res.Context = fmt.Sprintf(couldNotProcessURLMessage, req.URL)
			return res
		}
		candidates = []string{res.URLTitle}

	case ModeBoth:
		found := r.search.Search(ctx, req.Query)
		res.SearchResults = len(found)
		candidates = found
		if res.URLTitleOK && !slices.Contains(found, res.URLTitle) {
			candidates = append([]string{res.URLTitle}, found...)
		}

	default:
		found := r.search.Search(ctx, req.Query)
		res.SearchResults = len(found)
		candidates = found
	}

	if len(candidates) == 0 {
		slog.Warn("no wikipedia pages found or selected", "query", req.Query, "mode", mode)
		res.Context = fmt.Sprintf(noPagesFoundMessage, req.Query)
		return res
	}
	if r.maxResults > 0 && len(candidates) > r.maxResults {
		candidates = candidates[:r.maxResults]
	}
	res.Candidates = candidates

	fetched := r.fetch.Fetch(ctx, candidates)
	res.Context = fetched.Context()
	res.Sources = visibleSources(mode, res.URLTitleOK, fetched.Sources())

	slog.Info("resolved wikipedia context",
		"mode", mode,
		"candidates", len(candidates),
		"sources", len(res.Sources),
		"context_chars", len(res.Context),
	)
	return res
}

// visibleSources applies the per-mode visibility rule to the fetched sources.
func visibleSources(mode Mode, urlTitleOK bool, fetched []model.Source) []model.Source {
	if mode == ModeURLOnly && !urlTitleOK {
		return []model.Source{}
	}
	if fetched == nil {
		return []model.Source{}
	}
	return fetched
}
