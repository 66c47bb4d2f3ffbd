package wiki

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"unicode/utf8"

	"github.com/jharjadi/wikigpt/core-api-go/internal/model"
	"golang.org/x/sync/errgroup"
)

// Ellipsis marks truncated page text.
const Ellipsis = "..."

// NoContentMessage is the context used when no page produced any segment.
const NoContentMessage = "Could not retrieve content from the specified Wikipedia page(s)."

const (
	articleHeader = "--- Wikipedia article: %s ---\n%s"
	networkNote   = "--- Note: Could not fetch content for Wikipedia article: %s due to network error ---"
	errorNote     = "--- Note: Error fetching content for Wikipedia article: %s ---"
	emptyText     = "No text content could be extracted for '%s'."
)

// FetchedPage is a page that exists and whose text was loaded.
type FetchedPage struct {
	Title string
	Text  string
	URL   string
}

// FetchResult holds fetched pages and context segments, both in input order.
// Every segment is labelled with its page title; failed pages contribute a
// note segment but no FetchedPage.
type FetchResult struct {
	Pages    []FetchedPage
	Segments []string
}

// Context joins the segments into one grounding text. It is never empty.
func (r *FetchResult) Context() string {
	if r == nil || len(r.Segments) == 0 {
		return NoContentMessage
	}
	return strings.Join(r.Segments, "\n\n")
}

// Sources projects the fetched pages to caller-visible sources.
func (r *FetchResult) Sources() []model.Source {
	if r == nil || len(r.Segments) == 0 {
		return []model.Source{}
	}
	sources := make([]model.Source, 0, len(r.Pages))
	for _, p := range r.Pages {
		sources = append(sources, model.Source{Title: p.Title, URL: p.URL})
	}
	return sources
}

// ContentFetcher loads and bounds page text for a list of titles.
// A failing page never fails the batch.
type ContentFetcher struct {
	api         PageAPI
	maxPages    int
	maxChars    int
	concurrency int
}

// NewContentFetcher creates a new ContentFetcher.
// maxPages caps the titles processed per call, maxChars caps each page's text
// (in characters), concurrency bounds in-flight page requests.
func NewContentFetcher(api PageAPI, maxPages, maxChars, concurrency int) *ContentFetcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ContentFetcher{
		api:         api,
		maxPages:    maxPages,
		maxChars:    maxChars,
		concurrency: concurrency,
	}
}

type pageOutcome struct {
	segment string
	page    *FetchedPage
}

// Fetch loads every title (capped to maxPages, then deduplicated) and returns
// the results in input order regardless of completion order.
func (f *ContentFetcher) Fetch(ctx context.Context, titles []string) *FetchResult {
	titles = capAndDedupe(titles, f.maxPages)

	outcomes := make([]pageOutcome, len(titles))
	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, title := range titles {
		g.Go(func() error {
			outcomes[i] = f.fetchOne(ctx, title)
			return nil
		})
	}
	_ = g.Wait() // fetchOne absorbs every error

	result := &FetchResult{}
	for _, o := range outcomes {
		if o.segment == "" {
			continue
		}
		result.Segments = append(result.Segments, o.segment)
		if o.page != nil {
			result.Pages = append(result.Pages, *o.page)
		}
	}
	return result
}

func (f *ContentFetcher) fetchOne(ctx context.Context, title string) pageOutcome {
	page, err := f.api.Page(ctx, title)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) {
			slog.Warn("network error fetching wikipedia page", "title", title, "error", err)
			return pageOutcome{segment: fmt.Sprintf(networkNote, title)}
		}
		slog.Warn("error fetching wikipedia page", "title", title, "error", err)
		return pageOutcome{segment: fmt.Sprintf(errorNote, title)}
	}
	if page == nil || !page.Exists {
		slog.Debug("wikipedia page does not exist", "title", title)
		return pageOutcome{}
	}

	text := Truncate(page.Text, f.maxChars)
	if text == "" {
		text = fmt.Sprintf(emptyText, title)
	}

	return pageOutcome{
		segment: fmt.Sprintf(articleHeader, title, text),
		page: &FetchedPage{
			Title: title,
			Text:  text,
			URL:   page.URL,
		},
	}
}

// Truncate cuts s to maxChars characters and appends Ellipsis when it was longer.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxChars]) + Ellipsis
}

func capAndDedupe(titles []string, limit int) []string {
	if limit > 0 && len(titles) > limit {
		titles = titles[:limit]
	}
	out := make([]string, 0, len(titles))
	seen := make(map[string]bool, len(titles))
	for _, t := range titles {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
