package wiki

import (
	"context"
	"log/slog"
	"strings"
)

// SearchClient turns a free-text query into candidate page titles.
// Search is best-effort: failures are logged and yield an empty list.
type SearchClient struct {
	api        SearchAPI
	maxResults int
}

// NewSearchClient creates a new SearchClient returning at most maxResults titles.
func NewSearchClient(api SearchAPI, maxResults int) *SearchClient {
	return &SearchClient{
		api:        api,
		maxResults: maxResults,
	}
}

// Search returns up to maxResults page titles in relevance order, deduplicated.
func (c *SearchClient) Search(ctx context.Context, query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return []string{}
	}

	hits, err := c.api.Search(ctx, query, c.maxResults)
	if err != nil {
		slog.Warn("wikipedia search failed", "query", query, "error", err)
		return []string{}
	}

	titles := make([]string, 0, len(hits))
	seen := make(map[string]bool, len(hits))
	for _, h := range hits {
		if len(titles) >= c.maxResults {
			break
		}
		if h.Title == "" || seen[h.Title] {
			continue
		}
		seen[h.Title] = true
		titles = append(titles, h.Title)
	}
	return titles
}
