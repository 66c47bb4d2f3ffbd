package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Extract formats understood by Client.
const (
	FormatPlain = "plain"
	FormatHTML  = "html"
)

// maxResponseBytes caps a single MediaWiki response body.
const maxResponseBytes = 8 << 20

// SearchHit is one full-text search result.
type SearchHit struct {
	Title string
}

// Page is the page-content endpoint's answer for one title.
type Page struct {
	Title  string
	Exists bool
	Text   string
	URL    string
}

// SearchAPI is the search endpoint contract.
type SearchAPI interface {
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)
}

// PageAPI is the page-content endpoint contract.
type PageAPI interface {
	Page(ctx context.Context, title string) (*Page, error)
}

// Client talks to a MediaWiki action API (api.php).
type Client struct {
	endpoint  string
	userAgent string
	format    string
	client    *http.Client
}

// NewClient creates a new Client. endpoint is the api.php URL, e.g.
// "https://en.wikipedia.org/w/api.php".
func NewClient(endpoint, userAgent, format string, timeout time.Duration) *Client {
	if format != FormatHTML {
		format = FormatPlain
	}
	return &Client{
		endpoint:  endpoint,
		userAgent: userAgent,
		format:    format,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Search runs a full-text search and returns up to limit hits in relevance order.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {strconv.Itoa(limit)},
		"srprop":   {""},
	}

	var resp searchResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	if resp.Query == nil {
		return nil, nil
	}

	hits := make([]SearchHit, 0, len(resp.Query.Search))
	for _, r := range resp.Query.Search {
		if r.Title == "" {
			continue
		}
		hits = append(hits, SearchHit{Title: r.Title})
	}
	return hits, nil
}

// Page loads the text and canonical URL of one page. A missing or invalid
// title is reported as Exists=false, not as an error.
func (c *Client) Page(ctx context.Context, title string) (*Page, error) {
	params := url.Values{
		"action":    {"query"},
		"prop":      {"extracts|info"},
		"inprop":    {"url"},
		"redirects": {"1"},
		"titles":    {title},
	}
	if c.format == FormatPlain {
		params.Set("explaintext", "1")
		params.Set("exsectionformat", "plain")
	}

	var resp pageResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	if resp.Query == nil || len(resp.Query.Pages) == 0 {
		return nil, fmt.Errorf("no pages in response for %q", title)
	}

	p := resp.Query.Pages[0]
	if p.Missing || p.Invalid {
		return &Page{Title: title, Exists: false}, nil
	}

	text := p.Extract
	if c.format == FormatHTML && text != "" {
		var err error
		text, err = TextFromHTML(text)
		if err != nil {
			return nil, fmt.Errorf("parse HTML extract for %q: %w", title, err)
		}
	}

	return &Page{
		Title:  p.Title,
		Exists: true,
		Text:   text,
		URL:    p.FullURL,
	}, nil
}

// get performs a GET against the action API and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("MediaWiki API returned %d: %s", resp.StatusCode, string(body))
	}

	var apiErr apiErrorEnvelope
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != nil {
		return fmt.Errorf("MediaWiki API error %s: %s", apiErr.Error.Code, apiErr.Error.Info)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// MediaWiki API types (formatversion=2)

type apiErrorEnvelope struct {
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

type searchResponse struct {
	Query *struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type pageResponse struct {
	Query *struct {
		Pages []struct {
			Title   string `json:"title"`
			Missing bool   `json:"missing"`
			Invalid bool   `json:"invalid"`
			Extract string `json:"extract"`
			FullURL string `json:"fullurl"`
		} `json:"pages"`
	} `json:"query"`
}
