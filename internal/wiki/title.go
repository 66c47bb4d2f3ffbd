// Package wiki resolves Wikipedia pages: link parsing, full-text search and
// bounded page-content fetching over the MediaWiki action API.
package wiki

import (
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const wikipediaDomain = "wikipedia.org"

// ExtractTitle returns the page title named by a Wikipedia link such as
// https://en.wikipedia.org/wiki/Alan_Turing. The second return value is false
// when the link is not a Wikipedia page link or cannot be parsed; that is an
// expected outcome, not an error.
func ExtractTitle(rawURL string) (string, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", false
	}
	if !strings.Contains(rawURL, "://") && !strings.HasPrefix(rawURL, "//") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	if !isWikipediaHost(u.Hostname()) {
		return "", false
	}

	// Split the escaped path so an encoded "/" stays inside its segment.
	segments := strings.Split(u.EscapedPath(), "/")
	for i, seg := range segments {
		if seg != "wiki" {
			continue
		}
		if i+1 >= len(segments) || segments[i+1] == "" {
			return "", false
		}
		raw, err := url.PathUnescape(segments[i+1])
		if err != nil {
			return "", false
		}
		title := NormalizeTitle(raw)
		if title == "" {
			return "", false
		}
		return title, true
	}
	return "", false
}

// NormalizeTitle turns a path-form title into the display form used as the
// page identifier: underscores become spaces, Unicode is NFC-composed.
func NormalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "_", " ")
	return strings.TrimSpace(norm.NFC.String(title))
}

func isWikipediaHost(host string) bool {
	host = strings.ToLower(host)
	return host == wikipediaDomain || strings.HasSuffix(host, "."+wikipediaDomain)
}
