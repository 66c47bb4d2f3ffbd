package wiki

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jharjadi/wikigpt/core-api-go/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type pageReply struct {
	page  *Page
	err   error
	delay time.Duration
}

type fakePageAPI struct {
	mu      sync.Mutex
	replies map[string]pageReply
	calls   []string
}

func (f *fakePageAPI) Page(ctx context.Context, title string) (*Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, title)
	r, ok := f.replies[title]
	f.mu.Unlock()

	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if !ok {
		return &Page{Title: title, Exists: false}, nil
	}
	return r.page, r.err
}

func (f *fakePageAPI) callCount(title string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == title {
			n++
		}
	}
	return n
}

func existing(title, text string) pageReply {
	return pageReply{page: &Page{
		Title:  title,
		Exists: true,
		Text:   text,
		URL:    "https://en.wikipedia.org/wiki/" + strings.ReplaceAll(title, " ", "_"),
	}}
}

func TestFetch_Success(t *testing.T) {
	api := &fakePageAPI{replies: map[string]pageReply{
		"Alan Turing": existing("Alan Turing", "Mathematician."),
	}}
	f := NewContentFetcher(api, 10, 4000, 4)

	res := f.Fetch(context.Background(), []string{"Alan Turing"})

	require.Len(t, res.Pages, 1)
	assert.Equal(t, "--- Wikipedia article: Alan Turing ---\nMathematician.", res.Context())
	assert.Equal(t, []model.Source{{Title: "Alan Turing", URL: "https://en.wikipedia.org/wiki/Alan_Turing"}}, res.Sources())
}

func TestFetch_Truncates(t *testing.T) {
	api := &fakePageAPI{replies: map[string]pageReply{
		"Long": existing("Long", strings.Repeat("a", 5000)),
	}}
	f := NewContentFetcher(api, 10, 4000, 4)

	res := f.Fetch(context.Background(), []string{"Long"})

	require.Len(t, res.Pages, 1)
	text := res.Pages[0].Text
	assert.Len(t, text, 4003)
	assert.True(t, strings.HasSuffix(text, Ellipsis))
}

func TestFetch_TruncatesByCharacter(t *testing.T) {
	api := &fakePageAPI{replies: map[string]pageReply{
		"Umlaut": existing("Umlaut", strings.Repeat("ü", 10)),
	}}
	f := NewContentFetcher(api, 10, 4, 1)

	res := f.Fetch(context.Background(), []string{"Umlaut"})

	require.Len(t, res.Pages, 1)
	assert.Equal(t, "üüüü...", res.Pages[0].Text)
}

func TestFetch_EmptyTextNote(t *testing.T) {
	api := &fakePageAPI{replies: map[string]pageReply{
		"Stub": existing("Stub", ""),
	}}
	f := NewContentFetcher(api, 10, 4000, 4)

	res := f.Fetch(context.Background(), []string{"Stub"})

	require.Len(t, res.Pages, 1)
	assert.Equal(t, "No text content could be extracted for 'Stub'.", res.Pages[0].Text)
	assert.Len(t, res.Sources(), 1)
}

func TestFetch_MissingPageSkippedSilently(t *testing.T) {
	api := &fakePageAPI{replies: map[string]pageReply{
		"Cat": existing("Cat", "Meow."),
	}}
	f := NewContentFetcher(api, 10, 4000, 4)

	res := f.Fetch(context.Background(), []string{"Nonexistent page", "Cat"})

	assert.Len(t, res.Segments, 1)
	assert.NotContains(t, res.Context(), "Nonexistent page")
	assert.Equal(t, []model.Source{{Title: "Cat", URL: "https://en.wikipedia.org/wiki/Cat"}}, res.Sources())
}

func TestFetch_NetworkErrorAddsNote(t *testing.T) {
	netErr := &url.Error{Op: "Get", URL: "https://en.wikipedia.org/w/api.php", Err: errors.New("connection reset")}
	api := &fakePageAPI{replies: map[string]pageReply{
		"Dog": {err: netErr},
		"Cat": existing("Cat", "Meow."),
	}}
	f := NewContentFetcher(api, 10, 4000, 4)

	res := f.Fetch(context.Background(), []string{"Dog", "Cat"})

	require.Len(t, res.Segments, 2)
	assert.Equal(t, "--- Note: Could not fetch content for Wikipedia article: Dog due to network error ---", res.Segments[0])
	assert.Equal(t, []model.Source{{Title: "Cat", URL: "https://en.wikipedia.org/wiki/Cat"}}, res.Sources())
}

func TestFetch_OtherErrorAddsNote(t *testing.T) {
	api := &fakePageAPI{replies: map[string]pageReply{
		"Dog": {err: errors.New("unmarshal response: unexpected end of JSON input")},
	}}
	f := NewContentFetcher(api, 10, 4000, 4)

	res := f.Fetch(context.Background(), []string{"Dog"})

	assert.Equal(t, "--- Note: Error fetching content for Wikipedia article: Dog ---", res.Context())
	assert.Empty(t, res.Sources())
	assert.NotNil(t, res.Sources())
}

func TestFetch_NothingFetched(t *testing.T) {
	api := &fakePageAPI{}
	f := NewContentFetcher(api, 10, 4000, 4)

	res := f.Fetch(context.Background(), []string{"Ghost"})

	assert.Equal(t, NoContentMessage, res.Context())
	assert.Equal(t, []model.Source{}, res.Sources())
}

func TestFetch_Dedupes(t *testing.T) {
	api := &fakePageAPI{replies: map[string]pageReply{
		"Dog": existing("Dog", "Woof."),
		"Cat": existing("Cat", "Meow."),
	}}
	f := NewContentFetcher(api, 10, 4000, 4)

	res := f.Fetch(context.Background(), []string{"Dog", "Dog", "Cat"})

	assert.Equal(t, 1, api.callCount("Dog"))
	assert.Len(t, res.Pages, 2)
}

func TestFetch_CapsBeforeDedupe(t *testing.T) {
	api := &fakePageAPI{replies: map[string]pageReply{
		"A": existing("A", "a"),
		"B": existing("B", "b"),
		"C": existing("C", "c"),
	}}
	f := NewContentFetcher(api, 2, 4000, 4)

	res := f.Fetch(context.Background(), []string{"A", "A", "B", "C"})

	titles := make([]string, 0, len(res.Pages))
	for _, p := range res.Pages {
		titles = append(titles, p.Title)
	}
	if diff := cmp.Diff([]string{"A"}, titles); diff != "" {
		t.Errorf("fetched titles mismatch (-want +got):\n%s", diff)
	}
}

func TestFetch_PreservesInputOrder(t *testing.T) {
	// Earlier titles finish last.
	api := &fakePageAPI{replies: map[string]pageReply{
		"First":  {page: &Page{Exists: true, Text: "1", URL: "u1"}, delay: 30 * time.Millisecond},
		"Second": {page: &Page{Exists: true, Text: "2", URL: "u2"}, delay: 15 * time.Millisecond},
		"Third":  {page: &Page{Exists: true, Text: "3", URL: "u3"}},
	}}
	f := NewContentFetcher(api, 10, 4000, 3)

	res := f.Fetch(context.Background(), []string{"First", "Second", "Third"})

	want := []model.Source{
		{Title: "First", URL: "u1"},
		{Title: "Second", URL: "u2"},
		{Title: "Third", URL: "u3"},
	}
	if diff := cmp.Diff(want, res.Sources()); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab...", Truncate("abc", 2))
	assert.Equal(t, "", Truncate("", 2))
}
