package service

import (
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates how many model tokens a text takes.
type TokenCounter interface {
	Count(text string) int
}

// ApproxTokenCounter assumes roughly four characters per token.
type ApproxTokenCounter struct{}

// Count returns the character count divided by four, rounded up.
func (ApproxTokenCounter) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// TiktokenCounter counts tokens with a BPE encoding. The encoding is loaded on
// first use; if it cannot be loaded the counter falls back to ApproxTokenCounter.
type TiktokenCounter struct {
	encoding string

	once sync.Once
	tkm  *tiktoken.Tiktoken
}

// NewTiktokenCounter creates a counter for the named encoding, e.g. "cl100k_base".
func NewTiktokenCounter(encoding string) *TiktokenCounter {
	return &TiktokenCounter{encoding: encoding}
}

// Warm loads the encoding. tiktoken-go downloads BPE data on first use, so
// servers call this at startup rather than inside the first request.
// It reports whether the encoding is available.
func (c *TiktokenCounter) Warm() bool {
	c.once.Do(func() {
		tkm, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			slog.Warn("tiktoken encoding unavailable, using approximation", "encoding", c.encoding, "error", err)
			return
		}
		c.tkm = tkm
	})
	return c.tkm != nil
}

// Count returns the number of tokens in text.
func (c *TiktokenCounter) Count(text string) int {
	if !c.Warm() {
		return ApproxTokenCounter{}.Count(text)
	}
	return len(c.tkm.Encode(text, nil, nil))
}
