package usecase

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// defaultEncoding covers the GPT-4 class tokenizers; counts for other model
// families are close enough for budgeting history.
const defaultEncoding = "cl100k_base"

// TokenCounter estimates how many tokens a text costs in a prompt.
type TokenCounter struct {
	once     sync.Once
	encoding string
	enc      *tiktoken.Tiktoken
	logger   *slog.Logger
	load     func(string) (*tiktoken.Tiktoken, error)
}

// NewTokenCounter creates a counter that loads its BPE tables lazily. When
// the tables cannot be loaded (offline, no cache) it falls back to a
// characters-per-token estimate.
func NewTokenCounter(logger *slog.Logger) *TokenCounter {
	return &TokenCounter{encoding: defaultEncoding, logger: logger, load: tiktoken.GetEncoding}
}

// newEstimatingCounter never loads BPE tables.
func newEstimatingCounter() *TokenCounter {
	c := &TokenCounter{}
	c.once.Do(func() {})
	return c
}

// Count returns the token count of text.
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.once.Do(c.init)
	if c.enc == nil {
		return estimateTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

func (c *TokenCounter) init() {
	enc, err := c.load(c.encoding)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("tokenizer unavailable, estimating token counts", "encoding", c.encoding, "error", err)
		}
		return
	}
	c.enc = enc
}

// estimateTokens uses the common four-characters-per-token rule, counted in
// runes so non-Latin text is not undercounted.
func estimateTokens(text string) int {
	n := 0
	for range text {
		n++
	}
	return (n + 3) / 4
}
