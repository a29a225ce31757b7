// ABOUTME: Prompt token counting with tiktoken's cl100k_base encoding
// ABOUTME: Falls back to a characters-per-token estimate when the encoding is unavailable
package llm

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// approxCharsPerToken is the usual English estimate for BPE vocabularies
const approxCharsPerToken = 4

// TokenCounter counts tokens in prompts
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter loads cl100k_base. The encoding may need to be fetched on
// first use, so callers should be ready for an error.
func NewTokenCounter() (*TokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding: %w", err)
	}
	return &TokenCounter{encoding: enc}, nil
}

// EstimateTokens approximates a token count from the rune length
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + approxCharsPerToken - 1) / approxCharsPerToken
}

// CountTokens is safe on a nil counter and estimates in that case
func (t *TokenCounter) CountTokens(text string) int {
	if t == nil || t.encoding == nil {
		return EstimateTokens(text)
	}
	return len(t.encoding.Encode(text, nil, nil))
}
