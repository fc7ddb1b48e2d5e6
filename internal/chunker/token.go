package chunker

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
	codecErr  error
)

// CountTokens returns the cl100k token count of text. If the codec cannot be
// loaded it falls back to EstimateTokens.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	if codecErr != nil {
		return EstimateTokens(text)
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return EstimateTokens(text)
	}
	return len(ids)
}

// EstimateTokens gives a rough token count from the word count.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	// Roughly 0.75 words per token for English text.
	tokens := int(float64(words) * 1.33)
	if tokens < 1 && len(text) > 0 {
		tokens = 1
	}
	return tokens
}
