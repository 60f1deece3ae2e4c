package pricing

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
	codecErr  error
)

// loadCodec initializes the shared cl100k_base codec once. The codec matches
// the tokenization scheme the billed completion API uses, so estimates track
// real billing.
func loadCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
		if codecErr != nil {
			codecErr = fmt.Errorf("pricing: load tokenizer: %w", codecErr)
		}
	})
	return codec, codecErr
}

// CountTokens returns the deterministic token count of text under the
// cl100k_base encoding. An empty string counts zero tokens.
func CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	enc, errLoad := loadCodec()
	if errLoad != nil {
		return 0, errLoad
	}
	ids, _, errEncode := enc.Encode(text)
	if errEncode != nil {
		return 0, fmt.Errorf("pricing: encode: %w", errEncode)
	}
	return len(ids), nil
}
