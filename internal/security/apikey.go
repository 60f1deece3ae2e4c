package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// apiKeyBytes is the entropy of a generated API key token.
const apiKeyBytes = 32

// GenerateAPIKey returns a new opaque high-entropy API key token.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, errRead := rand.Read(buf); errRead != nil {
		return "", fmt.Errorf("security: generate api key: %w", errRead)
	}
	return hex.EncodeToString(buf), nil
}
