// Package openai is a minimal client for the completion API endpoints the
// generator consumes: one text completion and one image generation per call.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/blogforge/blogforge/internal/config"

	log "github.com/sirupsen/logrus"
)

// Upstream model identifiers behind the billing tiers.
const (
	fastModelID    = "gpt-3.5-turbo-instruct"
	premiumModelID = "gpt-4"
	imageModelID   = "dall-e-3"
)

// Request constants shared by both text endpoints. The stop sequence bounds
// run-on output at multiple consecutive blank lines.
var textStopSequences = []string{"\n\n\n\n"}

const textTemperature = 0.7

// defaultRequestTimeout bounds one upstream call when the config omits one.
const defaultRequestTimeout = 120 * time.Second

// Client calls the completion API over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient constructs a Client from upstream configuration.
func NewClient(cfg config.UpstreamConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		client:  &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTP constructs a Client with an injected HTTP client; used
// by tests to point at a fake upstream.
func NewClientWithHTTP(baseURL, apiKey string, httpClient *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  httpClient,
	}
}

// TextRequest describes one text completion call.
type TextRequest struct {
	Model     string // Billing tier; selects the upstream endpoint.
	Prompt    string
	MaxTokens int
}

// GenerateText runs one synchronous text completion and returns the first
// choice's text. The premium tier uses the chat endpoint, the fast tier the
// instruct completion endpoint.
func (c *Client) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("openai: client not initialized")
	}

	var (
		path    string
		payload any
	)
	switch req.Model {
	case config.ModelPremiumTier:
		path = "/v1/chat/completions"
		payload = chatCompletionRequest{
			Model: premiumModelID,
			Messages: []chatMessage{
				{Role: "system", Content: "You are a helpful assistant."},
				{Role: "user", Content: req.Prompt},
			},
			MaxTokens:   req.MaxTokens,
			N:           1,
			Stop:        textStopSequences,
			Temperature: textTemperature,
		}
	default:
		path = "/v1/completions"
		payload = completionRequest{
			Model:       fastModelID,
			Prompt:      req.Prompt,
			MaxTokens:   req.MaxTokens,
			N:           1,
			Stop:        textStopSequences,
			Temperature: textTemperature,
		}
	}

	body, errCall := c.post(ctx, path, payload)
	if errCall != nil {
		return "", errCall
	}

	if req.Model == config.ModelPremiumTier {
		var parsed chatCompletionResponse
		if errUnmarshal := json.Unmarshal(body, &parsed); errUnmarshal != nil {
			return "", fmt.Errorf("openai: parse chat response: %w", errUnmarshal)
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("openai: empty chat response")
		}
		return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
	}

	var parsed completionResponse
	if errUnmarshal := json.Unmarshal(body, &parsed); errUnmarshal != nil {
		return "", fmt.Errorf("openai: parse completion response: %w", errUnmarshal)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai: empty completion response")
	}
	return strings.TrimSpace(parsed.Choices[0].Text), nil
}

// GenerateImage runs one illustration generation and returns the image URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("openai: client not initialized")
	}

	payload := imageRequest{
		Model:   imageModelID,
		Prompt:  prompt,
		N:       1,
		Size:    "1024x1024",
		Quality: "hd",
	}
	body, errCall := c.post(ctx, "/v1/images/generations", payload)
	if errCall != nil {
		return "", errCall
	}

	var parsed imageResponse
	if errUnmarshal := json.Unmarshal(body, &parsed); errUnmarshal != nil {
		return "", fmt.Errorf("openai: parse image response: %w", errUnmarshal)
	}
	if len(parsed.Data) == 0 || strings.TrimSpace(parsed.Data[0].URL) == "" {
		return "", fmt.Errorf("openai: empty image response")
	}
	return parsed.Data[0].URL, nil
}

// post sends a JSON request and returns the response body for 2xx statuses.
func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", errMarshal)
	}

	req, errRequest := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if errRequest != nil {
		return nil, fmt.Errorf("openai: build request: %w", errRequest)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, errDo := c.client.Do(req)
	if errDo != nil {
		return nil, fmt.Errorf("openai: request failed: %w", errDo)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("openai: close response body failed")
		}
	}()

	body, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return nil, fmt.Errorf("openai: read response: %w", errRead)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("openai: unexpected status %d: %s", resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	N           int           `json:"n"`
	Stop        []string      `json:"stop"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type completionRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens"`
	N           int      `json:"n"`
	Stop        []string `json:"stop"`
	Temperature float64  `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

type imageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}
