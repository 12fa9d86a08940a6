package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaGenerator implements Generator using a local Ollama server.
type OllamaGenerator struct {
	baseURL string
	opts    Options
	client  *http.Client
}

// NewOllamaGenerator creates a new Ollama generator.
// baseURL is typically "http://localhost:11434"; opts.Model e.g. "mistral".
func NewOllamaGenerator(baseURL string, opts Options) *OllamaGenerator {
	return &OllamaGenerator{
		baseURL: baseURL,
		opts:    opts,
		client: &http.Client{
			Timeout: 300 * time.Second, // 5 minutes for slow local models
		},
	}
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	System  string        `json:"system,omitempty"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate implements Generator.
func (c *OllamaGenerator) Generate(ctx context.Context, systemPrompt, query, contextText string) (string, error) {
	jsonData, err := json.Marshal(ollamaGenerateRequest{
		Model:  c.opts.Model,
		System: systemPrompt,
		Prompt: UserMessage(query, contextText),
		Stream: false,
		Options: ollamaOptions{
			Temperature: c.opts.Temperature,
			NumPredict:  c.opts.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &StatusError{Service: "ollama", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if result.Response == "" {
		return "", ErrEmptyCompletion
	}
	return result.Response, nil
}
