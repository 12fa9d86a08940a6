package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultOpenAIURL   = "https://api.openai.com/v1/embeddings"
	defaultOpenAIModel = "text-embedding-3-small"

	// openAIMaxBatch is the API's limit on inputs per request.
	openAIMaxBatch = 2048
)

// OpenAIClient implements EmbeddingClient using OpenAI's embeddings API.
// Inputs beyond BatchSize are sent in several requests.
type OpenAIClient struct {
	APIKey  string
	Model   string
	BaseURL string

	// Dimensions shortens the returned vectors (text-embedding-3 models only);
	// zero keeps the model's native size
	Dimensions int

	// BatchSize caps inputs per request (default and maximum: 2048)
	BatchSize int

	HTTPClient *http.Client
}

// NewOpenAIClient creates an OpenAI embedding client for the default model.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		APIKey:     apiKey,
		Model:      defaultOpenAIModel,
		BaseURL:    defaultOpenAIURL,
		BatchSize:  openAIMaxBatch,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type openAIRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *openAIError `json:"error,omitempty"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Embed generates one embedding per text, in input order.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	size := c.BatchSize
	if size <= 0 || size > openAIMaxBatch {
		size = openAIMaxBatch
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		batch, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			if start > 0 {
				return nil, fmt.Errorf("batch at input %d: %w", start, err)
			}
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (c *OpenAIClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(openAIRequest{Input: texts, Model: c.Model, Dimensions: c.Dimensions})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp openAIResponse
	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if json.Unmarshal(body, &apiResp) == nil && apiResp.Error != nil {
			msg = apiResp.Error.Message
		}
		return nil, &StatusError{Service: "openai", StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("openai error: %s", apiResp.Error.Message)
	}

	// Place embeddings by index; every slot must be filled exactly once.
	vectors := make([][]float32, len(texts))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(vectors) || vectors[data.Index] != nil {
			return nil, fmt.Errorf("%w: invalid embedding index %d", ErrMalformedResponse, data.Index)
		}
		vectors[data.Index] = data.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: missing embedding %d", ErrMalformedResponse, i)
		}
		if c.Dimensions > 0 && len(v) != c.Dimensions {
			return nil, fmt.Errorf("%w: embedding %d has %d dimensions, want %d", ErrMalformedResponse, i, len(v), c.Dimensions)
		}
	}
	return vectors, nil
}

// EmbedOne generates an embedding for a single text
func (c *OpenAIClient) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, c, text)
}
