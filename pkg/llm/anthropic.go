package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel = "claude-3-haiku-20240307"
	defaultMaxTokens      = 300
)

// MessagesClient is the subset of the Anthropic SDK used here; tests substitute a fake.
type MessagesClient interface {
	New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

type sdkMessages struct {
	messages *anthropic.MessageService
}

func (s sdkMessages) New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return s.messages.New(ctx, params)
}

// AnthropicGenerator implements Generator with the Anthropic Messages API.
type AnthropicGenerator struct {
	messages MessagesClient
	opts     Options
}

// NewAnthropicGenerator creates a generator using the official SDK.
// An empty baseURL selects the public API.
func NewAnthropicGenerator(apiKey, baseURL string, opts Options) *AnthropicGenerator {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(reqOpts...)
	return NewAnthropicGeneratorWithClient(sdkMessages{messages: &client.Messages}, opts)
}

// NewAnthropicGeneratorWithClient creates a generator over any MessagesClient.
func NewAnthropicGeneratorWithClient(messages MessagesClient, opts Options) *AnthropicGenerator {
	if opts.Model == "" {
		opts.Model = defaultAnthropicModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	return &AnthropicGenerator{messages: messages, opts: opts}
}

// Generate implements Generator.
func (g *AnthropicGenerator) Generate(ctx context.Context, systemPrompt, query, contextText string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(g.opts.Model),
		MaxTokens:   int64(g.opts.MaxTokens),
		Temperature: anthropic.Float(g.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(UserMessage(query, contextText))),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	msg, err := g.messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{Service: "anthropic", StatusCode: apiErr.StatusCode, Body: http.StatusText(apiErr.StatusCode)}
		}
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}
	if msg == nil {
		return "", ErrMalformedResponse
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.Join(parts, "\n"), nil
}
