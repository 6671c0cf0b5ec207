package reviewer

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/tribunal/internal/models"
)

// AnthropicBackend is the structured direct call path.
type AnthropicBackend struct {
	api *anthropic.Client
}

// NewAnthropicBackend creates the direct backend. An empty apiKey defers to
// the SDK's environment lookup.
func NewAnthropicBackend(apiKey string) *AnthropicBackend {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicBackend{api: &client}
}

// Complete performs one message call and returns the first text block.
func (b *AnthropicBackend) Complete(ctx context.Context, req Request) (*Response, error) {
	msg, err := b.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: 8192,
		System: []anthropic.TextBlockParam{
			{Text: req.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, &InvalidResponseError{Reason: "no text content in API response"}
	}

	return &Response{
		Content: text,
		Usage: models.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}, nil
}
