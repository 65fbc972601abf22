package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/liushuangls/go-anthropic/v2"
)

// DefaultClaudeModel is the Anthropic model used for CV structuring. Haiku is
// fast and cheap enough to run over large CV batches.
const DefaultClaudeModel = "claude-3-5-haiku-20241022"

// structuringSystemPrompt frames every structuring request.
const structuringSystemPrompt = "Respond to the request and extract structured data."

// ClaudeClient is a Completer backed by the Anthropic Messages API.
type ClaudeClient struct {
	client *anthropic.Client
	model  string
}

// NewClaudeClient creates an Anthropic-backed completer. It reads
// ANTHROPIC_API_KEY from the environment and returns an error if not set.
// An empty model selects DefaultClaudeModel.
func NewClaudeClient(model string) (*ClaudeClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
	}
	if model == "" {
		model = DefaultClaudeModel
	}
	return &ClaudeClient{
		client: anthropic.NewClient(apiKey),
		model:  model,
	}, nil
}

// Complete sends a single user prompt and concatenates the text blocks of the
// response.
func (c *ClaudeClient) Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		System:      structuringSystemPrompt,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewTextMessageContent(prompt),
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	var out string
	for _, block := range resp.Content {
		if block.Text != nil {
			out += *block.Text
		}
	}
	if out == "" {
		return "", fmt.Errorf("anthropic completion: empty response")
	}
	return out, nil
}
