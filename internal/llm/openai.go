package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
)

// DefaultOpenAIModel is the chat model used for re-ranking and query
// expansion.
const DefaultOpenAIModel = openai.ChatModelGPT4oMini

// OpenAIClient is a Completer backed by the OpenAI chat completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI-backed completer around an existing
// client, so query-time completions share the embedding client's connection.
// An empty model selects DefaultOpenAIModel.
func NewOpenAIClient(client *openai.Client, model string) *OpenAIClient {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIClient{client: client, model: model}
}

// Complete sends a single user message and returns the assistant's text.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       c.model,
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(float64(temperature)),
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
