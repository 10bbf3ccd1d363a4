package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"NewsletterDigest/internal/domain"
	"NewsletterDigest/internal/ports"
)

const (
	defaultClaudeMaxTokens = 4096
	jsonOnlyInstruction    = "Respond with a single valid JSON value and nothing else."
)

// ClaudeClient implements chat on the Anthropic messages API. It has no embeddings.
type ClaudeClient struct {
	client *anthropic.Client
	model  string
}

var _ ports.ChatClient = (*ClaudeClient)(nil)

func NewClaudeClient(apiKey, model, baseURL string) *ClaudeClient {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	return &ClaudeClient{client: anthropic.NewClient(apiKey, opts...), model: model}
}

func (c *ClaudeClient) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	system := strings.TrimSpace(req.System)
	if req.JSON {
		system = strings.TrimSpace(system + "\n" + jsonOnlyInstruction)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultClaudeMaxTokens
	}
	temperature := req.Temperature

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:  anthropic.Model(c.model),
		System: system,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(req.Prompt),
		},
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return "", fmt.Errorf("claude messages: %w", err)
	}

	for _, content := range resp.Content {
		if content.Text != nil {
			return *content.Text, nil
		}
	}
	return "", fmt.Errorf("claude messages: no response content")
}
