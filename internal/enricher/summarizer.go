package enricher

import (
	"context"
	"fmt"
	"strings"

	"NewsletterDigest/internal/domain"
	"NewsletterDigest/internal/ports"
	"NewsletterDigest/internal/ratelimit"
)

const (
	summarySystemPrompt = "You summarize web articles in plain prose."
	summaryPrompt       = "Summarize the following article in at most three sentences. Answer with the summary only.\n\n%s"
	summaryMaxTokens    = 300
)

// ChatSummarizer summarizes text with a chat model, sharing the pipeline's rate limiter.
type ChatSummarizer struct {
	chat    ports.ChatClient
	limiter *ratelimit.Limiter
}

var _ ports.Summarizer = (*ChatSummarizer)(nil)

func NewChatSummarizer(chat ports.ChatClient, limiter *ratelimit.Limiter) *ChatSummarizer {
	return &ChatSummarizer{chat: chat, limiter: limiter}
}

func (s *ChatSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if s.chat == nil {
		return "", fmt.Errorf("chat client is not configured")
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", fmt.Errorf("wait for rate limit: %w", err)
	}

	out, err := s.chat.Complete(ctx, domain.CompletionRequest{
		System:      summarySystemPrompt,
		Prompt:      fmt.Sprintf(summaryPrompt, text),
		Temperature: 0.1,
		MaxTokens:   summaryMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return strings.TrimSpace(out), nil
}
