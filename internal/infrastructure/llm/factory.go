package llm

import (
	"context"
	"fmt"
	"strings"

	"NewsletterDigest/internal/config"
	"NewsletterDigest/internal/ports"
)

// NewChatClient picks the chat provider named in cfg.Provider.
func NewChatClient(ctx context.Context, cfg config.LLMConfig) (ports.ChatClient, error) {
	provider := strings.ToLower(cfg.Provider)
	key := cfg.KeyFor(provider)

	switch provider {
	case "openai", "":
		return NewOpenAIClient(key, cfg.Model, cfg.EmbeddingModel, cfg.BaseURL), nil
	case "gemini":
		return NewGeminiClient(ctx, key, cfg.Model, cfg.EmbeddingModel)
	case "claude", "anthropic":
		return NewClaudeClient(key, cfg.Model, cfg.BaseURL), nil
	case "ollama":
		// Ollama speaks the OpenAI protocol under /v1 and ignores the key.
		baseURL := strings.TrimRight(cfg.BaseURL, "/")
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL += "/v1"
		}
		if key == "" {
			key = "ollama"
		}
		return NewOpenAIClient(key, cfg.Model, cfg.EmbeddingModel, baseURL), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// NewEmbedder picks the embedding provider. "ml" uses the inference service.
func NewEmbedder(ctx context.Context, cfg config.LLMConfig, ml ports.Embedder) (ports.Embedder, error) {
	provider := strings.ToLower(cfg.EmbeddingProvider)
	if provider == "" {
		provider = strings.ToLower(cfg.Provider)
	}

	switch provider {
	case "openai":
		return NewOpenAIClient(cfg.KeyFor("openai"), cfg.Model, cfg.EmbeddingModel, cfg.BaseURL), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg.KeyFor("gemini"), cfg.Model, cfg.EmbeddingModel)
	case "ml":
		if ml == nil {
			return nil, fmt.Errorf("ml embedding provider requires ml.inferenceUrl")
		}
		return ml, nil
	case "claude", "anthropic":
		return nil, fmt.Errorf("embeddings not supported by claude, set llm.embeddingProvider")
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}

// NewBatchService returns the OpenAI batch client used by the sanitizer.
func NewBatchService(cfg config.LLMConfig) (ports.BatchService, error) {
	key := cfg.KeyFor("openai")
	if key == "" {
		return nil, fmt.Errorf("batch sanitization requires an openai api key")
	}
	baseURL := ""
	if strings.EqualFold(cfg.Provider, "openai") {
		baseURL = cfg.BaseURL
	}
	return NewOpenAIClient(key, cfg.Model, cfg.EmbeddingModel, baseURL), nil
}
