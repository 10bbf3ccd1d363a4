package llm

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"

	"NewsletterDigest/internal/domain"
	"NewsletterDigest/internal/ports"
)

const batchCompletionWindow = "24h"

// OpenAIClient implements chat, embeddings and the batch API backed by
// OpenAI-compatible endpoints.
type OpenAIClient struct {
	client         *openai.Client
	model          string
	embeddingModel string
}

var (
	_ ports.ChatClient   = (*OpenAIClient)(nil)
	_ ports.Embedder     = (*OpenAIClient)(nil)
	_ ports.BatchService = (*OpenAIClient)(nil)
)

// NewOpenAIClient builds a client; baseURL overrides the public endpoint.
func NewOpenAIClient(apiKey, model, embeddingModel, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if embeddingModel == "" {
		embeddingModel = string(openai.SmallEmbedding3)
	}
	return &OpenAIClient{
		client:         openai.NewClientWithConfig(cfg),
		model:          model,
		embeddingModel: embeddingModel,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("openai client is nil")
	}

	var messages []openai.ChatCompletionMessage
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion: no response choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings: no embedding data")
	}
	return resp.Data[0].Embedding, nil
}

func (c *OpenAIClient) UploadFile(ctx context.Context, name string, data []byte) (string, error) {
	file, err := c.client.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    name,
		Bytes:   data,
		Purpose: openai.PurposeBatch,
	})
	if err != nil {
		return "", fmt.Errorf("upload batch file: %w", err)
	}
	return file.ID, nil
}

func (c *OpenAIClient) CreateBatch(ctx context.Context, fileID string) (string, error) {
	batch, err := c.client.CreateBatch(ctx, openai.CreateBatchRequest{
		InputFileID:      fileID,
		Endpoint:         openai.BatchEndpointChatCompletions,
		CompletionWindow: batchCompletionWindow,
	})
	if err != nil {
		return "", fmt.Errorf("create batch: %w", err)
	}
	return batch.ID, nil
}

func (c *OpenAIClient) RetrieveBatch(ctx context.Context, batchID string) (ports.BatchState, error) {
	batch, err := c.client.RetrieveBatch(ctx, batchID)
	if err != nil {
		return ports.BatchState{}, fmt.Errorf("retrieve batch: %w", err)
	}
	state := ports.BatchState{ID: batch.ID, Status: batch.Status}
	if batch.OutputFileID != nil {
		state.OutputFileID = *batch.OutputFileID
	}
	return state, nil
}

func (c *OpenAIClient) FileContent(ctx context.Context, fileID string) (io.ReadCloser, error) {
	raw, err := c.client.GetFileContent(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", fileID, err)
	}
	return raw, nil
}

func (c *OpenAIClient) CancelBatch(ctx context.Context, batchID string) error {
	if _, err := c.client.CancelBatch(ctx, batchID); err != nil {
		return fmt.Errorf("cancel batch: %w", err)
	}
	return nil
}
