package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsletterDigest/internal/config"
	"NewsletterDigest/internal/domain"
)

func TestNewChatClientSelectsProvider(t *testing.T) {
	t.Parallel()

	c, err := NewChatClient(context.Background(), config.LLMConfig{Provider: "openai", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = NewChatClient(context.Background(), config.LLMConfig{Provider: "Claude", Model: "claude-3-5-haiku-latest"})
	require.NoError(t, err)
	assert.IsType(t, &ClaudeClient{}, c)

	_, err = NewChatClient(context.Background(), config.LLMConfig{Provider: "eliza"})
	assert.Error(t, err)
}

func TestNewEmbedderRejectsClaude(t *testing.T) {
	t.Parallel()

	_, err := NewEmbedder(context.Background(), config.LLMConfig{Provider: "claude"}, nil)
	assert.Error(t, err)

	_, err = NewEmbedder(context.Background(), config.LLMConfig{EmbeddingProvider: "ml"}, nil)
	assert.Error(t, err)
}

func TestNewBatchServiceNeedsOpenAIKey(t *testing.T) {
	t.Parallel()

	_, err := NewBatchService(config.LLMConfig{Provider: "gemini"})
	assert.Error(t, err)

	svc, err := NewBatchService(config.LLMConfig{Provider: "gemini", OpenAIAPIKey: "sk"})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestOpenAICompleteRequestsJSONObject(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"articles\":[]}"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk", "gpt-test", "", srv.URL+"/v1")
	out, err := c.Complete(context.Background(), domain.CompletionRequest{
		System:      "sys",
		Prompt:      "hello",
		Temperature: 0.1,
		JSON:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"articles":[]}`, out)

	assert.Equal(t, "gpt-test", got["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
	messages, ok := got["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestOpenAIRetrieveBatchMapsOutputFile(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/batches/batch_1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"batch_1","object":"batch","status":"completed","output_file_id":"file_out"}`))
	}))
	defer srv.Close()

	state, err := NewOpenAIClient("sk", "m", "", srv.URL+"/v1").RetrieveBatch(context.Background(), "batch_1")
	require.NoError(t, err)
	assert.Equal(t, "completed", state.Status)
	assert.Equal(t, "file_out", state.OutputFileID)
}
