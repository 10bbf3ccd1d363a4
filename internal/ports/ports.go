package ports

import (
	"context"
	"io"
	"time"

	"NewsletterDigest/internal/domain"
)

// MessageSource pulls unread newsletters from upstream providers.
type MessageSource interface {
	Fetch(ctx context.Context) ([]domain.Message, error)
}

// ArticleRepository persists articles keyed by canonical URL.
type ArticleRepository interface {
	Save(ctx context.Context, article domain.Article) (domain.Article, error)
	Query(ctx context.Context, since time.Time, limit int) ([]domain.Article, error)
	UpdateRawContent(ctx context.Context, id int64, content string) error
}

// ChatClient sends single-turn prompts to LLM APIs.
type ChatClient interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// Embedder maps text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Summarizer produces a short abstract for crawled page text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// PageFetcher downloads raw page bytes.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// BatchState is the provider-side batch status snapshot.
type BatchState struct {
	ID           string
	Status       string
	OutputFileID string
}

// BatchService wraps an asynchronous bulk LLM API.
type BatchService interface {
	UploadFile(ctx context.Context, name string, data []byte) (string, error)
	CreateBatch(ctx context.Context, fileID string) (string, error)
	RetrieveBatch(ctx context.Context, batchID string) (BatchState, error)
	FileContent(ctx context.Context, fileID string) (io.ReadCloser, error)
	CancelBatch(ctx context.Context, batchID string) error
}

// Notifier streams selected digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
