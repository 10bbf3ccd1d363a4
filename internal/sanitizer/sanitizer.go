package sanitizer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"NewsletterDigest/internal/ports"
)

const (
	DefaultChunkSize    = 50
	DefaultPollInterval = 60 * time.Second
	DefaultTimeout      = 24 * time.Hour

	cancelTimeout = 10 * time.Second
	maxLineBytes  = 16 << 20
)

// SystemPrompt instructs the model how to clean crawled article text.
const SystemPrompt = "You are a content cleaner. Clean and format the following markdown article. " +
	"Remove any of the following:\n" +
	"- Irrelevant links (e.g. unrelated URLs, 'read more', 'source' mentions)\n" +
	"- HTML tags, code artifacts, or leftover formatting symbols\n" +
	"- Unrelated or broken data from crawling\n" +
	"- Repeated or redundant phrases\n" +
	"Preserve the original content structure and meaning. Output clean, readable paragraphs."

// Config controls chunking and polling.
type Config struct {
	Model        string
	ChunkSize    int
	PollInterval time.Duration
	Timeout      time.Duration
	WorkDir      string
}

// Sanitizer rewrites raw article content through an asynchronous batch API.
type Sanitizer struct {
	batch  ports.BatchService
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New builds a sanitizer; zero config fields select the defaults.
func New(batch ports.BatchService, cfg Config, logger *slog.Logger) *Sanitizer {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sanitizer{batch: batch, cfg: cfg, logger: logger, now: time.Now}
}

// Sanitize returns one entry per input. Entries the batch could not clean
// are returned unchanged.
func (s *Sanitizer) Sanitize(ctx context.Context, contents []string) []string {
	out := make([]string, len(contents))
	copy(out, contents)

	for start := 0; start < len(contents); start += s.cfg.ChunkSize {
		if ctx.Err() != nil {
			break
		}
		end := min(start+s.cfg.ChunkSize, len(contents))
		chunk := s.runChunk(ctx, contents[start:end])
		copy(out[start:end], chunk)
	}
	return out
}

func (s *Sanitizer) runChunk(ctx context.Context, contents []string) []string {
	out := make([]string, len(contents))
	copy(out, contents)

	job := newJob(s.now().UnixNano())
	log := s.logger.With("chunk_size", len(contents))

	data, err := job.encode(s.cfg.Model, SystemPrompt, contents)
	if err != nil {
		log.Error("build batch request", "error", err)
		return out
	}

	path := filepath.Join(s.cfg.WorkDir, "batch-"+uuid.NewString()+".jsonl")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		log.Error("write batch request file", "path", path, "error", err)
		return out
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn("remove batch request file", "path", path, "error", err)
		}
	}()

	payload, err := os.ReadFile(path)
	if err != nil {
		log.Error("read batch request file", "path", path, "error", err)
		return out
	}
	job.FileID, err = s.batch.UploadFile(ctx, filepath.Base(path), payload)
	if err != nil {
		log.Error("upload batch file", "error", err)
		return out
	}
	job.Status = StatusFileUploaded

	job.BatchID, err = s.batch.CreateBatch(ctx, job.FileID)
	if err != nil {
		log.Error("create batch", "file_id", job.FileID, "error", err)
		return out
	}
	job.Status = StatusJobSubmitted
	log = log.With("batch_id", job.BatchID)
	log.Info("batch submitted")

	state := s.poll(ctx, job, log)
	if job.Status != StatusCompleted {
		log.Warn("batch did not complete, keeping original content", "status", job.Status)
		return out
	}

	applied, err := s.reconcile(ctx, job, state.OutputFileID, out)
	if err != nil {
		log.Error("read batch output", "applied", applied, "error", err)
		return out
	}
	log.Info("batch reconciled", "sanitized", applied, "fallback", len(contents)-applied)
	return out
}

// poll waits for a terminal batch status, the timeout, or ctx cancellation.
func (s *Sanitizer) poll(ctx context.Context, job *Job, log *slog.Logger) ports.BatchState {
	job.Status = StatusPolling

	deadline := time.NewTimer(s.cfg.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		state, err := s.batch.RetrieveBatch(ctx, job.BatchID)
		if err != nil {
			log.Warn("retrieve batch", "error", err)
		} else {
			switch state.Status {
			case "completed":
				job.Status = StatusCompleted
				return state
			case "failed", "expired", "cancelled":
				job.Status = StatusFailed
				return state
			default:
				log.Debug("batch in progress", "status", state.Status)
			}
		}

		select {
		case <-ctx.Done():
			job.Status = StatusCancelled
			s.cancel(job, log)
			return ports.BatchState{}
		case <-deadline.C:
			job.Status = StatusTimedOut
			s.cancel(job, log)
			return ports.BatchState{}
		case <-ticker.C:
		}
	}
}

// cancel is best effort and runs on a fresh context since ctx may be done.
func (s *Sanitizer) cancel(job *Job, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	if err := s.batch.CancelBatch(ctx, job.BatchID); err != nil {
		log.Warn("cancel batch", "error", err)
	}
}

// reconcile writes accepted output lines into out and returns how many were applied.
func (s *Sanitizer) reconcile(ctx context.Context, job *Job, fileID string, out []string) (int, error) {
	if fileID == "" {
		return 0, fmt.Errorf("batch has no output file")
	}
	rc, err := s.batch.FileContent(ctx, fileID)
	if err != nil {
		return 0, fmt.Errorf("download output: %w", err)
	}
	defer rc.Close()

	applied := 0
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var parsed outputLine
		if err := json.Unmarshal(line, &parsed); err != nil {
			s.logger.Debug("skip malformed output line", "error", err)
			continue
		}
		text, ok := parsed.content()
		if !ok {
			continue
		}
		i, ok := job.lookup(parsed.CustomID, len(out))
		if !ok {
			s.logger.Debug("skip unknown custom id", "custom_id", parsed.CustomID)
			continue
		}
		out[i] = text
		applied++
	}
	if err := scanner.Err(); err != nil {
		return applied, fmt.Errorf("scan output: %w", err)
	}
	return applied, nil
}
