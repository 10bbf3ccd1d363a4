package sanitizer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsletterDigest/internal/ports"
)

// fakeBatch answers every uploaded request with "clean: <content>" except
// for the user contents listed in broken. Batches listed in failed report
// "failed" regardless of status.
type fakeBatch struct {
	mu        sync.Mutex
	status    string
	broken    map[string]bool
	failed    map[string]bool
	uploads   [][]byte
	batches   int
	cancelled int
	fetched   int
}

func (f *fakeBatch) UploadFile(_ context.Context, _ string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, append([]byte(nil), data...))
	return fmt.Sprintf("file-%d", len(f.uploads)-1), nil
}

func (f *fakeBatch) CreateBatch(_ context.Context, fileID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	return "batch-" + strings.TrimPrefix(fileID, "file-"), nil
}

func (f *fakeBatch) RetrieveBatch(_ context.Context, id string) (ports.BatchState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := f.status
	if f.failed[id] {
		status = "failed"
	}
	return ports.BatchState{ID: id, Status: status, OutputFileID: "out-" + strings.TrimPrefix(id, "batch-")}, nil
}

func (f *fakeBatch) FileContent(_ context.Context, fileID string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched++

	var idx int
	if _, err := fmt.Sscanf(fileID, "out-%d", &idx); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(f.uploads[idx]))
	for scanner.Scan() {
		var req requestLine
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			return nil, err
		}
		content := req.Body.Messages[1].Content
		if f.broken[content] {
			fmt.Fprintf(&out, `{"custom_id":%q,"response":{"status_code":500,"body":{}}}`+"\n", req.CustomID)
			continue
		}
		line, _ := json.Marshal(map[string]any{
			"custom_id": req.CustomID,
			"response": map[string]any{
				"status_code": 200,
				"body": map[string]any{
					"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": "clean: " + content}}},
				},
			},
		})
		out.Write(line)
		out.WriteByte('\n')
	}
	out.WriteString("not json at all\n")
	return io.NopCloser(&out), nil
}

func (f *fakeBatch) CancelBatch(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled++
	return nil
}

func (f *fakeBatch) setStatus(s string) {
	f.mu.Lock()
	f.status = s
	f.mu.Unlock()
}

func (f *fakeBatch) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

func newTestSanitizer(t *testing.T, fb *fakeBatch, cfg Config) *Sanitizer {
	t.Helper()
	cfg.WorkDir = t.TempDir()
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Millisecond
	}
	cfg.Model = "gpt-test"
	return New(fb, cfg, nil)
}

func TestSanitizeKeepsOriginalForBrokenLines(t *testing.T) {
	t.Parallel()

	fb := &fakeBatch{status: "completed", broken: map[string]bool{"c": true}}
	s := newTestSanitizer(t, fb, Config{})

	got := s.Sanitize(context.Background(), []string{"a", "b", "c", "d", "e"})

	assert.Equal(t, []string{"clean: a", "clean: b", "c", "clean: d", "clean: e"}, got)
	assert.Equal(t, 1, fb.batches)

	entries, err := os.ReadDir(s.cfg.WorkDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "request file should be removed")
}

func TestSanitizeWritesChatCompletionRequests(t *testing.T) {
	t.Parallel()

	fb := &fakeBatch{status: "completed"}
	s := newTestSanitizer(t, fb, Config{})
	s.now = func() time.Time { return time.Unix(0, 1700) }

	s.Sanitize(context.Background(), []string{"x", "y"})

	require.Len(t, fb.uploads, 1)
	lines := strings.Split(strings.TrimSpace(string(fb.uploads[0])), "\n")
	require.Len(t, lines, 2)

	var req requestLine
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &req))
	assert.Equal(t, "req-1700-1", req.CustomID)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/v1/chat/completions", req.URL)
	assert.Equal(t, "gpt-test", req.Body.Model)
	assert.Equal(t, 0.1, req.Body.Temperature)
	assert.Equal(t, "system", req.Body.Messages[0].Role)
	assert.Equal(t, "y", req.Body.Messages[1].Content)
}

func TestSanitizeChunksSequentially(t *testing.T) {
	t.Parallel()

	fb := &fakeBatch{status: "completed"}
	s := newTestSanitizer(t, fb, Config{ChunkSize: 2})

	got := s.Sanitize(context.Background(), []string{"1", "2", "3", "4", "5"})

	assert.Equal(t, 3, fb.batches)
	assert.Equal(t, []string{"clean: 1", "clean: 2", "clean: 3", "clean: 4", "clean: 5"}, got)
}

func TestSanitizeFailedChunkDoesNotStopLaterChunks(t *testing.T) {
	t.Parallel()

	fb := &fakeBatch{status: "completed", failed: map[string]bool{"batch-0": true}}
	s := newTestSanitizer(t, fb, Config{ChunkSize: 2})

	got := s.Sanitize(context.Background(), []string{"1", "2", "3", "4", "5"})

	assert.Equal(t, []string{"1", "2", "clean: 3", "clean: 4", "clean: 5"}, got)
	assert.Equal(t, 3, fb.batches)
	assert.Equal(t, 2, fb.fetched)
}

func TestSanitizeFailedBatchReturnsOriginals(t *testing.T) {
	t.Parallel()

	for _, status := range []string{"failed", "expired", "cancelled"} {
		t.Run(status, func(t *testing.T) {
			fb := &fakeBatch{status: status}
			got := newTestSanitizer(t, fb, Config{}).Sanitize(context.Background(), []string{"a", "b"})

			assert.Equal(t, []string{"a", "b"}, got)
			assert.Zero(t, fb.fetched)
		})
	}
}

func TestSanitizeTimeoutReturnsOriginals(t *testing.T) {
	t.Parallel()

	fb := &fakeBatch{status: "in_progress"}
	s := newTestSanitizer(t, fb, Config{Timeout: 30 * time.Millisecond})

	start := time.Now()
	got := s.Sanitize(context.Background(), []string{"a", "b", "c"})

	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, fb.cancelCount())
	assert.Zero(t, fb.fetched)
}

func TestTaskCancelStopsPolling(t *testing.T) {
	t.Parallel()

	fb := &fakeBatch{status: "validating"}
	s := newTestSanitizer(t, fb, Config{PollInterval: 10 * time.Millisecond})

	task := s.Start(context.Background(), []string{"a"})
	time.Sleep(30 * time.Millisecond)
	task.Cancel()

	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("task did not stop after cancel")
	}
	assert.Equal(t, []string{"a"}, task.Wait())
	assert.Equal(t, 1, fb.cancelCount())
}

func TestTaskReturnsResult(t *testing.T) {
	t.Parallel()

	fb := &fakeBatch{status: "in_progress"}
	s := newTestSanitizer(t, fb, Config{})
	task := s.Start(context.Background(), []string{"a"})

	time.Sleep(20 * time.Millisecond)
	fb.setStatus("completed")

	assert.Equal(t, []string{"clean: a"}, task.Wait())
}

type failingUpload struct{ fakeBatch }

func (f *failingUpload) UploadFile(context.Context, string, []byte) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestSanitizeUploadFailureReturnsOriginals(t *testing.T) {
	t.Parallel()

	fb := &failingUpload{}
	s := New(fb, Config{WorkDir: t.TempDir()}, nil)

	assert.Equal(t, []string{"a"}, s.Sanitize(context.Background(), []string{"a"}))
	entries, err := os.ReadDir(s.cfg.WorkDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJobLookupIsBoundsChecked(t *testing.T) {
	t.Parallel()

	job := newJob(42)
	id := job.customID(3)
	assert.Equal(t, "req-42-3", id)

	i, ok := job.lookup(id, 5)
	assert.True(t, ok)
	assert.Equal(t, 3, i)

	_, ok = job.lookup(id, 3)
	assert.False(t, ok)
	_, ok = job.lookup("req-41-3", 5)
	assert.False(t, ok)
}
