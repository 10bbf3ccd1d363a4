package sanitizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Status is the lifecycle state of one batch job.
type Status string

const (
	StatusCreated      Status = "created"
	StatusFileUploaded Status = "file_uploaded"
	StatusJobSubmitted Status = "job_submitted"
	StatusPolling      Status = "polling"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusTimedOut     Status = "timed_out"
	StatusCancelled    Status = "cancelled"
)

const chatCompletionsURL = "/v1/chat/completions"

// Job tracks one chunk submitted to the batch API.
type Job struct {
	Status  Status
	FileID  string
	BatchID string

	prefix string
	index  map[string]int
}

func newJob(nanos int64) *Job {
	return &Job{
		Status: StatusCreated,
		prefix: fmt.Sprintf("req-%d-", nanos),
		index:  map[string]int{},
	}
}

func (j *Job) customID(i int) string {
	id := j.prefix + strconv.Itoa(i)
	j.index[id] = i
	return id
}

// lookup resolves a custom_id back to its position, bounds-checked against n.
func (j *Job) lookup(customID string, n int) (int, bool) {
	i, ok := j.index[customID]
	if !ok {
		return 0, false
	}
	parsed, err := strconv.Atoi(strings.TrimPrefix(customID, j.prefix))
	if err != nil || parsed != i || i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type requestBody struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type requestLine struct {
	CustomID string      `json:"custom_id"`
	Method   string      `json:"method"`
	URL      string      `json:"url"`
	Body     requestBody `json:"body"`
}

type outputLine struct {
	CustomID string `json:"custom_id"`
	Response *struct {
		StatusCode int `json:"status_code"`
		Body       struct {
			Choices []struct {
				Message message `json:"message"`
			} `json:"choices"`
		} `json:"body"`
	} `json:"response"`
}

// content returns the first choice text of a successful response line.
func (o outputLine) content() (string, bool) {
	if o.CustomID == "" || o.Response == nil || o.Response.StatusCode != 200 {
		return "", false
	}
	if len(o.Response.Body.Choices) == 0 {
		return "", false
	}
	text := strings.TrimSpace(o.Response.Body.Choices[0].Message.Content)
	return text, text != ""
}

func (j *Job) encode(model, system string, contents []string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, content := range contents {
		line := requestLine{
			CustomID: j.customID(i),
			Method:   "POST",
			URL:      chatCompletionsURL,
			Body: requestBody{
				Model: model,
				Messages: []message{
					{Role: "system", Content: system},
					{Role: "user", Content: content},
				},
				Temperature: 0.1,
			},
		}
		if err := enc.Encode(line); err != nil {
			return nil, fmt.Errorf("encode request %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
