package domain

import "time"

// Message is a newsletter email (or feed entry) consumed by the extractor.
type Message struct {
	UID     string
	Subject string
	DateStr string
	Date    time.Time
	Text    string
	HTML    string
	From    string
	Source  string
}

// Body prefers the markup part because it keeps link targets.
func (m Message) Body() string {
	if m.HTML != "" {
		return m.HTML
	}
	return m.Text
}

// CompletionRequest is a single LLM call.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float32
	JSON        bool
	MaxTokens   int
}
