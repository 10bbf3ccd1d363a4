package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"NewsletterDigest/internal/domain"
)

// ErrMalformedResponse marks LLM output that is not the expected JSON shape.
var ErrMalformedResponse = errors.New("malformed llm response")

// Candidate is one article as returned by the model, before validation.
type Candidate struct {
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	URL            string        `json:"url"`
	Summary        string        `json:"summary"`
	NeedEnrichment bool          `json:"need_enrichment"`
	Criteria       criteriaField `json:"criteria"`
}

// Valid reports whether the required fields are present.
func (c Candidate) Valid() bool {
	return strings.TrimSpace(c.Title) != "" &&
		strings.TrimSpace(c.Description) != "" &&
		strings.TrimSpace(c.URL) != ""
}

// Result is the outcome of decoding one response: either Articles or Err.
type Result struct {
	Articles []Candidate
	Skipped  int
	Err      error
}

// OK reports whether decoding succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Decode parses a model response. It accepts a bare JSON array or an object
// with an "articles" key, tolerating surrounding prose or code fences.
// Items that fail to decode or miss required fields are skipped.
func Decode(response string) Result {
	payloads := locateJSON(response)
	if len(payloads) == 0 {
		return Result{Err: fmt.Errorf("%w: no json value found", ErrMalformedResponse)}
	}

	var (
		items []json.RawMessage
		err   error
	)
	for _, payload := range payloads {
		items, err = decodeItems(payload)
		var syntaxErr *json.SyntaxError
		if err == nil || !errors.As(err, &syntaxErr) {
			break
		}
	}
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %w", ErrMalformedResponse, err)}
	}

	res := Result{Articles: make([]Candidate, 0, len(items))}
	for _, raw := range items {
		var c Candidate
		if err := json.Unmarshal(raw, &c); err != nil || !c.Valid() {
			res.Skipped++
			continue
		}
		res.Articles = append(res.Articles, c)
	}
	return res
}

var errMissingArticles = errors.New("missing articles key")

func decodeItems(payload string) ([]json.RawMessage, error) {
	if payload[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(payload), &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var envelope struct {
		Articles *[]json.RawMessage `json:"articles"`
	}
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return nil, err
	}
	if envelope.Articles == nil {
		return nil, errMissingArticles
	}
	return *envelope.Articles, nil
}

// locateJSON returns the span from the first opener to its last matching
// closer, followed by the span for the other opener kind when one exists.
// Decode moves on to the second span only when the first is not valid JSON,
// as with prose like "Here are [2] articles: {...}".
func locateJSON(s string) []string {
	var out []string
	first := strings.IndexAny(s, "[{")
	if first < 0 {
		return nil
	}
	if span, ok := spanFrom(s, first); ok {
		out = append(out, span)
	}

	other := byte('{')
	if s[first] == '{' {
		other = '['
	}
	if next := strings.IndexByte(s[first+1:], other); next >= 0 {
		if span, ok := spanFrom(s, first+1+next); ok {
			out = append(out, span)
		}
	}
	return out
}

func spanFrom(s string, start int) (string, bool) {
	closer := byte(']')
	if s[start] == '{' {
		closer = '}'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// criteriaField accepts either [{"name":..,"score":..}] or {"name": score}.
type criteriaField []domain.Criterion

func (f *criteriaField) UnmarshalJSON(data []byte) error {
	var list []domain.Criterion
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}

	var byName map[string]float64
	if err := json.Unmarshal(data, &byName); err != nil {
		return fmt.Errorf("decode criteria: %w", err)
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]domain.Criterion, 0, len(names))
	for _, name := range names {
		out = append(out, domain.Criterion{Name: name, Score: byName[name]})
	}
	*f = out
	return nil
}
