package domain

import (
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxDescriptionLength bounds the rewritten article description.
const MaxDescriptionLength = 160

// Article is the core entity extracted from newsletter messages.
type Article struct {
	ID           int64
	Title        string
	Description  string
	URL          string
	Criteria     []Criterion
	RawContent   string
	Embedding    []float32
	SourceDomain string
	EmailUID     string
	EmailTime    time.Time
	CreatedAt    time.Time
}

// Criterion is a named topic of interest with the article's relevance to it.
type Criterion struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Text returns the string used for embeddings and keyword matching.
func (a Article) Text() string {
	return strings.TrimSpace(a.Title + " " + a.Description)
}

// Score returns the score recorded for the named criterion (case-insensitive).
func (a Article) Score(name string) (float64, bool) {
	for _, c := range a.Criteria {
		if strings.EqualFold(c.Name, name) {
			return c.Score, true
		}
	}
	return 0, false
}

// TopScore returns the highest criterion score or 0 when none are attached.
func (a Article) TopScore() float64 {
	var top float64
	for _, c := range a.Criteria {
		if c.Score > top {
			top = c.Score
		}
	}
	return top
}

// NormalizeCriteria drops duplicate names (first wins) and sorts by score descending.
func NormalizeCriteria(in []Criterion) []Criterion {
	seen := make(map[string]struct{}, len(in))
	out := make([]Criterion, 0, len(in))
	for _, c := range in {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Criterion{Name: name, Score: c.Score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// CanonicalURL strips the query string and fragment so tracking parameters
// never create distinct articles.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	parsed.RawQuery = ""
	parsed.ForceQuery = false
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return parsed.String()
}

// TruncateDescription caps s at MaxDescriptionLength runes.
func TruncateDescription(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxDescriptionLength {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:MaxDescriptionLength-3])) + "..."
}

// DomainOf extracts the domain part of an email address.
func DomainOf(address string) string {
	address = strings.TrimSpace(address)
	if i := strings.LastIndex(address, "@"); i >= 0 {
		address = address[i+1:]
	}
	return strings.ToLower(strings.Trim(address, "<> "))
}
