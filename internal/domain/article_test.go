package domain

import (
	"strings"
	"testing"
)

func TestCanonicalURL(t *testing.T) {
	t.Parallel()

	a := CanonicalURL("https://x.com/a?utm=1")
	b := CanonicalURL("https://x.com/a?utm=2")
	if a != "https://x.com/a" {
		t.Fatalf("unexpected canonical url: %s", a)
	}
	if a != b {
		t.Fatalf("expected equal canonical urls, got %s and %s", a, b)
	}
	if got := CanonicalURL("https://x.com/a#section"); got != "https://x.com/a" {
		t.Fatalf("fragment not stripped: %s", got)
	}
	if got := CanonicalURL(""); got != "" {
		t.Fatalf("expected empty, got %s", got)
	}
}

func TestNormalizeCriteria(t *testing.T) {
	t.Parallel()

	got := NormalizeCriteria([]Criterion{
		{Name: "Go", Score: 0.4},
		{Name: "react", Score: 0.9},
		{Name: "go", Score: 0.99},
		{Name: " ", Score: 1},
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 criteria, got %d", len(got))
	}
	if got[0].Name != "react" || got[1].Name != "Go" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[1].Score != 0.4 {
		t.Fatalf("first-seen duplicate should win, got %v", got[1].Score)
	}
}

func TestTruncateDescription(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", 200)
	got := TruncateDescription(long)
	if n := len([]rune(got)); n != MaxDescriptionLength {
		t.Fatalf("expected %d runes, got %d", MaxDescriptionLength, n)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis suffix: %s", got)
	}
	if TruncateDescription("short") != "short" {
		t.Fatal("short description must be untouched")
	}
}

func TestArticleScoreLookup(t *testing.T) {
	t.Parallel()

	a := Article{Criteria: []Criterion{{Name: "React", Score: 0.8}, {Name: "Go", Score: 0.6}}}
	if s, ok := a.Score("react"); !ok || s != 0.8 {
		t.Fatalf("unexpected score lookup: %v %v", s, ok)
	}
	if a.TopScore() != 0.8 {
		t.Fatalf("unexpected top score: %v", a.TopScore())
	}
	if DomainOf("News <digest@Example.COM>") != "example.com" {
		t.Fatalf("unexpected domain: %s", DomainOf("News <digest@Example.COM>"))
	}
}
