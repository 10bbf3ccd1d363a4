package usecase

import (
	"fmt"
	"sort"
	"strings"

	"NewsletterDigest/internal/domain"
)

// DefaultMaxResults caps the articles listed per criterion.
const DefaultMaxResults = 10

// DigestSection is the top articles selected for one criterion.
type DigestSection struct {
	Criterion string
	Keywords  []string
	Articles  []domain.Article
}

// SelectDigest picks up to maxResults articles per criterion, highest score
// first. An article already listed under an earlier criterion is not repeated.
func SelectDigest(articles []domain.Article, names []string, expansions map[string][]string, maxResults int) []DigestSection {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	used := make(map[string]struct{})

	var sections []DigestSection
	for _, name := range names {
		ranked := rankByCriterion(articles, name)
		section := DigestSection{Criterion: name, Keywords: expansions[name]}
		for _, a := range ranked {
			if len(section.Articles) == maxResults {
				break
			}
			if _, ok := used[a.URL]; ok {
				continue
			}
			used[a.URL] = struct{}{}
			section.Articles = append(section.Articles, a)
		}
		if len(section.Articles) > 0 {
			sections = append(sections, section)
		}
	}
	return sections
}

// rankByCriterion keeps the articles scored for name, best first.
func rankByCriterion(articles []domain.Article, name string) []domain.Article {
	var out []domain.Article
	for _, a := range articles {
		if _, ok := a.Score(name); ok {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		si, _ := out[i].Score(name)
		sj, _ := out[j].Score(name)
		return si > sj
	})
	return out
}

// RenderMarkdown formats digest sections as Telegram-compatible Markdown.
func RenderMarkdown(sections []DigestSection) string {
	var b strings.Builder
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "*%s*\n", escapeMarkdown(s.Criterion))
		if len(s.Keywords) > 0 {
			fmt.Fprintf(&b, "_Expanded keywords: %s_\n", escapeMarkdown(strings.Join(s.Keywords, ", ")))
		}
		for _, a := range s.Articles {
			fmt.Fprintf(&b, "- [%s](%s)\n", escapeMarkdown(a.Title), a.URL)
			if a.Description != "" {
				fmt.Fprintf(&b, "  %s\n", escapeMarkdown(a.Description))
			}
		}
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "[", `\[`, "`", "\\`")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
