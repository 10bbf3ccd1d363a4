package extractor

import (
	"fmt"
	"strings"
)

const systemPrompt = "You extract articles from newsletters and answer with JSON only."

const extractTemplate = `Analyze the following email content and extract information about the articles it mentions.
For each article:
1. Extract the original title, description (if available) and URL (look for [LINK: url] in the text or <title>, <link>, <description> in the content).
2. Rewrite the title and description in a friendlier, lighter tone with a touch of personal feel.
3. Keep the rewritten description under %d characters and to the point.
4. Score the article against each of these criteria: %s.
   a. Scores range from 0 to 1 with up to 2 decimal places; scores below %.2f mean "not relevant" and may be omitted.
   b. Save 0.9 and above for the most relevant articles: news, research papers, or a significant and unique contribution to the field.
5. Put any summary the email itself gives for the article in "summary". When the email offers nothing beyond a title and a link, set "need_enrichment" to true.

Exclude:
- GitHub releases or project updates
- sponsorships or donation requests
- advertisements, job posts, and newsletter housekeeping (subscribe, unsubscribe, share, view in browser)

Email subject: %s

Email content:
%s

Respond with a JSON object {"articles": [...]} where each item has the keys
"title", "description", "url", "summary", "need_enrichment" and "criteria" (a list of {"name", "score"}).
If no URL is found for an article, use an empty string for "url".

Example of the tone:
Original: "Implementing Machine Learning Models: A Comprehensive Guide"
Rewritten: "Dive into ML: Your Friendly Guide to Bringing Models to Life!"`

const enrichTemplate = `The following articles were crawled from their pages. For each one, write a friendly title and a
description under %d characters based on the summary, and score it against these criteria: %s
(0 to 1, up to 2 decimal places; scores below %.2f may be omitted).

Articles:
%s
Respond with a JSON object {"articles": [...]} where each item has the keys "title", "description", "url"
and "criteria" (a list of {"name", "score"}). Keep every URL exactly as given.`

// EnrichedItem is a crawled article waiting for the second extraction pass.
type EnrichedItem struct {
	Title   string
	URL     string
	Summary string
}

func buildExtractPrompt(subject, content string, criteria []string, minScore float64, maxDesc int) string {
	return fmt.Sprintf(extractTemplate, maxDesc, criteriaList(criteria), minScore, subject, content)
}

func buildEnrichPrompt(items []EnrichedItem, criteria []string, minScore float64, maxDesc int) string {
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "Title: %s\nURL: %s\nSummary: %s\n\n", item.Title, item.URL, item.Summary)
	}
	return fmt.Sprintf(enrichTemplate, maxDesc, criteriaList(criteria), minScore, b.String())
}

func criteriaList(criteria []string) string {
	if len(criteria) == 0 {
		return "(none)"
	}
	return strings.Join(criteria, ", ")
}
