package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FlattenBody turns an email body (markup or plain text) into a single line of
// text where each link is kept next to its anchor as "text [LINK: href]".
func FlattenBody(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return strings.Join(strings.Fields(body), " ")
	}

	var parts []string
	var walk func(s *goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, node *goquery.Selection) {
			switch goquery.NodeName(node) {
			case "#text":
				if text := collapse(node.Text()); text != "" {
					parts = append(parts, text)
				}
			case "a":
				text := collapse(node.Text())
				href, ok := node.Attr("href")
				href = strings.TrimSpace(href)
				if !ok || href == "" || strings.HasPrefix(href, "mailto:") {
					if text != "" {
						parts = append(parts, text)
					}
					return
				}
				parts = append(parts, strings.TrimSpace(text+" [LINK: "+href+"]"))
			case "script", "style", "head", "#comment":
				return
			default:
				walk(node)
			}
		})
	}
	walk(doc.Selection)

	return strings.Join(parts, " ")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
