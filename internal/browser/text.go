// File: internal/browser/text.go
package browser

import (
	"strings"

	"golang.org/x/net/html"
)

// skippedElements are subtrees that never contribute visible page text.
var skippedElements = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
	"head":     {},
	"iframe":   {},
	"svg":      {},
}

// visibleText extracts the human-readable text of an HTML document. Script and
// style subtrees are skipped, runs of whitespace collapse to single spaces and
// the result is truncated to limit runes (limit <= 0 means unlimited).
func visibleText(rawHTML string, limit int) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		// html.Parse recovers from malformed markup; a hard failure means the
		// input is not HTML at all, so fall back to the collapsed raw text.
		return truncateRunes(collapseWhitespace(rawHTML), limit)
	}

	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, skip := skippedElements[strings.ToLower(n.Data)]; skip {
				return
			}
		}
		if n.Type == html.TextNode {
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				parts = append(parts, trimmed)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return truncateRunes(collapseWhitespace(strings.Join(parts, " ")), limit)
}

// collapseWhitespace folds every whitespace run, including newlines, into a
// single space.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes cuts s to at most limit runes without splitting a multi-byte
// character.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
