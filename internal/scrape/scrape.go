// Package scrape extracts item links from a listing page. It is a pure
// transform: the queue core hands it a fetched document and receives
// subjects back, never errors on malformed markup, and keeps no state.
package scrape

import (
	"io"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Subject is one discovered item: its canonical URL plus whatever descriptive
// fields the listing exposed. Missing fields degrade to empty strings.
type Subject struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Parser extracts subjects from listing documents. A nil item pattern accepts
// every same-host link.
type Parser struct {
	itemPattern *regexp.Regexp
}

func NewParser(itemPattern *regexp.Regexp) *Parser {
	return &Parser{itemPattern: itemPattern}
}

// Parse walks the document and returns one subject per distinct matching
// anchor, in document order. Relative hrefs resolve against base; anchors
// pointing off-host, at fragments, or at non-matching paths are skipped.
// Malformed input yields fewer subjects, never an error.
func (p *Parser) Parse(r io.Reader, base *url.URL) []Subject {
	doc, err := html.Parse(r) // tolerant: always returns a tree
	if err != nil {
		return nil
	}

	var subjects []Subject
	found := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if s, ok := p.subjectFromAnchor(n, base); ok && !found[s.URL] {
				found[s.URL] = true
				subjects = append(subjects, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return subjects
}

func (p *Parser) subjectFromAnchor(n *html.Node, base *url.URL) (Subject, bool) {
	var href string
	for _, a := range n.Attr {
		if a.Key == "href" {
			href = strings.TrimSpace(a.Val)
			break
		}
	}
	if href == "" || strings.HasPrefix(href, "#") {
		return Subject{}, false
	}
	u, err := base.Parse(href)
	if err != nil || u.Host != base.Host {
		return Subject{}, false
	}
	u.Fragment = ""
	canonical := u.String()
	if p.itemPattern != nil && !p.itemPattern.MatchString(canonical) {
		return Subject{}, false
	}
	return Subject{URL: canonical, Title: anchorText(n)}, true
}

func anchorText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
