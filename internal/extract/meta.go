package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// PageMeta holds OpenGraph metadata scraped from a page head. It is the
// fallback content source when the post markup cannot be read directly,
// for example on pages that render the post server-side for crawlers.
type PageMeta struct {
	Title       string
	Description string
	Image       string
}

// ParseMeta extracts OpenGraph (and twitter-card) meta tags from raw
// HTML. Parsing is tolerant: malformed markup yields whatever tags the
// parser could recover rather than an error.
func ParseMeta(htmlSrc string) (*PageMeta, error) {
	doc, err := html.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		return nil, err
	}

	meta := &PageMeta{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" {
			collectMetaTag(n, meta)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return meta, nil
}

// collectMetaTag records a single meta element into meta. First match
// wins for each field: pages often repeat og: tags and the first one
// is the canonical value.
func collectMetaTag(n *html.Node, meta *PageMeta) {
	var property, name, content string
	for _, attr := range n.Attr {
		switch attr.Key {
		case "property":
			property = attr.Val
		case "name":
			name = attr.Val
		case "content":
			content = attr.Val
		}
	}

	key := property
	if key == "" {
		key = name
	}

	switch key {
	case "og:title":
		if meta.Title == "" {
			meta.Title = content
		}
	case "og:description", "twitter:description":
		if meta.Description == "" {
			meta.Description = content
		}
	case "og:image", "twitter:image":
		if meta.Image == "" {
			meta.Image = content
		}
	}
}
