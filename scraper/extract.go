package scraper

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultExcerptChars is the excerpt limit used when a request leaves it unset.
const DefaultExcerptChars = 800

const ellipsis = "…"

var (
	titleSelectors = []string{"main h1", "article h1", ".unit-title", "header h1", "h1"}
	excerptRoots   = []string{"main", "article", "body"}
	excerptSkipped = []string{"nav", "header", "footer", "script", "style", "noscript", "template"}
)

// Document is the read-only view of a parsed page the pipeline needs.
type Document interface {
	// FirstText returns the trimmed text of the first element matching selector.
	FirstText(selector string) string
	// Attr returns an attribute of the first element matching selector.
	Attr(selector, name string) (string, bool)
	// VisibleText renders the first non-empty root as plain text, leaving out
	// the subtrees of the skipped elements.
	VisibleText(roots, skip []string) string
}

// Parser turns a raw page body into a Document.
type Parser interface {
	Parse(body []byte) (Document, error)
}

// GoqueryParser is the default Parser.
type GoqueryParser struct{}

func (GoqueryParser) Parse(body []byte) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &goqueryDocument{doc: doc}, nil
}

type goqueryDocument struct {
	doc *goquery.Document
}

func (d *goqueryDocument) FirstText(selector string) string {
	return strings.TrimSpace(d.doc.Find(selector).First().Text())
}

func (d *goqueryDocument) Attr(selector, name string) (string, bool) {
	return d.doc.Find(selector).First().Attr(name)
}

func (d *goqueryDocument) VisibleText(roots, skip []string) string {
	skipSet := make(map[string]struct{}, len(skip))
	for _, tag := range skip {
		skipSet[tag] = struct{}{}
	}
	for _, sel := range roots {
		root := d.doc.Find(sel).First()
		if root.Length() == 0 {
			continue
		}
		if inner, err := root.Html(); err != nil || strings.TrimSpace(inner) == "" {
			continue
		}
		acc := &textAccumulator{}
		for _, node := range root.Nodes {
			accumulateVisibleText(node, skipSet, acc)
		}
		return tidyText(acc.String())
	}
	return ""
}

// ExtractTitle probes the usual heading locations, then the og:title meta tag,
// and finally falls back to the slug with hyphens turned into spaces.
func ExtractTitle(doc Document, slug string) string {
	for _, sel := range titleSelectors {
		if t := doc.FirstText(sel); t != "" {
			return t
		}
	}
	if og, ok := doc.Attr(`meta[property="og:title"]`, "content"); ok {
		if og = strings.TrimSpace(og); og != "" {
			return og
		}
	}
	return strings.ReplaceAll(slug, "-", " ")
}

// ExtractExcerpt returns the page's readable text cut to limit runes.
func ExtractExcerpt(doc Document, limit int) string {
	if limit <= 0 {
		limit = DefaultExcerptChars
	}
	return Truncate(doc.VisibleText(excerptRoots, excerptSkipped), limit)
}

// Truncate cuts s to at most limit runes and appends an ellipsis when
// anything was removed.
func Truncate(s string, limit int) string {
	if limit < 0 {
		limit = 0
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + ellipsis
}
