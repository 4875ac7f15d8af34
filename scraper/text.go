package scraper

import (
	"strings"

	"golang.org/x/net/html"
)

var blockLevelTags = map[string]struct{}{
	"address": {}, "article": {}, "aside": {}, "blockquote": {}, "dd": {}, "details": {},
	"div": {}, "dl": {}, "dt": {}, "fieldset": {}, "figcaption": {}, "figure": {},
	"form": {}, "h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {}, "hr": {},
	"li": {}, "main": {}, "ol": {}, "p": {}, "pre": {}, "section": {}, "summary": {},
	"table": {}, "tr": {}, "ul": {},
}

type textAccumulator struct {
	builder          strings.Builder
	lastRune         rune
	hasLast          bool
	trailingNewlines int
}

func (t *textAccumulator) String() string {
	return t.builder.String()
}

func (t *textAccumulator) append(value string) {
	if value == "" {
		return
	}
	t.builder.WriteString(value)
	for _, r := range value {
		t.lastRune = r
		t.hasLast = true
		if r == '\n' {
			t.trailingNewlines++
		} else {
			t.trailingNewlines = 0
		}
	}
}

func (t *textAccumulator) ensureSpace() {
	if !t.hasLast || t.trailingNewlines > 0 || t.lastRune == ' ' {
		return
	}
	t.append(" ")
}

func (t *textAccumulator) ensureNewline() {
	if !t.hasLast || t.trailingNewlines >= 1 {
		return
	}
	t.append("\n")
}

// ensureBlankLine separates paragraphs. Nothing is emitted before the first text.
func (t *textAccumulator) ensureBlankLine() {
	if !t.hasLast {
		return
	}
	for t.trailingNewlines < 2 {
		t.append("\n")
	}
}

// accumulateVisibleText walks node in document order. Whitespace inside text
// nodes is collapsed, block elements become paragraph breaks and <br> becomes
// a line break. Elements listed in skip are not visited.
func accumulateVisibleText(node *html.Node, skip map[string]struct{}, acc *textAccumulator) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		raw := node.Data
		text := strings.Join(strings.Fields(raw), " ")
		if text == "" {
			if raw != "" {
				acc.ensureSpace()
			}
			return
		}
		if startsWithSpace(raw) {
			acc.ensureSpace()
		}
		acc.append(text)
		if endsWithSpace(raw) {
			acc.ensureSpace()
		}
	case html.ElementNode:
		tag := strings.ToLower(node.Data)
		if _, ok := skip[tag]; ok {
			return
		}
		if tag == "br" {
			acc.ensureNewline()
			return
		}
		_, block := blockLevelTags[tag]
		if block {
			acc.ensureBlankLine()
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			accumulateVisibleText(child, skip, acc)
		}
		switch {
		case tag == "td" || tag == "th":
			acc.ensureSpace()
		case block:
			acc.ensureBlankLine()
		}
	default:
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			accumulateVisibleText(child, skip, acc)
		}
	}
}

func startsWithSpace(s string) bool {
	return s != "" && strings.ContainsRune(" \t\n\r\f", rune(s[0]))
}

func endsWithSpace(s string) bool {
	return s != "" && strings.ContainsRune(" \t\n\r\f", rune(s[len(s)-1]))
}

// tidyText trims trailing blanks on every line and collapses runs of blank
// lines into a single paragraph break.
func tidyText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
			out = append(out, "")
			continue
		}
		blank = 0
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
