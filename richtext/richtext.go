// Package richtext normalizes the rich-text encodings emitted by the quote
// editor (Quill Delta JSON, Quill-flavored HTML with ql-indent classes, or
// plain HTML) into one canonical HTML form with properly nested lists, and
// parses that canonical form into the block sequence consumed by subdocument
// construction.
package richtext

import (
	"html"
	"regexp"
	"strings"
)

// BlockKind discriminates canonical rich-text blocks.
type BlockKind string

const (
	KindParagraph BlockKind = "paragraph"
	KindBullet    BlockKind = "bullet"
	KindOrdered   BlockKind = "ordered"
)

// Block is one normalized unit of rich content. Indent is zero-based and
// only meaningful for list kinds.
type Block struct {
	Kind   BlockKind
	Indent int
	Text   string
}

// Normalize converts any supported rich-text encoding into canonical HTML.
// Empty input yields an empty result. Malformed Delta JSON degrades to a
// single escaped paragraph, never an error.
func Normalize(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	if LooksLikeDelta(value) {
		out, err := DeltaToHTML(value)
		if err != nil {
			return "<p>" + html.EscapeString(stripTags(value)) + "</p>"
		}
		return out
	}
	if strings.Contains(value, "ql-indent-") {
		return normalizeQuillHTML(value)
	}
	return value
}

var tagRe = regexp.MustCompile(`<(/?)([a-zA-Z0-9]+)(\s[^>]*)?>`)

// stripTags removes wrapping tags but keeps inner text. Light cleanup for
// fallback paths only; the sanitizer owns real markup stripping.
func stripTags(s string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(s, ""))
}

// listItem is a flat, indent-annotated list entry prior to nesting.
type listItem struct {
	kind   string // "ul" or "ol"
	indent int
	inner  string // escaped inline HTML
}

// nestItems rebuilds a flat item sequence into properly nested list markup.
// Levels never skip on the way down: a deeper item without a parent at the
// shallower level gets an empty stub parent item. A kind change at an
// already-open level force-closes that list.
func nestItems(items []listItem) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	var stack []string // open list tags, index == level
	var liOpen []bool  // whether an <li> is open at each level

	closeOne := func() {
		if liOpen[len(liOpen)-1] {
			b.WriteString("</li>")
		}
		b.WriteString("</" + stack[len(stack)-1] + ">")
		stack = stack[:len(stack)-1]
		liOpen = liOpen[:len(liOpen)-1]
	}

	for _, it := range items {
		level := it.indent
		if level < 0 {
			level = 0
		}
		for len(stack) > level+1 {
			closeOne()
		}
		if len(stack) == level+1 && stack[level] != it.kind {
			closeOne()
		}
		for len(stack) < level+1 {
			if len(stack) > 0 && !liOpen[len(liOpen)-1] {
				// Stub parent item for a skipped level.
				b.WriteString("<li>")
				liOpen[len(liOpen)-1] = true
			}
			b.WriteString("<" + it.kind + ">")
			stack = append(stack, it.kind)
			liOpen = append(liOpen, false)
		}
		if liOpen[len(liOpen)-1] {
			b.WriteString("</li>")
		}
		b.WriteString("<li>" + it.inner)
		liOpen[len(liOpen)-1] = true
	}
	for len(stack) > 0 {
		closeOne()
	}
	return b.String()
}
