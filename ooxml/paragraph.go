package ooxml

import (
	"regexp"
	"strconv"
	"strings"
)

// The document part is edited at the text level. Matching paragraphs by
// regex is safe here because WordprocessingML never nests w:p inside w:p,
// and the w:pPr child cannot be confused with the closing tag.
var (
	paraRe    = regexp.MustCompile(`(?s)<w:p(?:\s[^>]*)?>.*?</w:p>|<w:p(?:\s[^>]*)?/>`)
	pPrRe     = regexp.MustCompile(`(?s)<w:pPr(?:\s[^>]*)?>.*?</w:pPr>|<w:pPr/>`)
	runTextRe = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>`)
	pStyleRe  = regexp.MustCompile(`<w:pStyle\s[^>]*w:val="([^"]*)"`)
	ilvlRe    = regexp.MustCompile(`<w:ilvl\s[^>]*w:val="(\d+)"`)
)

// Paragraph is one w:p element located inside a part.
type Paragraph struct {
	Start int    // byte offset of the element in the part
	End   int    // byte offset just past the element
	XML   string // the full element text
}

// Paragraphs returns every w:p element in the part, in document order.
func Paragraphs(part string) []Paragraph {
	locs := paraRe.FindAllStringIndex(part, -1)
	out := make([]Paragraph, 0, len(locs))
	for _, loc := range locs {
		out = append(out, Paragraph{Start: loc[0], End: loc[1], XML: part[loc[0]:loc[1]]})
	}
	return out
}

// Text concatenates the paragraph's run text, entities decoded.
func (p Paragraph) Text() string {
	var b strings.Builder
	for _, m := range runTextRe.FindAllStringSubmatch(p.XML, -1) {
		b.WriteString(UnescapeText(m[1]))
	}
	return b.String()
}

// Style returns the paragraph style id, or "" when unset.
func (p Paragraph) Style() string {
	if m := pStyleRe.FindStringSubmatch(p.XML); m != nil {
		return m[1]
	}
	return ""
}

// ListLevel returns the numbering indent level, or -1 when the paragraph is
// not part of a numbered list.
func (p Paragraph) ListLevel() int {
	if m := ilvlRe.FindStringSubmatch(p.XML); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return -1
}

// Properties returns the paragraph's w:pPr element, or "".
func (p Paragraph) Properties() string {
	if m := pPrRe.FindString(p.XML); m != "" {
		return m
	}
	return ""
}

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

var textUnescaper = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

// EscapeText escapes a string for inclusion inside a w:t element.
func EscapeText(s string) string { return textEscaper.Replace(s) }

// UnescapeText reverses EscapeText.
func UnescapeText(s string) string { return textUnescaper.Replace(s) }

// TextParagraph builds a minimal paragraph carrying the given properties
// (pPr XML, possibly empty) and a single run of text. Newlines become soft
// line breaks. Space preservation is declared so leading or trailing
// whitespace survives Word's parser.
func TextParagraph(pPr, text string) string {
	var b strings.Builder
	b.WriteString("<w:p>")
	b.WriteString(pPr)
	b.WriteString("<w:r>")
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteString("<w:br/>")
		}
		b.WriteString(`<w:t xml:space="preserve">`)
		b.WriteString(EscapeText(line))
		b.WriteString("</w:t>")
	}
	b.WriteString("</w:r></w:p>")
	return b.String()
}

// StyledParagraph builds a paragraph of text carrying a pStyle reference.
// Style ids in WordprocessingML are the display name with spaces removed.
func StyledParagraph(styleName, text string) string {
	id := strings.ReplaceAll(styleName, " ", "")
	pPr := `<w:pPr><w:pStyle w:val="` + EscapeText(id) + `"/></w:pPr>`
	return TextParagraph(pPr, text)
}

// Replace splices replacement XML over the paragraph's span in the part and
// returns the updated part text.
func (p Paragraph) Replace(part, replacement string) string {
	return part[:p.Start] + replacement + part[p.End:]
}
