package richtext

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

// deltaOp is one Quill Delta operation. Insert is a string for text or a
// map for embeds.
type deltaOp struct {
	Insert     any            `json:"insert"`
	Attributes map[string]any `json:"attributes"`
}

type deltaDoc struct {
	Ops []deltaOp `json:"ops"`
}

// deltaSeg is a run of line text with the inline attributes of the op that
// inserted it.
type deltaSeg struct {
	text  string
	attrs map[string]any
}

// deltaLine is one block line after splitting ops on newline boundaries.
// attrs are the attributes of the op that terminated the line; block
// attributes (list, indent) live there.
type deltaLine struct {
	segs  []deltaSeg
	attrs map[string]any
}

func (l deltaLine) inner() string {
	var b strings.Builder
	for _, s := range l.segs {
		b.WriteString(inlineSpans(s.text, s.attrs))
	}
	return b.String()
}

func (l deltaLine) empty() bool {
	for _, s := range l.segs {
		if strings.TrimSpace(s.text) != "" {
			return false
		}
	}
	return true
}

// LooksLikeDelta reports whether s appears to be Quill Delta JSON.
func LooksLikeDelta(s string) bool {
	t := strings.TrimSpace(s)
	return strings.HasPrefix(t, "{") && strings.Contains(t, `"ops"`)
}

// DeltaToHTML converts Quill Delta JSON into canonical HTML with nested
// lists. Lines whose terminating op carries a list attribute become list
// items; a change in list kind force-closes the previous list. Inline
// attributes wrap each segment's escaped text in a fixed order.
func DeltaToHTML(raw string) (string, error) {
	var doc deltaDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", fmt.Errorf("decode delta: %w", err)
	}

	lines := splitLines(doc.Ops)

	var b strings.Builder
	var run []listItem // pending consecutive list lines

	flushRun := func() {
		if len(run) > 0 {
			b.WriteString(nestItems(run))
			run = nil
		}
	}

	for _, line := range lines {
		kind, _ := line.attrs["list"].(string)
		switch kind {
		case "ordered", "bullet":
			tag := "ul"
			if kind == "ordered" {
				tag = "ol"
			}
			run = append(run, listItem{
				kind:   tag,
				indent: attrInt(line.attrs, "indent"),
				inner:  line.inner(),
			})
		default:
			flushRun()
			inner := line.inner()
			if line.empty() {
				inner = " "
			}
			b.WriteString("<p>" + inner + "</p>")
		}
	}
	flushRun()
	return b.String(), nil
}

// splitLines walks the ops and splits inserted text on newline boundaries.
func splitLines(ops []deltaOp) []deltaLine {
	var lines []deltaLine
	var segs []deltaSeg
	var lastAttrs map[string]any

	appendSeg := func(text string, attrs map[string]any) {
		if text != "" {
			segs = append(segs, deltaSeg{text: text, attrs: attrs})
		}
	}

	for _, op := range ops {
		lastAttrs = op.Attributes
		text, ok := op.Insert.(string)
		if !ok {
			if embed, ok := op.Insert.(map[string]any); ok {
				if img, ok := embed["image"].(string); ok {
					appendSeg("[image: "+img+"]", nil)
				} else {
					appendSeg("[embed]", nil)
				}
			}
			continue
		}
		parts := strings.Split(text, "\n")
		for i, part := range parts {
			if i > 0 {
				lines = append(lines, deltaLine{segs: segs, attrs: op.Attributes})
				segs = nil
			}
			appendSeg(part, op.Attributes)
		}
	}
	if len(segs) > 0 {
		lines = append(lines, deltaLine{segs: segs, attrs: lastAttrs})
	}
	return lines
}

func attrInt(attrs map[string]any, key string) int {
	switch v := attrs[key].(type) {
	case float64:
		if v < 0 {
			return 0
		}
		return int(v)
	case string:
		n := 0
		fmt.Sscanf(v, "%d", &n)
		if n < 0 {
			return 0
		}
		return n
	default:
		return 0
	}
}

// inlineSpans escapes text and applies inline attributes in a fixed nesting
// order: link innermost, then strong, em, u, s.
func inlineSpans(text string, attrs map[string]any) string {
	out := html.EscapeString(text)
	if link, ok := attrs["link"].(string); ok && link != "" {
		out = `<a href="` + html.EscapeString(link) + `">` + out + `</a>`
	}
	if truthy(attrs["bold"]) {
		out = "<strong>" + out + "</strong>"
	}
	if truthy(attrs["italic"]) {
		out = "<em>" + out + "</em>"
	}
	if truthy(attrs["underline"]) {
		out = "<u>" + out + "</u>"
	}
	if truthy(attrs["strike"]) {
		out = "<s>" + out + "</s>"
	}
	return out
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}
