package richtext

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var indentClassRe = regexp.MustCompile(`(?i)\bql-indent-(\d+)\b`)

// normalizeQuillHTML rebuilds Quill's flat ql-indent list encoding into
// properly nested lists. Paragraph content outside lists is kept; each
// contiguous list (or run of stray <li> siblings) is rebuilt from its items
// in document order.
func normalizeQuillHTML(src string) string {
	doc, err := xhtml.Parse(strings.NewReader(src))
	if err != nil {
		return src
	}

	var b strings.Builder
	var process func(n *xhtml.Node)

	processChildren := func(n *xhtml.Node) {
		for c := n.FirstChild; c != nil; {
			// Stray <li> siblings outside a list wrapper still carry
			// ql-indent classes; group each contiguous run as one list.
			if c.Type == xhtml.ElementNode && c.DataAtom == atom.Li {
				var items []listItem
				for c != nil {
					if c.Type == xhtml.ElementNode {
						if c.DataAtom != atom.Li {
							break
						}
						items = append(items, quillItem("ul", c))
					}
					c = c.NextSibling
				}
				b.WriteString(nestItems(items))
				continue
			}
			process(c)
			c = c.NextSibling
		}
	}

	process = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode {
			switch n.DataAtom {
			case atom.P, atom.Div, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				text := inlineText(n)
				if strings.TrimSpace(text) != "" {
					b.WriteString("<p>" + html.EscapeString(text) + "</p>")
				}
				return
			case atom.Ul, atom.Ol:
				b.WriteString(nestItems(collectQuillItems(n)))
				return
			case atom.Head, atom.Script, atom.Style:
				return
			}
		}
		processChildren(n)
	}

	process(doc)
	return b.String()
}

// collectQuillItems extracts every <li> of a flat Quill list in document
// order with its ql-indent depth.
func collectQuillItems(list *xhtml.Node) []listItem {
	kind := "ul"
	if list.DataAtom == atom.Ol {
		kind = "ol"
	}
	var items []listItem
	for li := list.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != xhtml.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		items = append(items, quillItem(kind, li))
	}
	return items
}

func quillItem(kind string, li *xhtml.Node) listItem {
	text := strings.TrimSpace(strings.ReplaceAll(inlineText(li), " ", " "))
	return listItem{
		kind:   kind,
		indent: indentOf(li),
		inner:  html.EscapeString(text),
	}
}

// indentOf reads the ql-indent-N class of a list item. Missing or malformed
// classes mean depth 0; depth is clamped to a minimum of 0.
func indentOf(n *xhtml.Node) int {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		m := indentClassRe.FindStringSubmatch(a.Val)
		if m == nil {
			continue
		}
		depth, err := strconv.Atoi(m[1])
		if err != nil || depth < 0 {
			return 0
		}
		return depth
	}
	return 0
}

// inlineText collects the text of a subtree, skipping nested lists.
func inlineText(n *xhtml.Node) string {
	var b strings.Builder
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type == xhtml.ElementNode && (n.DataAtom == atom.Ul || n.DataAtom == atom.Ol) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return b.String()
}
