package richtext

import (
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseBlocks parses canonical HTML into the ordered block sequence that
// subdocument construction consumes. List nesting depth becomes the
// zero-based Indent; loose inline content between block elements is grouped
// into paragraph blocks.
func ParseBlocks(src string) ([]Block, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	doc, err := xhtml.Parse(strings.NewReader(src))
	if err != nil {
		return nil, err
	}

	var blocks []Block
	var loose strings.Builder

	flushLoose := func() {
		text := strings.TrimSpace(loose.String())
		loose.Reset()
		if text != "" {
			blocks = append(blocks, Block{Kind: KindParagraph, Text: text})
		}
	}

	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		switch n.Type {
		case xhtml.TextNode:
			loose.WriteString(n.Data)
			return
		case xhtml.ElementNode:
			switch n.DataAtom {
			case atom.P, atom.Div, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				flushLoose()
				text := strings.TrimSpace(strings.ReplaceAll(inlineText(n), " ", " "))
				blocks = append(blocks, Block{Kind: KindParagraph, Text: text})
				return
			case atom.Ul, atom.Ol:
				flushLoose()
				walkList(n, 0, &blocks)
				return
			case atom.Head, atom.Script, atom.Style:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	flushLoose()

	// Empty paragraph blocks only survive between content; drop trailing ones.
	for len(blocks) > 0 && blocks[len(blocks)-1].Kind == KindParagraph &&
		blocks[len(blocks)-1].Text == "" {
		blocks = blocks[:len(blocks)-1]
	}
	return blocks, nil
}

func walkList(list *xhtml.Node, depth int, blocks *[]Block) {
	kind := KindBullet
	if list.DataAtom == atom.Ol {
		kind = KindOrdered
	}
	for li := list.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != xhtml.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		text := strings.TrimSpace(strings.ReplaceAll(inlineText(li), " ", " "))
		if text != "" {
			*blocks = append(*blocks, Block{Kind: kind, Indent: depth, Text: text})
		}
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == xhtml.ElementNode && (c.DataAtom == atom.Ul || c.DataAtom == atom.Ol) {
				walkList(c, depth+1, blocks)
			}
		}
	}
}
