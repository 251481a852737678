// Package subdoc turns canonical rich-text HTML into WordprocessingML
// fragments ready for insertion at a template placeholder.
package subdoc

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hazyhaar/quotedoc/ooxml"
	"github.com/hazyhaar/quotedoc/richtext"
)

// Style index bounds for the built-in list style families. Word ships
// "List Bullet" through "List Bullet 9" and likewise for "List Number".
const (
	MinListLevel = 1
	MaxListLevel = 9
)

// ClampEvent records a list item whose computed style index exceeded the
// supported range and was pulled back.
type ClampEvent struct {
	Indent   int
	Computed int
	Applied  int
}

// Fragment is a self-contained run of paragraphs insertable in place of a
// single placeholder paragraph.
type Fragment struct {
	XML         string
	ClampEvents []ClampEvent
}

// Empty reports whether the fragment carries no paragraphs.
func (f *Fragment) Empty() bool { return f.XML == "" }

// Builder constructs fragments. It is safe for reuse across documents.
type Builder struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{log: log}
}

// Build parses canonical HTML into blocks and emits one paragraph per
// block. Plain paragraphs inherit markerStyle, the style id of the
// paragraph that held the placeholder; list items get the named list style
// for clamp(baseLevel+indent). Empty input yields an empty fragment.
func (b *Builder) Build(html string, baseLevel int, markerStyle string) (*Fragment, error) {
	if html == "" {
		return &Fragment{}, nil
	}
	blocks, err := richtext.ParseBlocks(html)
	if err != nil {
		return nil, fmt.Errorf("parse blocks: %w", err)
	}

	frag := &Fragment{}
	for _, blk := range blocks {
		switch blk.Kind {
		case richtext.KindParagraph:
			pPr := ""
			if markerStyle != "" {
				pPr = `<w:pPr><w:pStyle w:val="` + ooxml.EscapeText(markerStyle) + `"/></w:pPr>`
			}
			frag.XML += ooxml.TextParagraph(pPr, blk.Text)
		case richtext.KindBullet, richtext.KindOrdered:
			computed := baseLevel + blk.Indent
			applied := computed
			if applied < MinListLevel {
				applied = MinListLevel
			}
			if applied > MaxListLevel {
				applied = MaxListLevel
			}
			if applied < computed {
				frag.ClampEvents = append(frag.ClampEvents, ClampEvent{
					Indent:   blk.Indent,
					Computed: computed,
					Applied:  applied,
				})
				b.log.Warn("list level clamped",
					"indent", blk.Indent,
					"base_level", baseLevel,
					"computed", computed,
					"applied", applied)
			}
			frag.XML += ooxml.StyledParagraph(ListStyleName(blk.Kind, applied), blk.Text)
		}
	}
	return frag, nil
}

// ListStyleName maps a block kind and style index to Word's built-in style
// display name. Index 1 is the bare family name, not "List Bullet 1".
func ListStyleName(kind richtext.BlockKind, index int) string {
	family := "List Bullet"
	if kind == richtext.KindOrdered {
		family = "List Number"
	}
	if index <= 1 {
		return family
	}
	return family + " " + strconv.Itoa(index)
}
