package ooxml

import (
	"fmt"
	"regexp"
	"strings"
)

// EMU conversion. WordprocessingML measures drawing extents in English
// Metric Units, 914400 to the inch.
const (
	EMUPerInch = 914400
	MMPerInch  = 25.4
)

// EMUFromMM converts millimetres to EMU.
func EMUFromMM(mm float64) int64 {
	return int64(mm / MMPerInch * EMUPerInch)
}

// EMUFromPixels converts a pixel count at the given resolution to EMU.
func EMUFromPixels(px int, dpi float64) int64 {
	return int64(float64(px) / dpi * EMUPerInch)
}

const inlineDrawingTmpl = `<w:drawing><wp:inline xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" distT="0" distB="0" distL="0" distR="0"><wp:extent cx="%[1]d" cy="%[2]d"/><wp:effectExtent l="0" t="0" r="0" b="0"/><wp:docPr id="%[3]d" name="%[4]s"/><wp:cNvGraphicFramePr><a:graphicFrameLocks xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" noChangeAspect="1"/></wp:cNvGraphicFramePr><a:graphic xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture"><pic:pic xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture"><pic:nvPicPr><pic:cNvPr id="%[3]d" name="%[4]s"/><pic:cNvPicPr/></pic:nvPicPr><pic:blipFill><a:blip xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" r:embed="%[5]s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill><pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%[1]d" cy="%[2]d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr></pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing>`

// InlineDrawing renders a wp:inline picture drawing that embeds the image
// behind the given relationship id at the given extent. All drawing
// namespaces are declared locally so the markup is valid regardless of what
// the template's document root declares.
func InlineDrawing(rid string, cx, cy int64, docPrID int, name string) string {
	return fmt.Sprintf(inlineDrawingTmpl, cx, cy, docPrID, EscapeText(name), rid)
}

// DrawingParagraph wraps an inline drawing in a paragraph, carrying over
// the given paragraph properties so alignment and spacing of the marker
// paragraph survive.
func DrawingParagraph(pPr, rid string, cx, cy int64, docPrID int, name string) string {
	var b strings.Builder
	b.WriteString("<w:p>")
	b.WriteString(pPr)
	b.WriteString("<w:r>")
	b.WriteString(InlineDrawing(rid, cx, cy, docPrID, name))
	b.WriteString("</w:r></w:p>")
	return b.String()
}

var docPrIDRe = regexp.MustCompile(`<wp:docPr [^>]*id="(\d+)"`)

// NextDocPrID returns one past the highest wp:docPr id already present in
// the part, so new drawings never collide with existing ones.
func NextDocPrID(part string) int {
	max := 0
	for _, m := range docPrIDRe.FindAllStringSubmatch(part, -1) {
		n := 0
		for _, c := range m[1] {
			n = n*10 + int(c-'0')
		}
		if n > max {
			max = n
		}
	}
	return max + 1
}
