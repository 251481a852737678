package render

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/hazyhaar/quotedoc/ooxml"
)

var (
	varTokenRe   = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)
	tagTokenRe   = regexp.MustCompile(`\{%\s*([^%}]+?)\s*%\}`)
	soloTokenRe  = regexp.MustCompile(`^\{\{\s*([^{}]+?)\s*\}\}$`)
	styleLevelRe = regexp.MustCompile(`(?i)^List(?:Bullet|Number)\s?([1-9])?$`)
	identRe      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

	// Parts that can host placeholders: the body plus headers, footers
	// and notes.
	templatePartRe = regexp.MustCompile(`^word/(document|header\d*|footer\d*|footnotes|endnotes)\.xml$`)
)

// Marker describes how one placeholder sits in the template: the style id
// of its hosting paragraph and the base list level derived from that
// paragraph's styling.
type Marker struct {
	Level int
	Style string
}

// Inspect scans every placeholder-bearing part of the template and maps
// placeholder names to their markers. A paragraph with neither a numbered
// list style nor numbering properties gets level 1 and a warning; the
// template author's intent is ambiguous there and guessing deeper would
// hide the mistake.
func Inspect(templatePath string, log *slog.Logger) (map[string]Marker, error) {
	if log == nil {
		log = slog.Default()
	}
	pkg, err := ooxml.Open(templatePath)
	if err != nil {
		return nil, fmt.Errorf("inspect template: %w", err)
	}
	defer pkg.Close()

	parts, err := pkg.Parts()
	if err != nil {
		return nil, err
	}
	out := make(map[string]Marker)
	for _, partName := range parts {
		if !templatePartRe.MatchString(partName) {
			continue
		}
		part, err := pkg.Part(partName)
		if err != nil {
			return nil, err
		}
		for _, p := range ooxml.Paragraphs(part) {
			names := tokenNames(p.Text())
			if len(names) == 0 {
				continue
			}
			level, known := baseLevel(p)
			if !known {
				log.Warn("placeholder paragraph carries no list styling, assuming level 1",
					"part", partName, "placeholder", names[0])
			}
			m := Marker{Level: level, Style: p.Style()}
			for _, n := range names {
				if _, seen := out[n]; !seen {
					out[n] = m
				}
			}
		}
	}
	return out, nil
}

// tokenNames extracts placeholder names from paragraph text: the body of
// each {{ var }} token, and for {% tag %} tokens the last identifier in the
// tag body (the variable being inserted, after any tag keywords).
func tokenNames(text string) []string {
	var names []string
	for _, m := range varTokenRe.FindAllStringSubmatch(text, -1) {
		names = append(names, m[1])
	}
	for _, m := range tagTokenRe.FindAllStringSubmatch(text, -1) {
		fields := strings.Fields(m[1])
		for i := len(fields) - 1; i >= 0; i-- {
			if identRe.MatchString(fields[i]) {
				names = append(names, fields[i])
				break
			}
		}
	}
	return names
}

// baseLevel derives a placeholder's base list level from its paragraph:
// a trailing numeral in a List Bullet/Number style wins, then a numbering
// ilvl (zero-based, so +1). The bool reports whether either source was
// present.
func baseLevel(p ooxml.Paragraph) (int, bool) {
	if m := styleLevelRe.FindStringSubmatch(p.Style()); m != nil {
		if m[1] == "" {
			return 1, true
		}
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	if ilvl := p.ListLevel(); ilvl >= 0 {
		return ilvl + 1, true
	}
	return 1, false
}
