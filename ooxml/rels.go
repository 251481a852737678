package ooxml

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	relsNS      = "http://schemas.openxmlformats.org/package/2006/relationships"
	imageRelTyp = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
)

// Relationships mirrors the document part's .rels file.
type Relationships struct {
	XMLName xml.Name       `xml:"Relationships"`
	Xmlns   string         `xml:"xmlns,attr"`
	Rels    []Relationship `xml:"Relationship"`
}

// Relationship is a single package relationship entry.
type Relationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

// Rels loads and parses word/_rels/document.xml.rels.
func (p *Package) Rels() (*Relationships, error) {
	raw, err := p.Part(RelsPart)
	if err != nil {
		return nil, err
	}
	var rs Relationships
	if err := xml.Unmarshal([]byte(raw), &rs); err != nil {
		return nil, fmt.Errorf("%w: parse rels: %v", ErrMalformedPackage, err)
	}
	return &rs, nil
}

// SetRels serializes and writes the relationships part back.
func (p *Package) SetRels(rs *Relationships) error {
	rs.Xmlns = relsNS
	data, err := xml.Marshal(rs)
	if err != nil {
		return fmt.Errorf("serialize rels: %w", err)
	}
	return p.SetPart(RelsPart, xml.Header+string(data))
}

// NextID returns the first unused rIdN in the relationships part.
func (rs *Relationships) NextID() string {
	used := make(map[string]struct{}, len(rs.Rels))
	for _, r := range rs.Rels {
		used[r.ID] = struct{}{}
	}
	for n := 1; ; n++ {
		id := "rId" + strconv.Itoa(n)
		if _, ok := used[id]; !ok {
			return id
		}
	}
}

// AddImageRelationship appends an image relationship for the named media
// file and persists the part. It returns the new relationship Id.
func (p *Package) AddImageRelationship(mediaName string) (string, error) {
	rs, err := p.Rels()
	if err != nil {
		return "", err
	}
	rid := rs.NextID()
	rs.Rels = append(rs.Rels, Relationship{
		ID:     rid,
		Type:   imageRelTyp,
		Target: "media/" + mediaName,
	})
	if err := p.SetRels(rs); err != nil {
		return "", err
	}
	return rid, nil
}

var embedRe = regexp.MustCompile(`r:embed="(rId\d+)"`)

// ValidateRels checks that every r:embed in the document resolves to a
// declared relationship whose image target exists in the package. A broken
// embed makes Word refuse the whole document, so this runs before every
// save of an image-edited package.
func (p *Package) ValidateRels() error {
	doc, err := p.Document()
	if err != nil {
		return err
	}
	rs, err := p.Rels()
	if err != nil {
		return err
	}
	byID := make(map[string]Relationship, len(rs.Rels))
	for _, r := range rs.Rels {
		byID[r.ID] = r
	}

	var missing []string
	for _, m := range embedRe.FindAllStringSubmatch(doc, -1) {
		rid := m[1]
		rel, ok := byID[rid]
		if !ok {
			missing = append(missing, rid)
			continue
		}
		if rel.Type == imageRelTyp && !p.HasMedia(strings.TrimPrefix(rel.Target, "media/")) {
			missing = append(missing, rid+" -> "+rel.Target)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: dangling image relationships: %s", ErrMalformedPackage, strings.Join(missing, ", "))
	}
	return nil
}
