// Package snapshot persists a quote context as an XML snapshot file, one
// element per flattened field, so a quote can be reloaded for revision.
package snapshot

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hazyhaar/quotedoc/quotectx"
)

// Variant distinguishes the two quote flavours a snapshot can carry.
type Variant string

const (
	Budgetary Variant = "budgetary"
	Final     Variant = "final"
)

// keyOrder lists the known fields in presentation order, category by
// category. A trailing ".1" marks a repeatable group whose numbered
// siblings are emitted in numeric order.
var keyOrder = []string{
	"data.quoteNumber",
	"data.proposalDate",
	"data.systemName",
	"data.customercontact.companyname",
	"data.customercontact.name",
	"data.customercontact.telephone",
	"data.customercontact.email",
	"data.customercontact.title",
	"data.customercontact.address",
	"data.customercontact.address2",
	"data.customercontact.logo",
	"data.alliancecontact.name",
	"data.alliancecontact.title",
	"data.alliancecontact.cell",
	"data.alliancecontact.email",
	"data.previousProject.quote",
	"data.customerspecifications.1",
	"data.costSheet.link.1",
	"data.costSheet.total.1",
	"data.systemLayout.elevation",
	"data.systemLayout.end",
	"data.systemLayout.iso",
	"data.systemLayout.top",
	"data.systemLayout.title",
	"data.oee.runtime",
	"data.oee.planneddowntime",
	"data.oee.unplanneddowntime",
	"data.oee.total_parts_produced",
	"data.oee.nominalcycletime",
	"data.oee.totalscrap",
	"data.oee.parts",
	"data.oee.oee",
	"data.oee.capacity",
	"data.oee.totalproduced",
	"data.oee.performance",
	"data.oee.quality",
	"data.oee.availability",
	"data.projectMilestones.customerKickoff",
	"data.projectMilestones.designAcceptance",
	"data.projectMilestones.buildStart",
	"data.projectMilestones.commissioningStart",
	"data.projectMilestones.fatStart",
	"data.projectMilestones.delivery",
	"data.shipping.incoterms",
}

var tagBadRe = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// sanitizeTag makes a dotted key usable as an XML element name.
func sanitizeTag(key string) string {
	tag := tagBadRe.ReplaceAllString(key, "_")
	if tag != "" && tag[0] >= '0' && tag[0] <= '9' {
		tag = "n" + tag
	}
	return tag
}

// Save writes the context to path. Known fields come first in category
// order, anything else follows alphabetically so no data is dropped.
func Save(t quotectx.Tree, variant Variant, path string) error {
	flat := stringLeaves(quotectx.Flatten(t))

	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString("<QuoteData>\n")
	if variant != "" {
		fmt.Fprintf(&b, "  <quoteType>%s</quoteType>\n", escape(string(variant)))
	}
	for _, key := range orderedKeys(flat) {
		tag := sanitizeTag(key)
		fmt.Fprintf(&b, "  <%s>%s</%s>\n", tag, escape(flat[key]), tag)
	}
	b.WriteString("</QuoteData>\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot back into a context tree.
func Load(path string) (quotectx.Tree, Variant, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("load snapshot: %w", err)
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	var (
		variant Variant
		flat    = make(map[string]any)
		depth   int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("load snapshot: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				if el.Name.Local != "QuoteData" {
					return nil, "", fmt.Errorf("load snapshot: unexpected root %q", el.Name.Local)
				}
				continue
			}
			var text string
			if err := dec.DecodeElement(&text, &el); err != nil {
				return nil, "", fmt.Errorf("load snapshot: field %s: %w", el.Name.Local, err)
			}
			depth--
			if el.Name.Local == "quoteType" {
				variant = Variant(text)
				continue
			}
			flat[el.Name.Local] = text
		case xml.EndElement:
			depth--
		}
	}
	return quotectx.Unflatten(flat), variant, nil
}

// orderedKeys sequences the flat keys: the known-field table first (with
// repeatable groups expanded in numeric order), then everything else
// alphabetically.
func orderedKeys(flat map[string]string) []string {
	seen := make(map[string]struct{}, len(flat))
	var out []string
	take := func(key string) {
		if _, dup := seen[key]; dup {
			return
		}
		if _, ok := flat[key]; ok {
			seen[key] = struct{}{}
			out = append(out, key)
		}
	}

	for _, base := range keyOrder {
		if !strings.HasSuffix(base, ".1") {
			take(base)
			continue
		}
		prefix := strings.TrimSuffix(base, "1")
		var nums []int
		for key := range flat {
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			if n, err := strconv.Atoi(key[len(prefix):]); err == nil {
				nums = append(nums, n)
			}
		}
		sort.Ints(nums)
		for _, n := range nums {
			take(prefix + strconv.Itoa(n))
		}
	}

	var rest []string
	for key := range flat {
		if _, dup := seen[key]; !dup {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// stringLeaves keeps string-valued fields and stringifies scalar ones;
// snapshots are a text format.
func stringLeaves(flat map[string]any) map[string]string {
	out := make(map[string]string, len(flat))
	for k, v := range flat {
		switch vv := v.(type) {
		case string:
			out[k] = vv
		case float64:
			out[k] = strconv.FormatFloat(vv, 'f', -1, 64)
		case int:
			out[k] = strconv.Itoa(vv)
		case bool:
			out[k] = strconv.FormatBool(vv)
		}
	}
	return out
}

func escape(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
