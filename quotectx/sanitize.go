package quotectx

import (
	"html"
	"log/slog"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// FieldClass is the static classification of a leaf value.
type FieldClass int

const (
	// ClassPlain fields are stripped to plain text before rendering.
	ClassPlain FieldClass = iota
	// ClassRich fields keep their markup and become subdocuments.
	ClassRich
	// ClassImage fields hold a file-system path consumed by image markers.
	ClassImage
)

func (c FieldClass) String() string {
	switch c {
	case ClassRich:
		return "rich"
	case ClassImage:
		return "image"
	default:
		return "plain"
	}
}

// Policy is the immutable field classification configuration. The zero value
// sanitizes everything to plain text.
type Policy struct {
	// RichFields holds lowercased dotted paths allowed to keep markup.
	RichFields map[string]struct{}
	// ImageFields holds lowercased dotted paths whose values are image paths.
	ImageFields map[string]struct{}
	// ListHeuristic additionally promotes any string containing <ul>/<ol>/<li>
	// to rich handling. Off by default: it can silently promote fields the
	// allow-list never named.
	ListHeuristic bool
}

// DefaultPolicy returns the production field classification.
func DefaultPolicy() Policy {
	return Policy{
		RichFields: setOf(
			"data.zonefunctions.guardingdescription",
			"data.zonefunctions.controlsdescription",
			"data.riskdescription.1",
		),
		ImageFields: setOf(
			"data.titleimage",
			"data.customercontact.logo",
			"data.systemlayout.elevation",
			"data.systemlayout.end",
			"data.systemlayout.iso",
			"data.systemlayout.top",
			"data.systemlayout.title",
		),
	}
}

func setOf(keys ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[strings.ToLower(k)] = struct{}{}
	}
	return m
}

var (
	breakRe      = regexp.MustCompile(`(?i)<\s*br\s*/?\s*>`)
	blockCloseRe = regexp.MustCompile(`(?i)</\s*(p|div|li|ul|ol|h[1-6])\s*>`)
	blankRunRe   = regexp.MustCompile(`\n{3,}`)
	crReplacer   = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// Sanitizer strips markup from every leaf except allow-listed rich fields.
type Sanitizer struct {
	policy Policy
	strip  *bluemonday.Policy
	logger *slog.Logger
}

// NewSanitizer creates a Sanitizer with the given policy.
func NewSanitizer(policy Policy, logger *slog.Logger) *Sanitizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sanitizer{
		policy: policy,
		strip:  bluemonday.StrictPolicy(),
		logger: logger,
	}
}

// Policy returns the classification policy the sanitizer was built with.
func (s *Sanitizer) Policy() Policy { return s.policy }

// Classify returns the static classification of the leaf at path.
func (s *Sanitizer) Classify(path Path, value string) FieldClass {
	low := path.Lower()
	if _, ok := s.policy.ImageFields[low]; ok {
		return ClassImage
	}
	if _, ok := s.policy.RichFields[low]; ok {
		return ClassRich
	}
	if s.policy.ListHeuristic && looksLikeHTMLList(value) {
		return ClassRich
	}
	return ClassPlain
}

// Sanitize returns a deep copy of the tree with every non-rich string leaf
// stripped to plain text. Key casing and non-string leaves are preserved.
func (s *Sanitizer) Sanitize(t Tree) Tree {
	out, _ := s.sanitizeValue(nil, t).(map[string]any)
	return out
}

func (s *Sanitizer) sanitizeValue(path Path, v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = s.sanitizeValue(path.Child(k), child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = s.sanitizeValue(path, child)
		}
		return out
	case string:
		switch s.Classify(path, val) {
		case ClassRich:
			s.logger.Debug("sanitize: keep rich", "path", path.String())
			return val
		case ClassImage:
			return val
		default:
			stripped := s.StripMarkup(val)
			if stripped != val {
				s.logger.Debug("sanitize: stripped",
					"path", path.String(), "len_in", len(val), "len_out", len(stripped))
			}
			return stripped
		}
	default:
		return v
	}
}

// RichLeaves collects every leaf classified rich, keyed by lowercased
// dotted path. The walk mirrors Sanitize so a field keeps the same
// classification in both.
func (s *Sanitizer) RichLeaves(t Tree) map[string]string {
	out := make(map[string]string)
	s.collectRich(nil, t, out)
	return out
}

func (s *Sanitizer) collectRich(path Path, v any, out map[string]string) {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			s.collectRich(path.Child(k), child, out)
		}
	case []any:
		for _, child := range val {
			s.collectRich(path, child, out)
		}
	case string:
		if s.Classify(path, val) == ClassRich {
			out[path.Lower()] = val
		}
	}
}

// StripMarkup removes all HTML/XML markup from text. Block-level closing
// tags and <br> become newlines first so line breaks survive; runs of more
// than one blank line are collapsed.
func (s *Sanitizer) StripMarkup(text string) string {
	if text == "" {
		return ""
	}
	normalized := breakRe.ReplaceAllString(text, "\n")
	normalized = blockCloseRe.ReplaceAllString(normalized, "\n")
	stripped := html.UnescapeString(s.strip.Sanitize(normalized))
	stripped = crReplacer.Replace(stripped)
	return blankRunRe.ReplaceAllString(stripped, "\n\n")
}

func looksLikeHTMLList(v string) bool {
	low := strings.ToLower(v)
	return strings.Contains(low, "<ul") ||
		strings.Contains(low, "<ol") ||
		strings.Contains(low, "<li")
}
