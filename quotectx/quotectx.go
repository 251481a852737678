// Package quotectx models the quote data context: a JSON-compatible tree of
// nested maps addressed by dotted paths. It provides flatten/unflatten for
// repeatable field groups, case-tolerant lookup for image keys, and the
// sanitizer that decides which leaf values stay rich and which are reduced
// to plain text before template rendering.
package quotectx

import (
	"fmt"
	"strconv"
	"strings"
)

// Tree is a quote context: nested string-keyed maps with string leaves.
// The canonical root namespace key is "data".
type Tree = map[string]any

// RootKey is the namespace key under which all quote fields live.
const RootKey = "data"

// Path is a parsed dotted field path, e.g. data.systemLayout.iso.
type Path []string

// ParsePath splits a dotted key into segments. Empty segments are dropped.
func ParsePath(s string) Path {
	parts := strings.Split(s, ".")
	p := make(Path, 0, len(parts))
	for _, seg := range parts {
		if seg != "" {
			p = append(p, seg)
		}
	}
	return p
}

func (p Path) String() string { return strings.Join(p, ".") }

// Lower returns the dotted form lowercased, the form used for allow-list
// membership tests. Key casing in the tree itself is always preserved.
func (p Path) Lower() string { return strings.ToLower(p.String()) }

// Child returns p extended by one segment.
func (p Path) Child(seg string) Path {
	child := make(Path, len(p), len(p)+1)
	copy(child, p)
	return append(child, seg)
}

// ShortKey strips the leading root namespace segment, if present.
// "data.titleImage" becomes "titleImage".
func (p Path) ShortKey() string {
	if len(p) > 0 && strings.EqualFold(p[0], RootKey) {
		return Path(p[1:]).String()
	}
	return p.String()
}

// Flatten converts a nested tree into a map keyed by dotted paths.
// Repeatable groups (field → index map) become field.index keys.
func Flatten(t Tree) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", t)
	return out
}

func flattenInto(out map[string]any, prefix string, v any) {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenInto(out, key, child)
		}
	case []any:
		for i, child := range val {
			key := fmt.Sprintf("%s.%d", prefix, i)
			if prefix == "" {
				key = fmt.Sprintf("%d", i)
			}
			flattenInto(out, key, child)
		}
	default:
		if prefix != "" {
			out[prefix] = v
		}
	}
}

// Unflatten rebuilds a nested tree from dotted keys. Numeric index segments
// become ordinary map keys, so Flatten/Unflatten round-trips repeatable
// groups exactly.
func Unflatten(flat map[string]any) Tree {
	root := Tree{}
	for k, v := range flat {
		Merge(root, k, v)
	}
	return root
}

// Merge sets a value into the tree at a dotted key, creating intermediate
// maps as needed. A non-map intermediate is replaced by a map.
func Merge(t Tree, key string, value any) {
	segs := ParsePath(key)
	if len(segs) == 0 {
		return
	}
	cur := t
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value
}

// Lookup resolves a key to a string leaf, trying in order: the key as given,
// the key under the data root, the key prefixed with "data.", then the same
// three probes lowercased. First hit wins.
func Lookup(t Tree, key string) (string, bool) {
	if v, ok := lookupVariants(t, key); ok {
		return v, true
	}
	low := strings.ToLower(key)
	if low != key {
		if v, ok := lookupVariants(t, low); ok {
			return v, true
		}
	}
	return "", false
}

func lookupVariants(t Tree, key string) (string, bool) {
	if v, ok := nested(t, key); ok {
		return v, true
	}
	if data, ok := t[RootKey].(map[string]any); ok {
		if v, ok := nested(data, key); ok {
			return v, true
		}
	}
	if !strings.HasPrefix(key, RootKey+".") {
		if v, ok := nested(t, RootKey+"."+key); ok {
			return v, true
		}
	}
	return "", false
}

func nested(m map[string]any, dotted string) (string, bool) {
	var cur any = m
	for _, seg := range ParsePath(dotted) {
		sub, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur, ok = sub[seg]
		if !ok {
			return "", false
		}
	}
	switch v := cur.(type) {
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return "", false
}
