package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/quotedoc/quotectx"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	tree := quotectx.Tree{
		"data": map[string]any{
			"quoteNumber": "Q-2041",
			"systemName":  "Cell 7 <guarding>",
			"customercontact": map[string]any{
				"companyname": "Acme Robotics",
				"email":       "sales@acme.example",
			},
			"oee": map[string]any{
				"availability": "92.5",
			},
		},
	}
	path := filepath.Join(t.TempDir(), "quote.xml")
	if err := Save(tree, Final, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, variant, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if variant != Final {
		t.Errorf("variant = %q, want %q", variant, Final)
	}
	for key, want := range map[string]string{
		"data.quoteNumber":                 "Q-2041",
		"data.systemName":                  "Cell 7 <guarding>",
		"data.customercontact.companyname": "Acme Robotics",
		"data.customercontact.email":       "sales@acme.example",
		"data.oee.availability":            "92.5",
	} {
		v, ok := quotectx.Lookup(got, key)
		if !ok || v != want {
			t.Errorf("Lookup(%q) = %q, %v; want %q", key, v, ok, want)
		}
	}
}

func TestSaveWithoutVariant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quote.xml")
	tree := quotectx.Tree{"data": map[string]any{"systemName": "x"}}
	if err := Save(tree, "", path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, _ := os.ReadFile(path)
	if strings.Contains(string(raw), "quoteType") {
		t.Error("quoteType element written for empty variant")
	}
	_, variant, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if variant != "" {
		t.Errorf("variant = %q, want empty", variant)
	}
}

func TestSaveOrdering(t *testing.T) {
	tree := quotectx.Tree{
		"data": map[string]any{
			"shipping":    map[string]any{"incoterms": "EXW"},
			"quoteNumber": "Q-1",
			"costSheet": map[string]any{
				"link": map[string]any{"1": "a", "2": "b", "10": "j"},
			},
			"unlisted": map[string]any{"extra": "kept"},
		},
	}
	path := filepath.Join(t.TempDir(), "quote.xml")
	if err := Save(tree, Budgetary, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, _ := os.ReadFile(path)
	text := string(raw)

	order := []string{
		"<quoteType>budgetary</quoteType>",
		"<data.quoteNumber>",
		"<data.costSheet.link.1>",
		"<data.costSheet.link.2>",
		"<data.costSheet.link.10>", // numeric, not lexical
		"<data.shipping.incoterms>",
		"<data.unlisted.extra>", // unknown keys still saved, at the end
	}
	pos := 0
	for _, want := range order {
		i := strings.Index(text[pos:], want)
		if i < 0 {
			t.Fatalf("missing or misordered %q in:\n%s", want, text)
		}
		pos += i
	}
}

func TestSanitizeTag(t *testing.T) {
	tests := []struct{ in, want string }{
		{"data.customercontact.email", "data.customercontact.email"},
		{"data.odd key!", "data.odd_key_"},
		{"7seas", "n7seas"},
		{"data.a-b_c", "data.a-b_c"},
	}
	for _, tt := range tests {
		if got := sanitizeTag(tt.in); got != tt.want {
			t.Errorf("sanitizeTag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadRejectsWrongRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xml")
	if err := os.WriteFile(path, []byte(`<?xml version="1.0"?><Other/>`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(path); err == nil {
		t.Fatal("Load accepted a foreign XML file")
	}
}
