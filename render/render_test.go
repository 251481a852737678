package render

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/quotedoc/ooxml"
	"github.com/hazyhaar/quotedoc/quotectx"
	"github.com/hazyhaar/quotedoc/subdoc"
)

const templateDoc = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
	`<w:p><w:r><w:t>Customer: {{ data.customer.name }}</w:t></w:r></w:p>` +
	`<w:p><w:pPr><w:pStyle w:val="QuoteBody"/></w:pPr><w:r><w:t>{{ data.zoneFunctions.guardingDescription }}</w:t></w:r></w:p>` +
	`<w:p><w:pPr><w:pStyle w:val="ListBullet2"/></w:pPr><w:r><w:t>{{ data.options }}</w:t></w:r></w:p>` +
	`<w:p><w:pPr><w:numPr><w:ilvl w:val="2"/><w:numId w:val="5"/></w:numPr></w:pPr><w:r><w:t>{% insert data.notes %}</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>Ref {{ data.missing }} end</w:t></w:r></w:p>` +
	`</w:body></w:document>`

const templateRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/></Relationships>`

func writeTemplate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "template.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, content := range map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		ooxml.DocumentPart:    templateDoc,
		ooxml.RelsPart:        templateRels,
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInspect(t *testing.T) {
	markers, err := Inspect(writeTemplate(t), nil)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	tests := []struct {
		name  string
		level int
		style string
	}{
		{"data.customer.name", 1, ""},
		{"data.zoneFunctions.guardingDescription", 1, "QuoteBody"},
		{"data.options", 2, "ListBullet2"},
		{"data.notes", 3, ""}, // ilvl 2, zero-based
		{"data.missing", 1, ""},
	}
	for _, tt := range tests {
		m, ok := markers[tt.name]
		if !ok {
			t.Errorf("placeholder %s not discovered", tt.name)
			continue
		}
		if m.Level != tt.level {
			t.Errorf("%s level = %d, want %d", tt.name, m.Level, tt.level)
		}
		if m.Style != tt.style {
			t.Errorf("%s style = %q, want %q", tt.name, m.Style, tt.style)
		}
	}
}

func TestRender(t *testing.T) {
	frag, err := subdoc.New(nil).Build("<ul><li>guard A</li><li>guard B</li></ul>", 1, "QuoteBody")
	if err != nil {
		t.Fatal(err)
	}
	in := &Input{
		Context: quotectx.Tree{
			"data": map[string]any{
				"customer": map[string]any{"name": "Acme Robotics"},
			},
		},
		Fragments: map[string]*subdoc.Fragment{
			"data.zonefunctions.guardingdescription": frag,
		},
	}

	out := filepath.Join(t.TempDir(), "out.docx")
	if err := New(Config{}).Render(writeTemplate(t), out, in); err != nil {
		t.Fatalf("Render: %v", err)
	}

	pkg, err := ooxml.Open(out)
	if err != nil {
		t.Fatalf("reopen output: %v", err)
	}
	defer pkg.Close()
	doc, _ := pkg.Document()

	if !strings.Contains(doc, "Customer: Acme Robotics") {
		t.Error("plain substitution missing")
	}
	if strings.Contains(doc, "guardingDescription") {
		t.Error("fragment placeholder survived")
	}
	for _, want := range []string{"guard A", "guard B", `w:val="ListBullet"`} {
		if !strings.Contains(doc, want) {
			t.Errorf("fragment content %q missing", want)
		}
	}
	// Missing data stays visible rather than vanishing.
	if !strings.Contains(doc, "{{ data.missing }}") {
		t.Error("unresolved placeholder was removed")
	}
	if !strings.Contains(doc, "{% insert data.notes %}") {
		t.Error("unresolved tag token was removed")
	}
}

func TestRenderEmptyFragmentKeepsParagraph(t *testing.T) {
	in := &Input{
		Context: quotectx.Tree{},
		Fragments: map[string]*subdoc.Fragment{
			"data.zonefunctions.guardingdescription": {},
		},
	}
	out := filepath.Join(t.TempDir(), "out.docx")
	if err := New(Config{}).Render(writeTemplate(t), out, in); err != nil {
		t.Fatalf("Render: %v", err)
	}
	pkg, err := ooxml.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer pkg.Close()
	doc, _ := pkg.Document()
	if strings.Contains(doc, "guardingDescription") {
		t.Error("placeholder survived empty fragment insertion")
	}
	// The hosting paragraph keeps its style so template spacing holds.
	if !strings.Contains(doc, `w:val="QuoteBody"`) {
		t.Error("empty fragment dropped the hosting paragraph")
	}
}

func TestRenderNoImageCheckpoint(t *testing.T) {
	out := filepath.Join(t.TempDir(), "quote.docx")
	r := New(Config{NoImageCheckpoint: true})
	if err := r.Render(writeTemplate(t), out, &Input{Context: quotectx.Tree{}}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(out), "quote_noimage.docx")); err != nil {
		t.Errorf("checkpoint copy missing: %v", err)
	}
}

func TestTokenNames(t *testing.T) {
	got := tokenNames("a {{ x.y }} b {%p include data.z %} c")
	want := []string{"x.y", "data.z"}
	if len(got) != len(want) {
		t.Fatalf("tokenNames = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tokenNames[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
