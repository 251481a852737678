package bridge

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/quotedoc/contacts"
	"github.com/hazyhaar/quotedoc/oee"
	"github.com/hazyhaar/quotedoc/ooxml"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	srv, err := NewServer(&Config{
		ContactsDB:  filepath.Join(dir, "contacts.db"),
		OutputDir:   filepath.Join(dir, "quotes"),
		SnapshotDir: filepath.Join(dir, "snapshots"),
	}, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestContactsEndpoints(t *testing.T) {
	r := testServer(t).Router()

	rec := doJSON(t, r, http.MethodPost, "/api/contacts",
		contacts.Contact{Name: "Dana Voss", Email: "dv@acme.example"})
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	var created contacts.Contact
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == 0 {
		t.Fatal("created contact has no id")
	}

	rec = doJSON(t, r, http.MethodGet, "/api/contacts/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/contacts/99", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing contact status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/contacts", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Dana Voss") {
		t.Errorf("list status = %d body = %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, r, http.MethodDelete, "/api/contacts/1", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/api/contacts", contacts.Contact{Name: "NoMail"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid contact status = %d, want 400", rec.Code)
	}
}

func TestOEEEndpoint(t *testing.T) {
	r := testServer(t).Router()
	rec := doJSON(t, r, http.MethodPost, "/api/oee", oee.Inputs{
		RuntimeHours: 8, PlannedDowntimeMin: 30, TotalParts: 400, CycleTimeSec: 60, TotalScrap: 10,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var m oee.Metrics
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatal(err)
	}
	if m.Availability != 100 || m.Quality != 97.5 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestSnapshotEndpoints(t *testing.T) {
	r := testServer(t).Router()

	rec := doJSON(t, r, http.MethodPost, "/api/snapshot", map[string]any{
		"name":    "q2041",
		"variant": "final",
		"context": map[string]any{"data": map[string]any{"systemName": "Cell 7"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/snapshot/q2041", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("load status = %d: %s", rec.Code, rec.Body)
	}
	var got struct {
		Variant string         `json:"variant"`
		Context map[string]any `json:"context"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Variant != "final" {
		t.Errorf("variant = %q", got.Variant)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/snapshot/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing snapshot status = %d, want 404", rec.Code)
	}
}

func TestGenerateEndpoint(t *testing.T) {
	srv := testServer(t)
	r := srv.Router()

	template := filepath.Join(t.TempDir(), "template.docx")
	writeTemplateDocx(t, template)

	rec := doJSON(t, r, http.MethodPost, "/api/generate", map[string]any{
		"template": template,
		"output":   "q2041.docx",
		"context": map[string]any{
			"data": map[string]any{"systemName": "Cell 7"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(resp["path"]); err != nil {
		t.Errorf("generated file missing: %v", err)
	}

	pkg, err := ooxml.Open(resp["path"])
	if err != nil {
		t.Fatal(err)
	}
	defer pkg.Close()
	doc, _ := pkg.Document()
	if !strings.Contains(doc, "Cell 7") {
		t.Error("context not rendered into output")
	}
}

func TestGenerateWithoutTemplate(t *testing.T) {
	r := testServer(t).Router()
	rec := doJSON(t, r, http.MethodPost, "/api/generate", map[string]any{
		"context": map[string]any{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func writeTemplateDocx(t *testing.T, path string) {
	t.Helper()
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>System: {{ data.systemName }}</w:t></w:r></w:p></w:body></w:document>`
	rels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"/>`

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, content := range map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		ooxml.DocumentPart:    doc,
		ooxml.RelsPart:        rels,
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
}
