// Package bridge exposes the quote pipeline over a local HTTP API, the
// surface the desktop UI talks to.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hazyhaar/quotedoc/contacts"
	"github.com/hazyhaar/quotedoc/milestone"
	"github.com/hazyhaar/quotedoc/oee"
	"github.com/hazyhaar/quotedoc/pipeline"
	"github.com/hazyhaar/quotedoc/quotectx"
	"github.com/hazyhaar/quotedoc/snapshot"
)

// Server handles the bridge API. One instance serves all requests;
// document generations are independent of each other.
type Server struct {
	cfg  *Config
	log  *slog.Logger
	pipe *pipeline.Pipeline
	book *contacts.Store
}

func NewServer(cfg *Config, log *slog.Logger) (*Server, error) {
	cfg.defaults()
	if log == nil {
		log = slog.Default()
	}
	book, err := contacts.Open(cfg.ContactsDB)
	if err != nil {
		return nil, err
	}
	policy := quotectx.DefaultPolicy()
	policy.ListHeuristic = cfg.ListHeuristic
	pipe := pipeline.New(pipeline.Config{
		Log:               log,
		Policy:            &policy,
		NoImageCheckpoint: cfg.NoImageCheckpoint,
	})
	return &Server{cfg: cfg, log: log, pipe: pipe, book: book}, nil
}

func (s *Server) Close() error { return s.book.Close() }

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", s.handleGenerate)
		r.Get("/contacts", s.handleListContacts)
		r.Get("/contacts/{id}", s.handleGetContact)
		r.Post("/contacts", s.handlePutContact)
		r.Delete("/contacts/{id}", s.handleDeleteContact)
		r.Post("/oee", s.handleOEE)
		r.Post("/milestones", s.handleMilestones)
		r.Post("/snapshot", s.handleSaveSnapshot)
		r.Get("/snapshot/{name}", s.handleLoadSnapshot)
	})
	return r
}

type generateRequest struct {
	Context  quotectx.Tree `json:"context"`
	Output   string        `json:"output"`
	Template string        `json:"template"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	template := req.Template
	if template == "" {
		template = s.cfg.TemplatePath
	}
	if template == "" {
		httpError(w, http.StatusBadRequest, errors.New("no template configured or supplied"))
		return
	}
	name := req.Output
	if name == "" {
		name = "quote-" + uuid.NewString()
	}
	// The output name is a file name, never a path: the daemon owns the
	// output directory.
	name = filepath.Base(name)
	if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}

	out, err := s.pipe.Generate(r.Context(), template, filepath.Join(s.cfg.OutputDir, name), req.Context)
	if err != nil {
		s.log.Error("generate failed", "error", err)
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": out})
}

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	list, err := s.book.List(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []contacts.Contact{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetContact(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, fmt.Errorf("bad id: %w", err))
		return
	}
	c, err := s.book.Get(r.Context(), id)
	if errors.Is(err, contacts.ErrNotFound) {
		httpError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handlePutContact(w http.ResponseWriter, r *http.Request) {
	var c contacts.Contact
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		httpError(w, http.StatusBadRequest, fmt.Errorf("decode contact: %w", err))
		return
	}
	if c.Name == "" || c.Email == "" {
		httpError(w, http.StatusBadRequest, errors.New("contact needs name and email"))
		return
	}
	id, err := s.book.Put(r.Context(), c)
	if errors.Is(err, contacts.ErrNotFound) {
		httpError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	c.ID = id
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, fmt.Errorf("bad id: %w", err))
		return
	}
	if err := s.book.Delete(r.Context(), id); err != nil {
		if errors.Is(err, contacts.ErrNotFound) {
			httpError(w, http.StatusNotFound, err)
			return
		}
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOEE(w http.ResponseWriter, r *http.Request) {
	var in oee.Inputs
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpError(w, http.StatusBadRequest, fmt.Errorf("decode inputs: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, oee.Compute(in))
}

func (s *Server) handleMilestones(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Workbook string `json:"workbook"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	weeks, err := milestone.WeekOffsets(req.Workbook, s.log)
	if err != nil {
		httpError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, weeks)
}

type snapshotRequest struct {
	Name    string           `json:"name"`
	Variant snapshot.Variant `json:"variant"`
	Context quotectx.Tree    `json:"context"`
}

func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Name == "" {
		httpError(w, http.StatusBadRequest, errors.New("snapshot needs a name"))
		return
	}
	if err := os.MkdirAll(s.cfg.SnapshotDir, 0o755); err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	path := s.snapshotPath(req.Name)
	if err := snapshot.Save(req.Context, req.Variant, path); err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (s *Server) handleLoadSnapshot(w http.ResponseWriter, r *http.Request) {
	tree, variant, err := snapshot.Load(s.snapshotPath(chi.URLParam(r, "name")))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			httpError(w, http.StatusNotFound, err)
			return
		}
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"variant": variant, "context": tree})
}

func (s *Server) snapshotPath(name string) string {
	name = filepath.Base(name)
	if !strings.HasSuffix(name, ".xml") {
		name += ".xml"
	}
	return filepath.Join(s.cfg.SnapshotDir, name)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
