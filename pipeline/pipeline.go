// Package pipeline runs one quote-document generation end to end:
// sanitize the context, inspect the template, build subdocument fragments
// for the rich fields, render, resolve image markers, optionally paginate,
// then move the result into place. One request owns one scratch directory
// and one package file for its whole lifetime.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/quotedoc/images"
	"github.com/hazyhaar/quotedoc/paginate"
	"github.com/hazyhaar/quotedoc/quotectx"
	"github.com/hazyhaar/quotedoc/render"
	"github.com/hazyhaar/quotedoc/richtext"
	"github.com/hazyhaar/quotedoc/subdoc"
)

// Pipeline step names reported through the status callback, in order.
const (
	StepSanitize = "sanitize"
	StepInspect  = "inspect"
	StepFragment = "fragments"
	StepRender   = "render"
	StepImages   = "images"
	StepPaginate = "paginate"
	StepFinalize = "finalize"
)

// StatusFunc receives progress updates, invoked synchronously at each
// step. It must not block.
type StatusFunc func(step, detail string)

type Config struct {
	Log    *slog.Logger
	Status StatusFunc

	// Policy classifies context fields; zero value means DefaultPolicy.
	Policy *quotectx.Policy

	// Sizes overrides the image render-size policy.
	Sizes map[string]images.Size

	// NoImageCheckpoint keeps a pre-image copy beside the output.
	NoImageCheckpoint bool

	// Automation enables the pagination pass when non-nil.
	Automation        paginate.Automation
	PaginateThreshold float64
}

func (c *Config) defaults() {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.Status == nil {
		c.Status = func(string, string) {}
	}
	if c.Policy == nil {
		p := quotectx.DefaultPolicy()
		c.Policy = &p
	}
}

// Pipeline generates quote documents. Safe for reuse; each Generate call
// is independent.
type Pipeline struct {
	cfg       Config
	sanitizer *quotectx.Sanitizer
	builder   *subdoc.Builder
	resolver  *images.Resolver
}

func New(cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{
		cfg:       cfg,
		sanitizer: quotectx.NewSanitizer(*cfg.Policy, cfg.Log),
		builder:   subdoc.New(cfg.Log),
		resolver:  images.New(images.Config{Log: cfg.Log, Sizes: cfg.Sizes}),
	}
}

// Generate renders templatePath against raw into outPath. The output path
// always gets a .docx extension. Intermediate files live in a scratch
// directory that is removed on every path out of this function; the final
// write into outPath is atomic.
func (p *Pipeline) Generate(ctx context.Context, templatePath, outPath string, raw quotectx.Tree) (string, error) {
	outPath = ensureDocxExt(outPath)

	scratch, err := os.MkdirTemp("", "quotedoc-gen-")
	if err != nil {
		return "", fmt.Errorf("scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	p.cfg.Status(StepSanitize, "")
	sanitized := p.sanitizer.Sanitize(raw)

	p.cfg.Status(StepInspect, templatePath)
	markers, err := render.Inspect(templatePath, p.cfg.Log)
	if err != nil {
		return "", err
	}

	p.cfg.Status(StepFragment, "")
	frags, err := p.buildFragments(sanitized, markers)
	if err != nil {
		return "", err
	}

	p.cfg.Status(StepRender, "")
	intermediate := filepath.Join(scratch, "rendered.docx")
	r := render.New(render.Config{Log: p.cfg.Log})
	if err := r.Render(templatePath, intermediate, &render.Input{
		Context:   sanitized,
		Fragments: frags,
	}); err != nil {
		return "", err
	}
	if p.cfg.NoImageCheckpoint {
		if err := copyFile(intermediate, render.CheckpointPath(outPath)); err != nil {
			p.cfg.Log.Warn("no-image checkpoint copy failed", "error", err)
		}
	}

	p.cfg.Status(StepImages, "")
	if err := p.resolver.ResolveAll(intermediate, sanitized); err != nil {
		return "", err
	}

	if p.cfg.Automation != nil {
		p.cfg.Status(StepPaginate, "")
		err := paginate.Run(ctx, p.cfg.Automation, intermediate, paginate.Config{
			Log:             p.cfg.Log,
			ThresholdInches: p.cfg.PaginateThreshold,
		})
		if err != nil {
			return "", err
		}
	}

	p.cfg.Status(StepFinalize, outPath)
	if err := moveFile(intermediate, outPath); err != nil {
		return "", fmt.Errorf("finalize %s: %w", outPath, err)
	}
	return outPath, nil
}

// buildFragments normalizes every rich field present in the context and
// builds its subdocument using the marker discovered for it in the
// template. A rich field with no marker is skipped: nothing in the
// template can host it.
func (p *Pipeline) buildFragments(sanitized quotectx.Tree, markers map[string]render.Marker) (map[string]*subdoc.Fragment, error) {
	lowMarkers := make(map[string]render.Marker, len(markers))
	for name, m := range markers {
		low := strings.ToLower(name)
		if _, seen := lowMarkers[low]; !seen {
			lowMarkers[low] = m
		}
	}

	frags := make(map[string]*subdoc.Fragment)
	for field, value := range p.sanitizer.RichLeaves(sanitized) {
		marker, ok := lowMarkers[field]
		if !ok {
			p.cfg.Log.Warn("rich field has no template placeholder", "field", field)
			continue
		}
		frag, err := p.builder.Build(richtext.Normalize(value), marker.Level, marker.Style)
		if err != nil {
			return nil, fmt.Errorf("fragment for %s: %w", field, err)
		}
		frags[field] = frag
	}
	return frags, nil
}

func ensureDocxExt(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".docx") {
		return path
	}
	return path + ".docx"
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// moveFile renames when it can, and falls back to copy-then-sync across
// filesystems. Either way dst never holds a half-written package.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	tmp := dst + ".part"
	if err := copyFile(src, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
