// Package render performs the single-pass template substitution: plain
// values and rich subdocument fragments are written into the package
// together, so nothing re-serializes a part after relationship-bearing
// content has been inserted.
package render

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/quotedoc/ooxml"
	"github.com/hazyhaar/quotedoc/quotectx"
	"github.com/hazyhaar/quotedoc/subdoc"
)

// Config carries renderer settings.
type Config struct {
	Log *slog.Logger

	// NoImageCheckpoint keeps a copy of the rendered package beside the
	// output, named with a _noimage suffix, before image resolution runs.
	NoImageCheckpoint bool
}

func (c *Config) defaults() {
	if c.Log == nil {
		c.Log = slog.Default()
	}
}

// Input is everything one render needs: the sanitized context for plain
// substitution and the prebuilt fragments keyed by lowercased placeholder
// name.
type Input struct {
	Context   quotectx.Tree
	Fragments map[string]*subdoc.Fragment
}

func (in *Input) fragment(name string) (*subdoc.Fragment, bool) {
	if in.Fragments == nil {
		return nil, false
	}
	if f, ok := in.Fragments[name]; ok {
		return f, true
	}
	f, ok := in.Fragments[strings.ToLower(name)]
	return f, ok
}

// Renderer substitutes placeholders in .docx templates.
type Renderer struct {
	cfg Config
}

func New(cfg Config) *Renderer {
	cfg.defaults()
	return &Renderer{cfg: cfg}
}

// Render copies the template, substitutes every placeholder part by part,
// and writes the result to outPath. Placeholders with no value stay in the
// output text so missing data is visible in the document instead of
// silently blank.
func (r *Renderer) Render(templatePath, outPath string, in *Input) error {
	pkg, err := ooxml.Open(templatePath)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	defer pkg.Close()

	parts, err := pkg.Parts()
	if err != nil {
		return err
	}
	var unresolved []string
	for _, partName := range parts {
		if !templatePartRe.MatchString(partName) {
			continue
		}
		part, err := pkg.Part(partName)
		if err != nil {
			return err
		}
		rendered, missing := r.renderPart(part, in)
		unresolved = append(unresolved, missing...)
		if rendered != part {
			if err := pkg.SetPart(partName, rendered); err != nil {
				return err
			}
		}
	}
	for _, name := range unresolved {
		r.cfg.Log.Warn("placeholder left unresolved", "placeholder", name)
	}

	if err := pkg.SaveTo(outPath); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if r.cfg.NoImageCheckpoint {
		if err := copyFile(outPath, CheckpointPath(outPath)); err != nil {
			r.cfg.Log.Warn("no-image checkpoint copy failed", "error", err)
		}
	}
	return nil
}

// renderPart walks paragraphs last to first so earlier byte offsets stay
// valid while later paragraphs are spliced.
func (r *Renderer) renderPart(part string, in *Input) (string, []string) {
	var missing []string
	paras := ooxml.Paragraphs(part)
	for i := len(paras) - 1; i >= 0; i-- {
		p := paras[i]
		text := p.Text()
		if !strings.Contains(text, "{{") && !strings.Contains(text, "{%") {
			continue
		}

		// A paragraph that is exactly one token is a fragment insertion
		// point when a fragment exists under that name.
		if m := soloTokenRe.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
			if frag, ok := in.fragment(m[1]); ok {
				repl := frag.XML
				if frag.Empty() {
					repl = ooxml.TextParagraph(p.Properties(), "")
				}
				part = p.Replace(part, repl)
				continue
			}
		}

		substituted := false
		newText := varTokenRe.ReplaceAllStringFunc(text, func(tok string) string {
			name := varTokenRe.FindStringSubmatch(tok)[1]
			if _, ok := in.fragment(name); ok {
				// Rich content cannot be inlined mid-paragraph; the
				// placeholder must stand alone.
				r.cfg.Log.Warn("rich placeholder not alone in its paragraph, skipping",
					"placeholder", name)
				return tok
			}
			v, ok := quotectx.Lookup(in.Context, name)
			if !ok {
				missing = append(missing, name)
				return tok
			}
			substituted = true
			return v
		})
		if m := tagTokenRe.FindAllStringSubmatch(newText, -1); m != nil {
			for _, t := range m {
				missing = append(missing, t[1])
			}
		}
		if substituted {
			part = p.Replace(part, ooxml.TextParagraph(p.Properties(), newText))
		}
	}
	return part, missing
}

// CheckpointPath names the diagnostic pre-image copy kept beside an
// output file.
func CheckpointPath(outPath string) string {
	ext := filepath.Ext(outPath)
	return strings.TrimSuffix(outPath, ext) + "_noimage" + ext
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
	_, err = io.Copy(out, in)
	return err
}
