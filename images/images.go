// Package images resolves [[Image: key]] markers in a rendered package:
// each marker paragraph is replaced by an inline drawing embedding the
// image file the context points at. The work happens at the package-XML
// level so relationship ids written during rendering stay untouched.
package images

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"regexp"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/hazyhaar/quotedoc/ooxml"
	"github.com/hazyhaar/quotedoc/quotectx"
)

var markerRe = regexp.MustCompile(`(?i)\[\[\s*image[:\s]\s*([^\]]+?)\s*\]\]`)

// Size bounds an image's rendered extent in millimetres.
type Size struct {
	WidthMM  float64
	HeightMM float64
}

// DefaultSizes is the render-size policy keyed by short image key, the
// dotted path with the root namespace stripped, lowercased. Keys absent
// here render at the image's natural size.
func DefaultSizes() map[string]Size {
	return map[string]Size{
		"customercontact.logo":   {127, 45.72},
		"titleimage":             {95.25, 57.15},
		"systemlayout.elevation": {158.75, 152.4},
		"systemlayout.end":       {158.75, 152.4},
		"systemlayout.iso":       {158.75, 152.4},
		"systemlayout.top":       {158.75, 152.4},
		"systemlayout.title":     {95.25, 57.15},
	}
}

type Config struct {
	Log        *slog.Logger
	Sizes      map[string]Size
	DefaultDPI float64
}

func (c *Config) defaults() {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.Sizes == nil {
		c.Sizes = DefaultSizes()
	}
	if c.DefaultDPI <= 0 {
		c.DefaultDPI = 96
	}
}

// Resolver replaces image markers in rendered packages.
type Resolver struct {
	cfg Config
}

func New(cfg Config) *Resolver {
	cfg.defaults()
	return &Resolver{cfg: cfg}
}

// ResolveAll rewrites every resolvable image marker in the package at
// path, in place. A marker whose key has no usable file or whose image
// cannot be decoded is logged and left in the text; the rest of the
// document still renders. The package is only rewritten when at least one
// marker resolved.
func (r *Resolver) ResolveAll(path string, ctx quotectx.Tree) error {
	pkg, err := ooxml.Open(path)
	if err != nil {
		return fmt.Errorf("resolve images: %w", err)
	}
	defer pkg.Close()

	doc, err := pkg.Document()
	if err != nil {
		return err
	}

	changed := false
	docPrID := ooxml.NextDocPrID(doc)
	paras := ooxml.Paragraphs(doc)
	for i := len(paras) - 1; i >= 0; i-- {
		p := paras[i]
		m := markerRe.FindStringSubmatch(p.Text())
		if m == nil {
			continue
		}
		key := m[1]
		src, ok := r.sourcePath(ctx, key)
		if !ok {
			r.cfg.Log.Warn("image marker has no usable file, leaving marker", "key", key)
			continue
		}
		cx, cy, err := r.extent(src, key)
		if err != nil {
			r.cfg.Log.Warn("image unreadable, leaving marker", "key", key, "path", src, "error", err)
			continue
		}

		media, err := pkg.AddMedia(src)
		if err != nil {
			return fmt.Errorf("image %s: %w", key, err)
		}
		rid, err := pkg.AddImageRelationship(media)
		if err != nil {
			return fmt.Errorf("image %s: %w", key, err)
		}
		doc = p.Replace(doc, ooxml.DrawingParagraph(p.Properties(), rid, cx, cy, docPrID, key))
		docPrID++
		changed = true
		r.cfg.Log.Info("image marker resolved", "key", key, "media", media, "rid", rid)
	}

	if !changed {
		return nil
	}
	if err := pkg.SetDocument(doc); err != nil {
		return err
	}
	if err := pkg.ValidateRels(); err != nil {
		return err
	}
	return pkg.Save()
}

// sourcePath resolves a marker key to an existing file through the
// context's case-tolerant lookup order.
func (r *Resolver) sourcePath(ctx quotectx.Tree, key string) (string, bool) {
	v, ok := quotectx.Lookup(ctx, key)
	if !ok {
		return "", false
	}
	if _, err := os.Stat(v); err != nil {
		return "", false
	}
	return v, true
}

// extent computes the drawing extent in EMU: bounded fit for keys in the
// size policy, natural size via DPI metadata otherwise.
func (r *Resolver) extent(src, key string) (int64, int64, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, 0, err
	}
	cfg, _, err := image.DecodeConfig(f)
	f.Close()
	if err != nil {
		return 0, 0, fmt.Errorf("decode: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("degenerate dimensions %dx%d", cfg.Width, cfg.Height)
	}

	if bounds, ok := r.cfg.Sizes[shortKey(key)]; ok {
		w, h := fitWithin(cfg.Width, cfg.Height, bounds)
		return ooxml.EMUFromMM(w), ooxml.EMUFromMM(h), nil
	}

	dpi := readDPI(src, r.cfg.DefaultDPI)
	return ooxml.EMUFromPixels(cfg.Width, dpi), ooxml.EMUFromPixels(cfg.Height, dpi), nil
}

// fitWithin scales pixel dimensions to the largest size that fits the
// bounds while preserving aspect ratio. Returns millimetres.
func fitWithin(wPx, hPx int, bounds Size) (float64, float64) {
	scale := bounds.WidthMM / float64(wPx)
	if s := bounds.HeightMM / float64(hPx); s < scale {
		scale = s
	}
	return float64(wPx) * scale, float64(hPx) * scale
}

func shortKey(key string) string {
	return strings.ToLower(strings.TrimPrefix(key, quotectx.RootKey+"."))
}
