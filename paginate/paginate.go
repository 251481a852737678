// Package paginate is the layout-polish pass: it measures paragraph
// geometry through a host word-processor automation surface and inserts
// page breaks where headings crowd the bottom of a page or a bold-led run
// straddles a page boundary. The automation surface only exists inside the
// host environment, so it is taken as an interface.
package paginate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ParaInfo is one paragraph's measured geometry.
type ParaInfo struct {
	Index     int
	Style     string
	Page      int
	Y         float64 // points from the top of the page
	BoldStart bool
	InTable   bool
}

// Doc is one open document under automation.
type Doc interface {
	Paragraphs() ([]ParaInfo, error)
	InsertPageBreakBefore(index int) error
	Save() error
	Close() error
}

// Automation opens documents in the host word processor.
type Automation interface {
	Open(ctx context.Context, path string) (Doc, error)
}

type Config struct {
	Log *slog.Logger

	// ThresholdInches is the vertical offset below which a heading is
	// considered crowded against the bottom of its page.
	ThresholdInches float64

	// MaxPage stops the scan; documents longer than this are out of the
	// polish pass's scope.
	MaxPage int

	// Retries and Backoff bound recovery from transient automation
	// failures.
	Retries int
	Backoff time.Duration

	// Sleep is swappable for tests.
	Sleep func(time.Duration)
}

func (c *Config) defaults() {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.ThresholdInches <= 0 {
		c.ThresholdInches = 8.5
	}
	if c.MaxPage <= 0 {
		c.MaxPage = 14
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 750 * time.Millisecond
	}
	if c.Sleep == nil {
		c.Sleep = time.Sleep
	}
}

// maxPasses is a hard stop against oscillating geometry; a healthy
// document converges in a handful of passes.
const maxPasses = 50

// Run repeatedly reopens the document, measures, and fixes at most one
// spot per pass. One insertion shifts everything after it, so all
// measurements from the same pass are stale the moment a break goes in.
// The loop ends when a full pass finds nothing to fix.
func Run(ctx context.Context, auto Automation, path string, cfg Config) error {
	cfg.defaults()
	threshold := cfg.ThresholdInches * 72

	for pass := 0; pass < maxPasses; pass++ {
		fixed, err := runPass(ctx, auto, path, cfg, threshold)
		if err != nil {
			return err
		}
		if !fixed {
			cfg.Log.Info("pagination converged", "passes", pass+1)
			return nil
		}
	}
	return fmt.Errorf("paginate %s: no convergence after %d passes", path, maxPasses)
}

func runPass(ctx context.Context, auto Automation, path string, cfg Config, threshold float64) (bool, error) {
	doc, err := open(ctx, auto, path, cfg)
	if err != nil {
		return false, err
	}
	defer doc.Close()

	paras, err := doc.Paragraphs()
	if err != nil {
		return false, fmt.Errorf("measure %s: %w", path, err)
	}

	idx, reason := findBreakPoint(paras, threshold, cfg.MaxPage)
	if idx < 0 {
		return false, nil
	}
	cfg.Log.Info("inserting page break", "paragraph", idx, "reason", reason)
	if err := doc.InsertPageBreakBefore(idx); err != nil {
		return false, fmt.Errorf("insert break before %d: %w", idx, err)
	}
	if err := doc.Save(); err != nil {
		return false, fmt.Errorf("save %s: %w", path, err)
	}
	return true, nil
}

// findBreakPoint returns the first paragraph that needs a break in front
// of it, or -1. Two triggers: a heading sitting below the crowding
// threshold on its page, and a bold-led paragraph whose successor appears
// higher up (it flowed onto the next page mid-run).
func findBreakPoint(paras []ParaInfo, threshold float64, maxPage int) (int, string) {
	for i, p := range paras {
		if p.Page > maxPage {
			return -1, ""
		}
		if p.InTable {
			continue
		}
		if isHeading(p.Style) && p.Y > threshold {
			return i, "crowded heading"
		}
		if p.BoldStart && i+1 < len(paras) && paras[i+1].Y < p.Y && !paras[i+1].InTable {
			return i, "split bold run"
		}
	}
	return -1, ""
}

func isHeading(style string) bool {
	return strings.HasPrefix(style, "Heading")
}

// open retries transient automation failures with a fixed backoff before
// giving up.
func open(ctx context.Context, auto Automation, path string, cfg Config) (Doc, error) {
	var lastErr error
	for attempt := 0; attempt <= cfg.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := auto.Open(ctx, path)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		cfg.Log.Warn("automation open failed", "attempt", attempt+1, "error", err)
		if attempt < cfg.Retries {
			cfg.Sleep(cfg.Backoff)
		}
	}
	return nil, fmt.Errorf("open %s under automation: %w", path, lastErr)
}
