package paginate

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeDoc replays a sequence of measurement snapshots: each inserted break
// advances to the next snapshot, standing in for the geometry shift a real
// insertion causes.
type fakeDoc struct {
	auto *fakeAuto
}

func (d *fakeDoc) Paragraphs() ([]ParaInfo, error) {
	return d.auto.snapshots[d.auto.snapshot], nil
}

func (d *fakeDoc) InsertPageBreakBefore(index int) error {
	d.auto.inserted = append(d.auto.inserted, index)
	if d.auto.snapshot < len(d.auto.snapshots)-1 {
		d.auto.snapshot++
	}
	return nil
}

func (d *fakeDoc) Save() error  { d.auto.saves++; return nil }
func (d *fakeDoc) Close() error { d.auto.closes++; return nil }

type fakeAuto struct {
	snapshots [][]ParaInfo
	snapshot  int
	inserted  []int
	opens     int
	failOpens int
	saves     int
	closes    int
}

func (a *fakeAuto) Open(ctx context.Context, path string) (Doc, error) {
	a.opens++
	if a.failOpens > 0 {
		a.failOpens--
		return nil, errors.New("automation busy")
	}
	return &fakeDoc{auto: a}, nil
}

func noSleep(time.Duration) {}

func TestRunFixesCrowdedHeading(t *testing.T) {
	auto := &fakeAuto{snapshots: [][]ParaInfo{
		{
			{Index: 0, Style: "Heading1", Page: 1, Y: 100},
			{Index: 1, Style: "Heading2", Page: 1, Y: 650},
			{Index: 2, Page: 2, Y: 80},
		},
		{
			{Index: 0, Style: "Heading1", Page: 1, Y: 100},
			{Index: 1, Style: "Heading2", Page: 2, Y: 72},
			{Index: 2, Page: 2, Y: 120},
		},
	}}
	cfg := Config{ThresholdInches: 8.5, Sleep: noSleep}
	if err := Run(context.Background(), auto, "q.docx", cfg); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(auto.inserted) != 1 || auto.inserted[0] != 1 {
		t.Errorf("inserted = %v, want [1]", auto.inserted)
	}
	if auto.saves != 1 {
		t.Errorf("saves = %d, want 1", auto.saves)
	}
	// Every open gets a matching close, converged pass included.
	if auto.closes != auto.opens {
		t.Errorf("opens = %d, closes = %d", auto.opens, auto.closes)
	}
}

func TestRunFixesSplitBoldRun(t *testing.T) {
	auto := &fakeAuto{snapshots: [][]ParaInfo{
		{
			{Index: 0, Page: 1, Y: 100},
			{Index: 1, Page: 1, Y: 700, BoldStart: true},
			{Index: 2, Page: 2, Y: 72},
		},
		{
			{Index: 0, Page: 1, Y: 100},
			{Index: 1, Page: 2, Y: 72, BoldStart: true},
			{Index: 2, Page: 2, Y: 110},
		},
	}}
	if err := Run(context.Background(), auto, "q.docx", Config{Sleep: noSleep}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(auto.inserted) != 1 || auto.inserted[0] != 1 {
		t.Errorf("inserted = %v, want [1]", auto.inserted)
	}
}

func TestRunOneInsertionPerPass(t *testing.T) {
	// Two crowded headings; only the first is fixed per pass, and the
	// second is found again on the following pass.
	auto := &fakeAuto{snapshots: [][]ParaInfo{
		{
			{Index: 0, Style: "Heading2", Page: 1, Y: 640},
			{Index: 1, Style: "Heading2", Page: 2, Y: 660},
		},
		{
			{Index: 0, Style: "Heading2", Page: 2, Y: 72},
			{Index: 1, Style: "Heading2", Page: 3, Y: 660},
		},
		{
			{Index: 0, Style: "Heading2", Page: 2, Y: 72},
			{Index: 1, Style: "Heading2", Page: 4, Y: 72},
		},
	}}
	if err := Run(context.Background(), auto, "q.docx", Config{Sleep: noSleep}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []int{0, 1}
	if len(auto.inserted) != len(want) {
		t.Fatalf("inserted = %v, want %v", auto.inserted, want)
	}
	for i := range want {
		if auto.inserted[i] != want[i] {
			t.Errorf("inserted[%d] = %d, want %d", i, auto.inserted[i], want[i])
		}
	}
}

func TestRunStopsAtPageCap(t *testing.T) {
	auto := &fakeAuto{snapshots: [][]ParaInfo{
		{
			{Index: 0, Page: 15, Style: "Heading1", Y: 700},
		},
	}}
	if err := Run(context.Background(), auto, "q.docx", Config{MaxPage: 14, Sleep: noSleep}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(auto.inserted) != 0 {
		t.Errorf("inserted beyond page cap: %v", auto.inserted)
	}
}

func TestRunSkipsTableParagraphs(t *testing.T) {
	auto := &fakeAuto{snapshots: [][]ParaInfo{
		{
			{Index: 0, Style: "Heading1", Page: 1, Y: 700, InTable: true},
		},
	}}
	if err := Run(context.Background(), auto, "q.docx", Config{Sleep: noSleep}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(auto.inserted) != 0 {
		t.Errorf("inserted inside a table: %v", auto.inserted)
	}
}

func TestRunRetriesTransientOpenFailures(t *testing.T) {
	var slept int
	auto := &fakeAuto{
		failOpens: 2,
		snapshots: [][]ParaInfo{{{Index: 0, Page: 1, Y: 100}}},
	}
	cfg := Config{Sleep: func(time.Duration) { slept++ }}
	if err := Run(context.Background(), auto, "q.docx", cfg); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if slept != 2 {
		t.Errorf("slept %d times, want 2", slept)
	}
}

func TestRunFailsAfterBoundedRetries(t *testing.T) {
	auto := &fakeAuto{failOpens: 100}
	cfg := Config{Retries: 2, Sleep: noSleep}
	if err := Run(context.Background(), auto, "q.docx", cfg); err == nil {
		t.Fatal("Run succeeded with automation permanently down")
	}
	if auto.opens != 3 {
		t.Errorf("opens = %d, want 3", auto.opens)
	}
}
