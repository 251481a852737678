// Package milestone derives project milestone week offsets from the lead
// time spreadsheet attached to a quote's cost workbook.
package milestone

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
)

// Leadtime grid layout: stage names in column B, start and end date
// serials in F and G, rows 10 through 28.
const (
	leadtimeSheet = "Leadtime"
	firstRow      = 10
	lastRow       = 28
	stageCol      = "B"
	startCol      = "F"
	endCol        = "G"
)

// Results are week offsets from project start, one per standard milestone.
type Results struct {
	CustomerKickoff    int `json:"customerKickoff"`
	DesignAcceptance   int `json:"designAcceptance"`
	BuildStart         int `json:"buildStart"`
	CommissioningStart int `json:"commissioningStart"`
	FATStart           int `json:"fatStart"`
	Delivery           int `json:"delivery"`
}

// stageRow is one usable Leadtime row.
type stageRow struct {
	stage string
	start float64
	end   float64
}

// Calculate reads the Leadtime sheet and derives the milestones. Rows with
// blank or non-numeric dates are skipped with a warning; fewer than 18
// usable rows is an error because the milestone formulas index that deep.
func Calculate(file string, log *slog.Logger) (Results, error) {
	if log == nil {
		log = slog.Default()
	}
	wb, err := openWorkbook(file)
	if err != nil {
		return Results{}, err
	}
	defer wb.Close()

	rows, err := wb.rows(leadtimeSheet)
	if err != nil {
		return Results{}, fmt.Errorf("milestones from %s: %w", file, err)
	}

	var stages []stageRow
	for r := firstRow; r <= lastRow; r++ {
		cols, ok := rows[r]
		if !ok {
			continue
		}
		start, err1 := strconv.ParseFloat(cols[startCol], 64)
		end, err2 := strconv.ParseFloat(cols[endCol], 64)
		if err1 != nil || err2 != nil {
			log.Warn("leadtime row skipped, blank or non-numeric dates", "row", r)
			continue
		}
		stage := cols[stageCol]
		if stage == "" {
			stage = "Row" + strconv.Itoa(r)
		}
		stages = append(stages, stageRow{stage: stage, start: start, end: end})
	}
	if len(stages) == 0 {
		return Results{}, fmt.Errorf("milestones from %s: no usable rows in %s", file, leadtimeSheet)
	}

	d := weekOffsets(stages)
	if len(d) < 18 {
		return Results{}, fmt.Errorf("milestones from %s: %d usable rows, need 18", file, len(d))
	}

	return Results{
		CustomerKickoff:    1,
		DesignAcceptance:   max(d[1], d[2]) + d[3] - 1,
		BuildStart:         d[9] - 1,
		CommissioningStart: d[11] - 1,
		FATStart:           d[14],
		Delivery:           d[17],
	}, nil
}

// WeekOffsets is the context-merge form of Calculate: milestone label to
// week number, ready to land under data.projectMilestones.
func WeekOffsets(file string, log *slog.Logger) (map[string]int, error) {
	res, err := Calculate(file, log)
	if err != nil {
		return nil, err
	}
	return map[string]int{
		"customerKickoff":    res.CustomerKickoff,
		"designAcceptance":   res.DesignAcceptance,
		"buildStart":         res.BuildStart,
		"commissioningStart": res.CommissioningStart,
		"fatStart":           res.FATStart,
		"delivery":           res.Delivery,
	}, nil
}

// ProjectCost reads the total project cost from Summary!J306 of the cost
// workbook.
func ProjectCost(file string) (float64, error) {
	wb, err := openWorkbook(file)
	if err != nil {
		return 0, err
	}
	defer wb.Close()

	rows, err := wb.rows("Summary")
	if err != nil {
		return 0, fmt.Errorf("project cost from %s: %w", file, err)
	}
	raw := rows[306]["J"]
	cost, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("project cost from %s: bad value %q in Summary!J306", file, raw)
	}
	return cost, nil
}

// weekOffsets converts each stage's end date to whole weeks after the
// first stage's start date.
func weekOffsets(stages []stageRow) []int {
	projectStart := stages[0].start
	out := make([]int, len(stages))
	for i, s := range stages {
		days := s.end - projectStart
		if days > 0 {
			out[i] = int(math.Ceil(days / 7))
		}
	}
	return out
}
