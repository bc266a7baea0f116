// Package flow turns tabular rows into the node/link structure a Sankey
// renderer consumes.
package flow

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects how rows become edges.
type Mode string

const (
	// MultiStage chains two or more categorical columns; weights are row counts.
	MultiStage Mode = "multi-stage"
	// SingleSplit fans a synthetic root out to one categorical column; weights
	// are sums of a numeric measure.
	SingleSplit Mode = "single-split"
)

// DefaultRootLabel names the synthetic root node in single-split mode.
const DefaultRootLabel = "Total"

// ErrInvalidInput marks user-correctable selection errors. No partial graph
// accompanies it.
var ErrInvalidInput = errors.New("invalid input")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ParseMode accepts the canonical names and a few short aliases. An empty
// string yields an empty Mode, which Build infers from the measure.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "multi-stage", "multistage", "multi", "stages":
		return MultiStage, nil
	case "single-split", "split", "single":
		return SingleSplit, nil
	default:
		return "", invalidf("unknown mode %q (use multi-stage or single-split)", s)
	}
}

// Spec is the caller's column selection.
type Spec struct {
	Mode Mode
	// Stages lists the flow columns left to right. In single-split mode it
	// holds exactly the category column.
	Stages []string
	// Measure is the numeric column summed in single-split mode.
	Measure string
	// RootLabel overrides DefaultRootLabel in single-split mode.
	RootLabel string
}

// Edge links two label indices. Stage is the index of the source stage, so an
// edge belongs to the pair (Stages[Stage], Stages[Stage+1]).
type Edge struct {
	Source int     `json:"source"`
	Target int     `json:"target"`
	Weight float64 `json:"value"`
	Stage  int     `json:"stage"`
}

// Graph is the built flow. Labels and Edges are the renderer contract; the
// remaining fields describe how it was derived.
type Graph struct {
	Mode        Mode     `json:"mode"`
	Stages      []string `json:"stages"`
	Measure     string   `json:"measure,omitempty"`
	Labels      []string `json:"labels"`
	Edges       []Edge   `json:"edges"`
	RowsTotal   int      `json:"rows_total"`
	RowsUsed    int      `json:"rows_used"`
	RowsDropped int      `json:"rows_dropped"`
}

// Empty reports whether the graph has no nodes.
func (g *Graph) Empty() bool { return g == nil || len(g.Labels) == 0 }

// StageTotals sums edge weights per consecutive stage pair. Single-split
// graphs have one pair (root to category).
func (g *Graph) StageTotals() []float64 {
	if g == nil {
		return nil
	}
	n := 1
	if g.Mode == MultiStage && len(g.Stages) > 1 {
		n = len(g.Stages) - 1
	}
	out := make([]float64, n)
	for _, e := range g.Edges {
		if e.Stage >= 0 && e.Stage < n {
			out[e.Stage] += e.Weight
		}
	}
	return out
}

// Total is the sum of all edge weights.
func (g *Graph) Total() float64 {
	if g == nil {
		return 0
	}
	var sum float64
	for _, e := range g.Edges {
		sum += e.Weight
	}
	return sum
}

// StageNames returns the source and target column names for the edge's pair.
// The root of a single-split graph is reported as its label.
func (g *Graph) StageNames(e Edge) (from, to string) {
	if g.Mode == SingleSplit {
		root := ""
		if len(g.Labels) > 0 {
			root = g.Labels[0]
		}
		cat := ""
		if len(g.Stages) > 0 {
			cat = g.Stages[0]
		}
		return root, cat
	}
	if e.Stage >= 0 && e.Stage+1 < len(g.Stages) {
		return g.Stages[e.Stage], g.Stages[e.Stage+1]
	}
	return "", ""
}
