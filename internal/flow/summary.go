package flow

import (
	"bytes"
	"encoding/json"
)

// SplitRow is one category total in a single-split summary. It serializes as
// {"<category column>": Category, "<measure column>": Total}.
type SplitRow struct {
	Category string
	Total    float64

	categoryCol string
	measureCol  string
}

func (r SplitRow) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, kv := range []struct {
		k string
		v any
	}{{r.categoryCol, r.Category}, {r.measureCol, r.Total}} {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(kv.k)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.v)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// LinkRow is one edge of a multi-stage summary.
type LinkRow struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Source string  `json:"source"`
	Target string  `json:"target"`
	Count  float64 `json:"count"`
}

// Summary returns the aggregate table handed to the narrative generator:
// []SplitRow for single-split graphs, []LinkRow for multi-stage ones. Rows
// follow edge order.
func (g *Graph) Summary() any {
	if g == nil {
		return []LinkRow{}
	}
	if g.Mode == SingleSplit {
		out := make([]SplitRow, 0, len(g.Edges))
		cat := ""
		if len(g.Stages) > 0 {
			cat = g.Stages[0]
		}
		for _, e := range g.Edges {
			out = append(out, SplitRow{
				Category:    g.Labels[e.Target],
				Total:       e.Weight,
				categoryCol: cat,
				measureCol:  g.Measure,
			})
		}
		return out
	}
	out := make([]LinkRow, 0, len(g.Edges))
	for _, e := range g.Edges {
		from, to := g.StageNames(e)
		out = append(out, LinkRow{
			From:   from,
			To:     to,
			Source: g.Labels[e.Source],
			Target: g.Labels[e.Target],
			Count:  e.Weight,
		})
	}
	return out
}

// SummaryJSON is Summary encoded as compact JSON.
func (g *Graph) SummaryJSON() ([]byte, error) {
	return json.Marshal(g.Summary())
}
