// Package render writes a flow graph in the formats the CLI and web UI offer.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/flowloom-cli/internal/flow"
)

// Format names an output encoding.
type Format string

const (
	Table    Format = "table"
	JSON     Format = "json"
	YAML     Format = "yaml"
	CSV      Format = "csv"
	Markdown Format = "md"
	HTML     Format = "html"
)

// Formats lists every supported format in help order.
var Formats = []Format{Table, JSON, YAML, CSV, Markdown, HTML}

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table", "text":
		return Table, nil
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "csv":
		return CSV, nil
	case "md", "markdown":
		return Markdown, nil
	case "html", "htm":
		return HTML, nil
	}
	return "", fmt.Errorf("unknown format %q (use table, json, yaml, csv, md or html)", s)
}

// FormatFromPath infers a format from an output file extension.
func FormatFromPath(path string) (Format, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" || ext == "txt" {
		return "", false
	}
	f, err := ParseFormat(ext)
	if err != nil {
		return "", false
	}
	return f, true
}

// Options tunes rendering.
type Options struct {
	// Title for the HTML chart and Markdown heading; DefaultTitle when empty.
	Title string
	// ChartID is the HTML element id; a random one when empty.
	ChartID string
	// Summary adds the narrative summary table to JSON and YAML output.
	Summary bool
}

// Write renders g to w in the given format.
func Write(w io.Writer, g *flow.Graph, format Format, opt Options) error {
	if g == nil {
		g = &flow.Graph{Labels: []string{}, Edges: []flow.Edge{}}
	}
	switch format {
	case Table, "":
		return writeTable(w, g)
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(newDocument(g, opt))
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(newDocument(g, opt)); err != nil {
			return err
		}
		return enc.Close()
	case CSV:
		return writeCSV(w, g)
	case Markdown:
		return writeMarkdown(w, g, opt)
	case HTML:
		return writeHTML(w, g, opt)
	}
	return fmt.Errorf("unknown format %q", format)
}

// Link is the renderer-facing edge triplet.
type Link struct {
	Source int     `json:"source" yaml:"source"`
	Target int     `json:"target" yaml:"target"`
	Value  float64 `json:"value" yaml:"value"`
}

// Document is the JSON/YAML shape of a graph.
type Document struct {
	Mode        flow.Mode `json:"mode" yaml:"mode"`
	Stages      []string  `json:"stages" yaml:"stages"`
	Measure     string    `json:"measure,omitempty" yaml:"measure,omitempty"`
	Labels      []string  `json:"labels" yaml:"labels"`
	Edges       []Link    `json:"edges" yaml:"edges"`
	RowsTotal   int       `json:"rows_total" yaml:"rows_total"`
	RowsUsed    int       `json:"rows_used" yaml:"rows_used"`
	RowsDropped int       `json:"rows_dropped" yaml:"rows_dropped"`
	Summary     any       `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// NewDocument converts g to its serializable form.
func NewDocument(g *flow.Graph, withSummary bool) Document {
	return newDocument(g, Options{Summary: withSummary})
}

func newDocument(g *flow.Graph, opt Options) Document {
	d := Document{
		Mode:        g.Mode,
		Stages:      g.Stages,
		Measure:     g.Measure,
		Labels:      g.Labels,
		Edges:       make([]Link, 0, len(g.Edges)),
		RowsTotal:   g.RowsTotal,
		RowsUsed:    g.RowsUsed,
		RowsDropped: g.RowsDropped,
	}
	if d.Labels == nil {
		d.Labels = []string{}
	}
	if d.Stages == nil {
		d.Stages = []string{}
	}
	for _, e := range g.Edges {
		d.Edges = append(d.Edges, Link{Source: e.Source, Target: e.Target, Value: e.Weight})
	}
	if opt.Summary {
		d.Summary = summaryRecords(g)
	}
	return d
}

// summaryRecords flattens the summary to plain maps so YAML keeps the column
// names single-split summaries are keyed by.
func summaryRecords(g *flow.Graph) []map[string]any {
	out := []map[string]any{}
	b, err := g.SummaryJSON()
	if err != nil {
		return out
	}
	_ = json.Unmarshal(b, &out)
	return out
}

// DefaultTitle describes the graph's column selection.
func DefaultTitle(g *flow.Graph) string {
	if g == nil {
		return "Flow"
	}
	if g.Mode == flow.SingleSplit {
		cat := ""
		if len(g.Stages) > 0 {
			cat = g.Stages[0]
		}
		return fmt.Sprintf("%s by %s", g.Measure, cat)
	}
	if len(g.Stages) == 0 {
		return "Flow"
	}
	return strings.Join(g.Stages, " → ")
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func stageLabel(g *flow.Graph, e flow.Edge) string {
	from, to := g.StageNames(e)
	return from + " → " + to
}

func writeTable(w io.Writer, g *flow.Graph) error {
	if len(g.Edges) == 0 {
		_, _ = fmt.Fprintln(w, "(0 links)")
		return nil
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Stage", "Source", "Target", "Value"})
	for _, e := range g.Edges {
		t.AppendRow(table.Row{stageLabel(g, e), g.Labels[e.Source], g.Labels[e.Target], formatNumber(e.Weight)})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 4, Align: text.AlignRight}})
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d links, %d nodes, %d/%d rows used)\n", len(g.Edges), len(g.Labels), g.RowsUsed, g.RowsTotal)
	return nil
}

func writeCSV(w io.Writer, g *flow.Graph) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"source", "target", "value"}); err != nil {
		return err
	}
	for _, e := range g.Edges {
		if err := cw.Write([]string{g.Labels[e.Source], g.Labels[e.Target], formatNumber(e.Weight)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeMarkdown(w io.Writer, g *flow.Graph, opt Options) error {
	title := opt.Title
	if title == "" {
		title = DefaultTitle(g)
	}
	_, _ = fmt.Fprintf(w, "## %s\n\n", escapeMarkdown(title))
	if len(g.Edges) == 0 {
		_, _ = fmt.Fprintln(w, "(0 links)")
		return nil
	}
	_, _ = fmt.Fprintln(w, "| Stage | Source | Target | Value |")
	_, _ = fmt.Fprintln(w, "| --- | --- | --- | ---: |")
	for _, e := range g.Edges {
		_, _ = fmt.Fprintf(w, "| %s | %s | %s | %s |\n",
			escapeMarkdown(stageLabel(g, e)), escapeMarkdown(g.Labels[e.Source]),
			escapeMarkdown(g.Labels[e.Target]), formatNumber(e.Weight))
	}
	return nil
}

func escapeMarkdown(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", `\|`)
}
