package render

import (
	"html/template"
	"io"

	"github.com/google/uuid"

	"github.com/KaramelBytes/flowloom-cli/internal/flow"
)

// PlotlyCDN is the script the chart page loads.
const PlotlyCDN = "https://cdn.plot.ly/plotly-2.35.2.min.js"

// Node styling for the Sankey trace.
const (
	nodePad       = 20
	nodeThickness = 20
	lineWidth     = 0.5
	fontSize      = 12
)

// TraceNode styles the Sankey nodes.
type TraceNode struct {
	Pad       int            `json:"pad"`
	Thickness int            `json:"thickness"`
	Line      map[string]any `json:"line"`
	Label     []string       `json:"label"`
}

// TraceLink holds the link columns.
type TraceLink struct {
	Source []int     `json:"source"`
	Target []int     `json:"target"`
	Value  []float64 `json:"value"`
}

// Trace is a Plotly Sankey trace.
type Trace struct {
	Type        string    `json:"type"`
	Orientation string    `json:"orientation"`
	Node        TraceNode `json:"node"`
	Link        TraceLink `json:"link"`
}

type chartPage struct {
	Title    string
	ChartID  string
	Script   string
	Empty    bool
	Trace    Trace
	Layout   map[string]any
	Subtitle string
}

var chartTemplate = template.Must(template.New("chart").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="{{.Script}}"></script>
<style>body{font-family:sans-serif;margin:2rem}#{{.ChartID}}{width:100%;height:600px}</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Subtitle}}</p>
{{if .Empty}}<p>(0 links)</p>{{else}}<div id="{{.ChartID}}"></div>
<script>
Plotly.newPlot({{.ChartID}}, [{{.Trace}}], {{.Layout}}, {responsive: true});
</script>{{end}}
</body>
</html>
`))

// SankeyTrace returns the Plotly trace for g. The web UI reuses it to draw
// the chart client-side.
func SankeyTrace(g *flow.Graph) Trace {
	tr := Trace{
		Type:        "sankey",
		Orientation: "h",
		Node: TraceNode{
			Pad:       nodePad,
			Thickness: nodeThickness,
			Line:      map[string]any{"color": "black", "width": lineWidth},
			Label:     append([]string{}, g.Labels...),
		},
		Link: TraceLink{Source: []int{}, Target: []int{}, Value: []float64{}},
	}
	for _, e := range g.Edges {
		tr.Link.Source = append(tr.Link.Source, e.Source)
		tr.Link.Target = append(tr.Link.Target, e.Target)
		tr.Link.Value = append(tr.Link.Value, e.Weight)
	}
	return tr
}

// SankeyLayout returns the Plotly layout for a chart titled title.
func SankeyLayout(title string) map[string]any {
	return map[string]any{
		"title": map[string]any{"text": title},
		"font":  map[string]any{"size": fontSize},
	}
}

func writeHTML(w io.Writer, g *flow.Graph, opt Options) error {
	title := opt.Title
	if title == "" {
		title = DefaultTitle(g)
	}
	id := opt.ChartID
	if id == "" {
		id = "sankey-" + uuid.NewString()
	}
	return chartTemplate.Execute(w, chartPage{
		Title:    title,
		ChartID:  id,
		Script:   PlotlyCDN,
		Empty:    len(g.Edges) == 0,
		Trace:    SankeyTrace(g),
		Layout:   SankeyLayout(title),
		Subtitle: subtitle(g),
	})
}

func subtitle(g *flow.Graph) string {
	if g.RowsDropped == 0 {
		return formatNumber(float64(g.RowsUsed)) + " rows"
	}
	return formatNumber(float64(g.RowsUsed)) + " rows used, " + formatNumber(float64(g.RowsDropped)) + " dropped for missing values"
}
