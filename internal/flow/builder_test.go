package flow

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/flowloom-cli/internal/dataset"
)

func table(header []string, rows ...[]string) *dataset.Table {
	return dataset.FromRecords("t.csv", header, rows, dataset.DefaultOptions())
}

func TestBuildStagesExample(t *testing.T) {
	tab := table([]string{"A", "B"}, []string{"x", "p"}, []string{"x", "q"}, []string{"y", "p"})

	g, err := BuildStages(tab, []string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "p", "q"}, g.Labels)
	assert.Equal(t, []Edge{
		{Source: 0, Target: 2, Weight: 1},
		{Source: 0, Target: 3, Weight: 1},
		{Source: 1, Target: 2, Weight: 1},
	}, g.Edges)
	assert.Equal(t, MultiStage, g.Mode)
	assert.Equal(t, 3, g.RowsUsed)
	assert.Zero(t, g.RowsDropped)
}

func TestBuildSplitExample(t *testing.T) {
	tab := table([]string{"Product", "Revenue"},
		[]string{"X", "10"}, []string{"Y", "5"}, []string{"X", "3"})

	g, err := BuildSplit(tab, "Product", "Revenue", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Total", "X", "Y"}, g.Labels)
	assert.Equal(t, []Edge{
		{Source: 0, Target: 1, Weight: 13},
		{Source: 0, Target: 2, Weight: 5},
	}, g.Edges)
	assert.Equal(t, []float64{18}, g.StageTotals())

	js, err := g.SummaryJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"Product":"X","Revenue":13},{"Product":"Y","Revenue":5}]`, string(js))
}

func TestBuildRejectsInvalidSelections(t *testing.T) {
	tab := table([]string{"A", "B", "N"}, []string{"x", "p", "1"}, []string{"y", "q", "oops"})

	cases := map[string]Spec{
		"one stage":             {Mode: MultiStage, Stages: []string{"A"}},
		"no stages":             {Mode: MultiStage},
		"unknown column":        {Mode: MultiStage, Stages: []string{"A", "Z"}},
		"repeated column":       {Mode: MultiStage, Stages: []string{"A", "A"}},
		"column case differs":   {Mode: MultiStage, Stages: []string{"a", "B"}},
		"measure in multi":      {Mode: MultiStage, Stages: []string{"A", "B"}, Measure: "N"},
		"split two categories":  {Mode: SingleSplit, Stages: []string{"A", "B"}, Measure: "N"},
		"split same column":     {Mode: SingleSplit, Stages: []string{"N"}, Measure: "N"},
		"split missing measure": {Mode: SingleSplit, Stages: []string{"A"}, Measure: "Z"},
		"split text measure":    {Mode: SingleSplit, Stages: []string{"A"}, Measure: "N"},
		"split root collides":   {Mode: SingleSplit, Stages: []string{"A"}, Measure: "N", RootLabel: "x"},
		"unknown mode":          {Mode: "circular", Stages: []string{"A", "B"}},
	}
	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			g, err := Build(tab, spec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput), "got %v", err)
			assert.Nil(t, g)
		})
	}
}

func TestMissingValuesDropWholeRow(t *testing.T) {
	tab := table([]string{"A", "B", "C"},
		[]string{"x", "p", "u"},
		[]string{"", "q", "u"},
		[]string{"z", "NA", "v"},
		[]string{"x", "p", "v"},
	)
	g, err := BuildStages(tab, []string{"A", "B", "C"})
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "p", "u", "v"}, g.Labels, "z and q only occur in dropped rows")
	assert.Equal(t, 2, g.RowsUsed)
	assert.Equal(t, 2, g.RowsDropped)
	assert.Equal(t, []float64{2, 2}, g.StageTotals())
	for _, e := range g.Edges {
		assert.Positive(t, e.Weight)
	}
}

func TestEmptyResultIsValid(t *testing.T) {
	tab := table([]string{"A", "B"}, []string{"x", ""}, []string{"", "p"})
	g, err := BuildStages(tab, []string{"A", "B"})
	require.NoError(t, err)
	assert.True(t, g.Empty())
	assert.Empty(t, g.Edges)
	assert.NotNil(t, g.Labels)

	split, err := BuildSplit(table([]string{"P", "R"}), "P", "R", "All")
	require.NoError(t, err)
	assert.True(t, split.Empty())

	js, err := split.SummaryJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(js))
}

func TestNumericLabelsCollapse(t *testing.T) {
	tab := table([]string{"From", "To"},
		[]string{"10", "b"}, []string{"10.0", "a"}, []string{"2", "a"}, []string{"a", "10"})
	g, err := BuildStages(tab, []string{"From", "To"})
	require.NoError(t, err)

	assert.Equal(t, []string{"10", "2", "a", "b"}, g.Labels)
	// Numbers sort before text and ascend by value: 2 < 10 < "a".
	assert.Equal(t, []Edge{
		{Source: 1, Target: 2, Weight: 1},
		{Source: 0, Target: 2, Weight: 1},
		{Source: 0, Target: 3, Weight: 1},
		{Source: 2, Target: 0, Weight: 1},
	}, g.Edges)
}

func TestMultiStageEdgesOnlyBetweenConsecutiveStages(t *testing.T) {
	tab := table([]string{"Source", "Channel", "Outcome"},
		[]string{"web", "ads", "won"},
		[]string{"web", "email", "lost"},
		[]string{"store", "ads", "won"},
		[]string{"web", "ads", "won"},
	)
	g, err := Build(tab, Spec{Stages: []string{"Source", "Channel", "Outcome"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"web", "store", "ads", "email", "won", "lost"}, g.Labels)
	stageOf := map[string]int{"web": 0, "store": 0, "ads": 1, "email": 1, "won": 2, "lost": 2}
	for _, e := range g.Edges {
		assert.Equal(t, stageOf[g.Labels[e.Source]], e.Stage)
		assert.Equal(t, stageOf[g.Labels[e.Target]], e.Stage+1)
	}
	assert.Equal(t, []float64{4, 4}, g.StageTotals())

	rows, ok := g.Summary().([]LinkRow)
	require.True(t, ok)
	assert.Equal(t, LinkRow{From: "Source", To: "Channel", Source: "store", Target: "ads", Count: 1}, rows[0])
	assert.Equal(t, LinkRow{From: "Channel", To: "Outcome", Source: "ads", Target: "won", Count: 3}, rows[3])
}

func TestSplitKeepsSignAndDropsIncompleteRows(t *testing.T) {
	tab := table([]string{"Region", "Delta"},
		[]string{"north", "5"},
		[]string{"south", "-7.5"},
		[]string{"north", "-5"},
		[]string{"east", ""},
		[]string{"", "3"},
	)
	g, err := Build(tab, Spec{Mode: SingleSplit, Stages: []string{"Region"}, Measure: "Delta", RootLabel: "Net"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Net", "north", "south"}, g.Labels)
	assert.Equal(t, []string{"Region"}, g.Stages)
	assert.Equal(t, "Delta", g.Measure)
	assert.Equal(t, 3, g.RowsUsed)
	assert.Equal(t, []Edge{{Source: 0, Target: 1, Weight: 0}, {Source: 0, Target: 2, Weight: -7.5}}, g.Edges)
}

func TestBuildIsDeterministicAndOrderIndependent(t *testing.T) {
	records := [][]string{
		{"a", "x", "1"}, {"b", "y", "2"}, {"a", "y", "3"}, {"c", "x", "NA"},
		{"b", "x", "4"}, {"a", "x", "5"}, {"", "z", "6"}, {"c", "z", "7"},
	}
	header := []string{"S1", "S2", "S3"}
	base, err := BuildStages(table(header, records...), []string{"S1", "S2"})
	require.NoError(t, err)
	again, err := BuildStages(table(header, records...), []string{"S1", "S2"})
	require.NoError(t, err)
	assert.Equal(t, base, again)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([][]string(nil), records...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		g, err := BuildStages(table(header, shuffled...), []string{"S1", "S2"})
		require.NoError(t, err)
		assert.ElementsMatch(t, base.Labels, g.Labels)
		assert.Equal(t, labelledEdges(base), labelledEdges(g))
	}
}

func TestPropertiesHoldForGeneratedTables(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	vals := []string{"a", "b", "c", "1", "2", "", "NA"}
	header := []string{"A", "B", "C", "M"}
	for iter := 0; iter < 50; iter++ {
		var records [][]string
		n := rng.Intn(30)
		for r := 0; r < n; r++ {
			records = append(records, []string{
				vals[rng.Intn(len(vals))], vals[rng.Intn(len(vals))], vals[rng.Intn(len(vals))],
				[]string{"1", "2.5", "-1", ""}[rng.Intn(4)],
			})
		}
		tab := table(header, records...)

		g, err := BuildStages(tab, []string{"A", "B", "C"})
		require.NoError(t, err)
		distinct := map[string]bool{}
		for i := range tab.Rows {
			if rowComplete(tab, i, []int{0, 1, 2}) {
				for j := 0; j < 3; j++ {
					distinct[tab.Value(i, j).String()] = true
				}
			}
		}
		assert.Len(t, g.Labels, len(distinct))
		for _, e := range g.Edges {
			assert.True(t, e.Source >= 0 && e.Source < len(g.Labels))
			assert.True(t, e.Target >= 0 && e.Target < len(g.Labels))
			assert.Positive(t, e.Weight)
		}
		for _, total := range g.StageTotals() {
			assert.Equal(t, float64(g.RowsUsed), total)
		}

		split, err := BuildSplit(tab, "A", "M", "")
		require.NoError(t, err)
		var want float64
		cats := map[string]bool{}
		for i := range tab.Rows {
			if rowComplete(tab, i, []int{0, 3}) {
				want += tab.Value(i, 3).Num
				cats[tab.Value(i, 0).String()] = true
			}
		}
		assert.InDelta(t, want, split.Total(), 1e-9)
		if split.RowsUsed > 0 {
			assert.Len(t, split.Labels, len(cats)+1)
		}
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("split")
	require.NoError(t, err)
	assert.Equal(t, SingleSplit, m)
	m, err = ParseMode("multi")
	require.NoError(t, err)
	assert.Equal(t, MultiStage, m)
	m, err = ParseMode(" ")
	require.NoError(t, err)
	assert.Empty(t, m, "an empty mode is left for Build to infer")
	_, err = ParseMode("radial")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBuildInfersModeFromMeasure(t *testing.T) {
	tab := table([]string{"Product", "Revenue"},
		[]string{"X", "10"}, []string{"Y", "5"}, []string{"X", "3"})

	mode, err := ParseMode("")
	require.NoError(t, err)
	g, err := Build(tab, Spec{Mode: mode, Stages: []string{"Product"}, Measure: "Revenue"})
	require.NoError(t, err)
	assert.Equal(t, SingleSplit, g.Mode)
	assert.Equal(t, []string{"Total", "X", "Y"}, g.Labels)

	g, err = Build(tab, Spec{Mode: mode, Stages: []string{"Product", "Revenue"}})
	require.NoError(t, err)
	assert.Equal(t, MultiStage, g.Mode)
}

func TestColumnNamesMatchExactly(t *testing.T) {
	tab := table([]string{"A", "B"}, []string{"x", "p"})

	_, err := BuildStages(tab, []string{"a", " b "})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), `did you mean "A"?`)

	_, err = BuildStages(tab, []string{"A", "Z"})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "available: A, B")
}

func TestTextAndNumberWithSameLabelShareNode(t *testing.T) {
	tab := &dataset.Table{
		Columns: []string{"From", "To"},
		Rows: [][]dataset.Value{
			{dataset.TextValue("10"), dataset.TextValue("b")},
			{dataset.TextValue("a"), dataset.NumberValue(10)},
		},
	}
	g, err := BuildStages(tab, []string{"From", "To"})
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "a", "b"}, g.Labels)
	assert.Len(t, g.Edges, 2)
}

func TestDefaultRootCollidesWithCategory(t *testing.T) {
	tab := table([]string{"Product", "Revenue"},
		[]string{"Total", "4"}, []string{"X", "1"})

	g, err := BuildSplit(tab, "Product", "Revenue", "")
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), `root label "Total"`)
	assert.Nil(t, g)

	// Rows dropped for a missing measure never collide.
	tab = table([]string{"Product", "Revenue"},
		[]string{"Total", ""}, []string{"X", "1"})
	g, err = BuildSplit(tab, "Product", "Revenue", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Total", "X"}, g.Labels)

	g, err = BuildSplit(table([]string{"Product", "Revenue"}, []string{"Total", "4"}), "Product", "Revenue", "All")
	require.NoError(t, err)
	assert.Equal(t, []string{"All", "Total"}, g.Labels)
}

func labelledEdges(g *Graph) []string {
	out := make([]string, 0, len(g.Edges))
	for _, e := range g.Edges {
		out = append(out, g.Labels[e.Source]+"->"+g.Labels[e.Target]+":"+formatWeight(e.Weight))
	}
	sort.Strings(out)
	return out
}

func formatWeight(w float64) string {
	return dataset.NumberValue(w).String()
}
