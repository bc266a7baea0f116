package flow

import (
	"sort"
	"strings"

	"github.com/KaramelBytes/flowloom-cli/internal/dataset"
)

// Build dispatches on spec.Mode. An empty mode means single-split when a
// measure is named and multi-stage otherwise.
func Build(t *dataset.Table, spec Spec) (*Graph, error) {
	mode := spec.Mode
	if mode == "" {
		mode = MultiStage
		if strings.TrimSpace(spec.Measure) != "" {
			mode = SingleSplit
		}
	}
	switch mode {
	case MultiStage:
		if strings.TrimSpace(spec.Measure) != "" {
			return nil, invalidf("multi-stage mode takes no measure column (got %q)", spec.Measure)
		}
		return BuildStages(t, spec.Stages)
	case SingleSplit:
		if len(spec.Stages) != 1 {
			return nil, invalidf("single-split mode takes exactly one category column, got %d", len(spec.Stages))
		}
		return BuildSplit(t, spec.Stages[0], spec.Measure, spec.RootLabel)
	default:
		return nil, invalidf("unknown mode %q", mode)
	}
}

// nodeIndex assigns label indices in first-seen order. Nodes are keyed by
// dataset.Value.Key, which is the label, so equal numbers written differently
// share one node and the label list never holds duplicates.
type nodeIndex struct {
	labels []string
	values []dataset.Value
	byKey  map[string]int
}

func newNodeIndex() *nodeIndex {
	return &nodeIndex{byKey: map[string]int{}}
}

func (n *nodeIndex) add(v dataset.Value) int {
	key := v.Key()
	if i, ok := n.byKey[key]; ok {
		return i
	}
	i := len(n.labels)
	n.byKey[key] = i
	n.labels = append(n.labels, v.String())
	n.values = append(n.values, v)
	return i
}

func resolveColumns(t *dataset.Table, names []string) ([]int, []string, error) {
	idx := make([]int, len(names))
	resolved := make([]string, len(names))
	for i, name := range names {
		j, ok := t.Column(name)
		if !ok {
			if s, near := t.Suggest(name); near {
				return nil, nil, invalidf("column %q not found (did you mean %q?)", name, s)
			}
			return nil, nil, invalidf("column %q not found (available: %s)", name, strings.Join(t.Columns, ", "))
		}
		idx[i] = j
		resolved[i] = t.Columns[j]
	}
	return idx, resolved, nil
}

// BuildStages chains two or more categorical columns. For each consecutive
// pair it groups surviving rows by (source value, target value) and emits one
// edge per pair weighted by row count, ascending by the value pair.
func BuildStages(t *dataset.Table, stages []string) (*Graph, error) {
	if len(stages) < 2 {
		return nil, invalidf("select at least two stage columns, got %d", len(stages))
	}
	if t == nil {
		t = &dataset.Table{}
	}
	cols, names, err := resolveColumns(t, stages)
	if err != nil {
		return nil, err
	}
	seen := map[int]string{}
	for i, c := range cols {
		if prev, dup := seen[c]; dup {
			return nil, invalidf("column %q selected twice (as %q and %q)", names[i], prev, stages[i])
		}
		seen[c] = stages[i]
	}

	g := &Graph{Mode: MultiStage, Stages: names, Labels: []string{}, Edges: []Edge{}, RowsTotal: t.Len()}
	var rows []int
	for i := range t.Rows {
		if rowComplete(t, i, cols) {
			rows = append(rows, i)
		}
	}
	g.RowsUsed = len(rows)
	g.RowsDropped = g.RowsTotal - g.RowsUsed

	nodes := newNodeIndex()
	ids := make([][]int, len(rows))
	for r := range ids {
		ids[r] = make([]int, len(cols))
	}
	for s, c := range cols {
		for r, i := range rows {
			ids[r][s] = nodes.add(t.Value(i, c))
		}
	}

	type pair struct{ src, dst int }
	for s := 0; s+1 < len(cols); s++ {
		counts := map[pair]int{}
		for r := range rows {
			counts[pair{ids[r][s], ids[r][s+1]}]++
		}
		keys := make([]pair, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(a, b int) bool {
			if c := dataset.Compare(nodes.values[keys[a].src], nodes.values[keys[b].src]); c != 0 {
				return c < 0
			}
			return dataset.Compare(nodes.values[keys[a].dst], nodes.values[keys[b].dst]) < 0
		})
		for _, k := range keys {
			g.Edges = append(g.Edges, Edge{Source: k.src, Target: k.dst, Weight: float64(counts[k]), Stage: s})
		}
	}
	g.Labels = nodes.labels
	if g.Labels == nil {
		g.Labels = []string{}
	}
	return g, nil
}

// BuildSplit fans a root node out to each distinct category, weighting every
// edge with the sum of measure over the category's rows. Sums keep their sign;
// a zero or negative total is reported as is.
func BuildSplit(t *dataset.Table, category, measure, root string) (*Graph, error) {
	if strings.TrimSpace(category) == "" || strings.TrimSpace(measure) == "" {
		return nil, invalidf("single-split mode needs a category and a measure column")
	}
	if t == nil {
		t = &dataset.Table{}
	}
	cols, names, err := resolveColumns(t, []string{category, measure})
	if err != nil {
		return nil, err
	}
	if cols[0] == cols[1] {
		return nil, invalidf("category and measure must be different columns (both %q)", names[0])
	}
	root = strings.TrimSpace(root)
	if root == "" {
		root = DefaultRootLabel
	}

	g := &Graph{Mode: SingleSplit, Stages: names[:1], Measure: names[1], Labels: []string{}, Edges: []Edge{}, RowsTotal: t.Len()}
	nodes := newNodeIndex()
	nodes.add(dataset.TextValue(root))
	sums := map[int]float64{}
	for i := range t.Rows {
		if !rowComplete(t, i, cols) {
			continue
		}
		m := t.Value(i, cols[1])
		if m.Kind != dataset.Number {
			return nil, invalidf("measure %q is not numeric: row %d has %q", names[1], i+1, m.Raw)
		}
		c := t.Value(i, cols[0])
		if c.Key() == root {
			return nil, invalidf("root label %q is also a %s value; choose another root label", root, names[0])
		}
		sums[nodes.add(c)] += m.Num
		g.RowsUsed++
	}
	g.RowsDropped = g.RowsTotal - g.RowsUsed
	if g.RowsUsed == 0 {
		return g, nil
	}

	cats := make([]int, 0, len(sums))
	for k := range sums {
		cats = append(cats, k)
	}
	sort.Slice(cats, func(a, b int) bool {
		return dataset.Compare(nodes.values[cats[a]], nodes.values[cats[b]]) < 0
	})
	for _, k := range cats {
		g.Edges = append(g.Edges, Edge{Source: 0, Target: k, Weight: sums[k]})
	}
	g.Labels = nodes.labels
	return g, nil
}

func rowComplete(t *dataset.Table, i int, cols []int) bool {
	for _, c := range cols {
		if t.Value(i, c).IsMissing() {
			return false
		}
	}
	return true
}
