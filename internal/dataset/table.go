package dataset

import (
	"fmt"
	"strings"
)

// Options controls how tabular files are read.
type Options struct {
	// Delimiter for CSV. If 0, sniffed from the extension and header line.
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// XLSX sheet selection: name wins over the 1-based index.
	SheetName  string
	SheetIndex int
	// MaxRows limits data rows read; 0 means unlimited.
	MaxRows int
}

// DefaultOptions reads plain '.'-decimal numbers with ',' grouping, the first
// sheet, and every row.
func DefaultOptions() Options {
	return Options{
		DecimalSeparator:   '.',
		ThousandsSeparator: ',',
		SheetIndex:         1,
	}
}

// Table is an in-memory dataset with named columns and typed cells.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]Value
}

// ColumnInfo summarizes one column for pickers and the columns command.
type ColumnInfo struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"` // numeric|categorical|empty
	NonNull  int    `json:"non_null"`
	Missing  int    `json:"missing"`
	Distinct int    `json:"distinct"`
}

// FromRecords builds a table from a header and raw string rows. Short rows are
// padded with missing cells; extra cells are ignored.
func FromRecords(name string, header []string, records [][]string, opt Options) *Table {
	t := &Table{Name: name, Columns: normalizeHeader(header)}
	ncol := len(t.Columns)
	for _, rec := range records {
		if blankRecord(rec) {
			continue
		}
		if opt.MaxRows > 0 && len(t.Rows) >= opt.MaxRows {
			break
		}
		row := make([]Value, ncol)
		for j := 0; j < ncol && j < len(rec); j++ {
			row[j] = ParseValue(rec[j], opt)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Column resolves a column name by exact match.
func (t *Table) Column(name string) (int, bool) {
	if t == nil {
		return -1, false
	}
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// Suggest returns the column a mistyped name most likely meant: the first
// column equal to name ignoring case and surrounding spaces.
func (t *Table) Suggest(name string) (string, bool) {
	if t == nil {
		return "", false
	}
	want := strings.ToLower(strings.TrimSpace(name))
	for _, c := range t.Columns {
		if strings.ToLower(strings.TrimSpace(c)) == want {
			return c, true
		}
	}
	return "", false
}

// Value returns the cell at row i, column j, or a missing value when out of range.
func (t *Table) Value(i, j int) Value {
	if i < 0 || i >= len(t.Rows) || j < 0 || j >= len(t.Rows[i]) {
		return Value{}
	}
	return t.Rows[i][j]
}

// Describe infers a kind per column: numeric when every non-missing cell is a number.
func (t *Table) Describe() []ColumnInfo {
	if t == nil {
		return nil
	}
	out := make([]ColumnInfo, len(t.Columns))
	for j, name := range t.Columns {
		info := ColumnInfo{Name: name}
		seen := map[string]struct{}{}
		numeric := true
		for i := range t.Rows {
			v := t.Value(i, j)
			if v.IsMissing() {
				info.Missing++
				continue
			}
			info.NonNull++
			if v.Kind != Number {
				numeric = false
			}
			seen[v.Key()] = struct{}{}
		}
		info.Distinct = len(seen)
		switch {
		case info.NonNull == 0:
			info.Kind = "empty"
		case numeric:
			info.Kind = "numeric"
		default:
			info.Kind = "categorical"
		}
		out[j] = info
	}
	return out
}

// normalizeHeader trims names, fills blanks as "Unnamed: <i>" and suffixes
// duplicates with ".1", ".2", ... the way spreadsheet readers commonly do.
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	used := map[string]int{}
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if _, dup := used[name]; dup {
			base := name
			for k := used[base] + 1; ; k++ {
				cand := fmt.Sprintf("%s.%d", base, k)
				if _, taken := used[cand]; !taken {
					used[base] = k
					name = cand
					break
				}
			}
		}
		used[name] = 0
		out[i] = name
	}
	return out
}

func blankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
