package cmd

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/KaramelBytes/flowloom-cli/internal/dataset"
	"github.com/KaramelBytes/flowloom-cli/internal/flow"
	"github.com/KaramelBytes/flowloom-cli/internal/logger"
	"github.com/spf13/pflag"
)

// datasetFlags are the file-reading flags shared by every command that loads a dataset.
type datasetFlags struct {
	sheetName  string
	sheetIndex int
	delimiter  string
	decimal    string
	thousands  string
	maxRows    int
}

func (d *datasetFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&d.sheetName, "sheet-name", "", "XLSX sheet to read by name")
	fs.IntVar(&d.sheetIndex, "sheet-index", 1, "XLSX sheet to read by 1-based index")
	fs.StringVar(&d.delimiter, "delimiter", "", "CSV delimiter (default: sniffed; 'tab' for TSV)")
	fs.StringVar(&d.decimal, "decimal", "", "decimal separator for numbers (default: auto)")
	fs.StringVar(&d.thousands, "thousands", "", "thousands separator for numbers (default: ',')")
	fs.IntVar(&d.maxRows, "max-rows", 0, "read at most N data rows (0 = all)")
}

func singleRune(flag, s string) (rune, error) {
	if strings.EqualFold(s, "tab") || s == `\t` {
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("--%s must be a single character, got %q", flag, s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

func (d *datasetFlags) options() (dataset.Options, error) {
	opt := dataset.DefaultOptions()
	opt.SheetName = d.sheetName
	if d.sheetIndex > 0 {
		opt.SheetIndex = d.sheetIndex
	}
	opt.MaxRows = d.maxRows
	var err error
	if d.delimiter != "" {
		if opt.Delimiter, err = singleRune("delimiter", d.delimiter); err != nil {
			return opt, err
		}
	}
	if d.decimal != "" {
		if d.decimal == "auto" {
			opt.DecimalSeparator = 0
		} else if opt.DecimalSeparator, err = singleRune("decimal", d.decimal); err != nil {
			return opt, err
		}
	}
	if d.thousands != "" {
		if opt.ThousandsSeparator, err = singleRune("thousands", d.thousands); err != nil {
			return opt, err
		}
	}
	if opt.DecimalSeparator != 0 && opt.DecimalSeparator == opt.ThousandsSeparator {
		if d.thousands != "" {
			return opt, fmt.Errorf("--decimal and --thousands must differ")
		}
		// --decimal , implies '.' grouping
		opt.ThousandsSeparator = '.'
	}
	return opt, nil
}

func (d *datasetFlags) load(path string) (*dataset.Table, error) {
	opt, err := d.options()
	if err != nil {
		return nil, err
	}
	t, err := dataset.Load(path, opt)
	if err != nil {
		return nil, err
	}
	logger.Debug("dataset loaded", "path", path, "rows", t.Len(), "columns", len(t.Columns))
	return t, nil
}

// selectionFlags pick the graph mode and columns.
type selectionFlags struct {
	datasetFlags
	mode      string
	stages    []string
	category  string
	measure   string
	rootLabel string
}

func (s *selectionFlags) register(fs *pflag.FlagSet) {
	s.datasetFlags.register(fs)
	fs.StringVar(&s.mode, "mode", "", "multi-stage|single-split (default: inferred from --measure)")
	fs.StringSliceVar(&s.stages, "stages", nil, "stage columns in flow order (multi-stage), e.g. --stages Source,Channel,Outcome")
	fs.StringVar(&s.category, "category", "", "category column (single-split)")
	fs.StringVar(&s.measure, "measure", "", "numeric column summed per category (single-split)")
	fs.StringVar(&s.rootLabel, "root-label", "", "label of the single-split root node (default from config, 'Total')")
}

func (s *selectionFlags) spec() (flow.Spec, error) {
	mode, err := flow.ParseMode(s.mode)
	if err != nil {
		return flow.Spec{}, err
	}
	stages := s.stages
	if s.category != "" {
		if len(stages) > 0 {
			return flow.Spec{}, fmt.Errorf("use either --stages or --category, not both")
		}
		stages = []string{s.category}
	}
	root := s.rootLabel
	if root == "" && cfg != nil {
		root = cfg.RootLabel
	}
	return flow.Spec{Mode: mode, Stages: stages, Measure: s.measure, RootLabel: root}, nil
}

// build loads path and builds the selected graph.
func (s *selectionFlags) build(path string) (*flow.Graph, error) {
	spec, err := s.spec()
	if err != nil {
		return nil, err
	}
	t, err := s.load(path)
	if err != nil {
		return nil, err
	}
	g, err := flow.Build(t, spec)
	if err != nil {
		return nil, err
	}
	logger.Debug("graph built", "mode", g.Mode, "nodes", len(g.Labels), "links", len(g.Edges), "rows_dropped", g.RowsDropped)
	return g, nil
}
