package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var (
	colData datasetFlags
	colJSON bool
)

var columnsCmd = &cobra.Command{
	Use:   "columns <file>",
	Short: "List a dataset's columns with inferred kinds",
	Example: `  flowloom columns sales.csv
  flowloom columns report.xlsx --sheet-name Flows --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := colData.load(args[0])
		if err != nil {
			return err
		}
		info := t.Describe()
		out := cmd.OutOrStdout()
		if colJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"name": t.Name, "rows": t.Len(), "columns": info})
		}
		tw := table.NewWriter()
		tw.SetOutputMirror(out)
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(table.Row{"#", "Column", "Kind", "Non-null", "Missing", "Distinct"})
		for i, c := range info {
			tw.AppendRow(table.Row{i + 1, c.Name, c.Kind, c.NonNull, c.Missing, c.Distinct})
		}
		tw.SetColumnConfigs([]table.ColumnConfig{
			{Number: 4, Align: text.AlignRight},
			{Number: 5, Align: text.AlignRight},
			{Number: 6, Align: text.AlignRight},
		})
		tw.Render()
		fmt.Fprintf(out, "(%d columns, %d rows)\n", len(info), t.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(columnsCmd)
	colData.register(columnsCmd.Flags())
	columnsCmd.Flags().BoolVar(&colJSON, "json", false, "print JSON instead of a table")
}
