package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/KaramelBytes/flowloom-cli/internal/render"
	"github.com/KaramelBytes/flowloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	flowSel     selectionFlags
	flowFormat  string
	flowOutput  string
	flowTitle   string
	flowSummary bool
)

var flowCmd = &cobra.Command{
	Use:   "flow <file>",
	Short: "Build a Sankey flow graph from a dataset",
	Example: `  flowloom flow leads.csv --stages Source,Channel,Outcome
  flowloom flow sales.xlsx --category Product --measure Revenue --root-label "All revenue"
  flowloom flow leads.csv --stages Source,Outcome --output chart.html
  flowloom flow sales.csv --category Region --measure Net --format json --summary`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveFormat(flowFormat, cmd.Flags().Changed("format"), flowOutput)
		if err != nil {
			return err
		}
		g, err := flowSel.build(args[0])
		if err != nil {
			return err
		}
		opt := render.Options{Title: flowTitle, Summary: flowSummary}
		if flowOutput == "" {
			return render.Write(cmd.OutOrStdout(), g, format, opt)
		}
		var buf bytes.Buffer
		if err := render.Write(&buf, g, format, opt); err != nil {
			return err
		}
		if err := utils.SafeWriteFile(flowOutput, buf.Bytes()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "💾 Saved %s (%d links, %d nodes) to %s\n", format, len(g.Edges), len(g.Labels), flowOutput)
		return nil
	},
}

// resolveFormat picks the explicit --format, else the output extension, else a table.
func resolveFormat(flagValue string, changed bool, output string) (render.Format, error) {
	if changed || output == "" {
		return render.ParseFormat(flagValue)
	}
	if f, ok := render.FormatFromPath(output); ok {
		return f, nil
	}
	return render.ParseFormat(flagValue)
}

func init() {
	rootCmd.AddCommand(flowCmd)
	flowSel.register(flowCmd.Flags())
	names := make([]string, len(render.Formats))
	for i, f := range render.Formats {
		names[i] = string(f)
	}
	flowCmd.Flags().StringVar(&flowFormat, "format", "table", "output format: "+strings.Join(names, "|"))
	flowCmd.Flags().StringVarP(&flowOutput, "output", "o", "", "write to a file instead of stdout (format follows the extension unless --format is set)")
	flowCmd.Flags().StringVar(&flowTitle, "title", "", "chart/heading title (default describes the selection)")
	flowCmd.Flags().BoolVar(&flowSummary, "summary", false, "include the aggregate summary in JSON/YAML output")
}
