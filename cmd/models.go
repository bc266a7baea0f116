package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/KaramelBytes/flowloom-cli/internal/ai"
	"github.com/KaramelBytes/flowloom-cli/internal/utils"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage or inspect model catalog and pricing",
	Example: `  flowloom models show
  flowloom models show --provider groq
  flowloom models sync --file ./models.json --merge --save
  flowloom models fetch --url https://example.com/models.json
  flowloom models fetch --provider ollama --merge --output models.json`,
}

var (
	showJSON     bool
	showProvider string
)

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current model catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		cat := ai.Catalog()
		provider := strings.ToLower(showProvider)
		if provider == "local" {
			provider = ai.ProviderOllama
		}
		names := make([]string, 0, len(cat))
		for _, n := range ai.CatalogNames() {
			if provider == "" || cat[n].Provider == provider {
				names = append(names, n)
			}
		}
		if showJSON {
			m := make(map[string]ai.ModelInfo, len(names))
			for _, n := range names {
				m[n] = cat[n]
			}
			b, err := utils.PrettyJSON(m)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		tw := table.NewWriter()
		tw.SetOutputMirror(out)
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(table.Row{"Model", "Provider", "Context", "$/1K in", "$/1K out"})
		tw.SetColumnConfigs([]table.ColumnConfig{
			{Number: 3, Align: text.AlignRight},
			{Number: 4, Align: text.AlignRight},
			{Number: 5, Align: text.AlignRight},
		})
		for _, n := range names {
			mi := cat[n]
			tw.AppendRow(table.Row{n, mi.Provider, mi.ContextTokens, price(mi.InputPerK), price(mi.OutputPerK)})
		}
		tw.AppendFooter(table.Row{fmt.Sprintf("%d models", len(names))})
		tw.Render()
		return nil
	},
}

func price(p float64) string {
	if p == 0 {
		return "-"
	}
	return fmt.Sprintf("%.5f", p)
}

var (
	syncPath  string
	syncMerge bool
	syncSave  bool
)

var modelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load model catalog/pricing from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPath == "" {
			return fmt.Errorf("--file is required")
		}
		m, err := ai.LoadCatalogFromJSON(syncPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		out := cmd.OutOrStdout()
		applyCatalog(m, syncMerge)
		if syncMerge {
			fmt.Fprintf(out, "Merged %d models from %s\n", len(m), syncPath)
		} else {
			fmt.Fprintf(out, "Replaced model catalog with %d models from %s\n", len(m), syncPath)
		}
		if syncSave {
			path, err := savedCatalogPath()
			if err != nil {
				return err
			}
			if err := writeCatalog(path, m); err != nil {
				return err
			}
			fmt.Fprintf(out, "💾 Saved catalog to %s (merged on every run)\n", path)
		}
		return nil
	},
}

func applyCatalog(m map[string]ai.ModelInfo, merge bool) {
	if merge {
		ai.MergeCatalog(m)
	} else {
		ai.OverrideCatalog(m)
	}
}

func writeCatalog(path string, m map[string]ai.ModelInfo) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := utils.SafeWriteFile(path, data); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// providerURL returns a catalog URL configured for a provider, or "".
// FLOWLOOM_<PROVIDER>_CATALOG_URL, e.g. FLOWLOOM_OPENROUTER_CATALOG_URL.
func providerURL(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	return os.Getenv("FLOWLOOM_" + name + "_CATALOG_URL")
}

var (
	fetchURL      string
	fetchOutput   string
	fetchMerge    bool
	fetchProvider string
)

var modelsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch model catalog/pricing JSON from a URL and apply it",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		url := fetchURL
		if url == "" && fetchProvider != "" {
			url = providerURL(fetchProvider)
		}
		var m map[string]ai.ModelInfo
		switch {
		case url != "":
			fetched, err := fetchCatalog(url)
			if err != nil {
				return err
			}
			m = fetched
		case fetchProvider != "":
			// No URL configured: fall back to the built-in preset without network.
			preset, ok := ai.PresetCatalog(strings.ToLower(fetchProvider))
			if !ok {
				return fmt.Errorf("no catalog URL or preset for provider %q", fetchProvider)
			}
			m = preset
		default:
			return fmt.Errorf("--url is required (or specify --provider with a known preset)")
		}

		if fetchOutput != "" {
			if err := writeCatalog(fetchOutput, m); err != nil {
				return err
			}
			fmt.Fprintf(out, "💾 Saved catalog to %s\n", fetchOutput)
		}
		applyCatalog(m, fetchMerge)
		if fetchMerge {
			fmt.Fprintf(out, "Merged %d models into in-memory catalog\n", len(m))
		} else {
			fmt.Fprintf(out, "Replaced in-memory catalog with %d models\n", len(m))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsCmd.AddCommand(modelsSyncCmd)
	modelsCmd.AddCommand(modelsFetchCmd)

	modelsShowCmd.Flags().BoolVar(&showJSON, "json", false, "print the catalog as JSON")
	modelsShowCmd.Flags().StringVar(&showProvider, "provider", "", "only list models for this provider")

	modelsSyncCmd.Flags().StringVar(&syncPath, "file", "", "path to JSON catalog file")
	modelsSyncCmd.Flags().BoolVar(&syncMerge, "merge", false, "merge into existing catalog instead of replacing")
	modelsSyncCmd.Flags().BoolVar(&syncSave, "save", false, "save the file to ~/.flowloom/models.json so later runs merge it")

	modelsFetchCmd.Flags().StringVar(&fetchURL, "url", "", "URL to JSON catalog file")
	modelsFetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "optional path to save the fetched JSON")
	modelsFetchCmd.Flags().BoolVar(&fetchMerge, "merge", false, "merge into existing catalog instead of replacing")
	modelsFetchCmd.Flags().StringVar(&fetchProvider, "provider", "", "provider whose catalog URL (FLOWLOOM_<PROVIDER>_CATALOG_URL) or built-in preset to use")
}
