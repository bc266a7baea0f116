package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag of c and its subcommands to its default so
// package-level flag variables do not leak between invocations.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = fl.Value.Set(fl.DefValue)
		}
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd executes the root command with args in an isolated HOME and returns stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg = nil
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"GROQ_API_KEY", "OPENAI_API_KEY", "OPENROUTER_API_KEY", "FLOWLOOM_PROVIDER", "FLOWLOOM_MODEL"} {
		t.Setenv(k, "")
	}
	return home
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

const leadsCSV = "Source,Channel,Outcome\nAds,Web,Won\nSEO,Web,Lost\nAds,Web,Won\nAds,,Won\n"
const salesCSV = "Product,Revenue\nA,10\nB,5\nA,3\n"

func TestCLI_Columns(t *testing.T) {
	home := isolateHome(t)
	path := writeFile(t, home, "sales.csv", salesCSV)

	out, err := runCmd(t, "columns", path, "--json")
	require.NoError(t, err)
	var got struct {
		Rows    int `json:"rows"`
		Columns []struct {
			Name string `json:"name"`
		} `json:"columns"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 3, got.Rows)
	require.Len(t, got.Columns, 2)
	assert.Equal(t, "Product", got.Columns[0].Name)

	out, err = runCmd(t, "columns", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Revenue")
	assert.Contains(t, out, "(2 columns, 3 rows)")
}

func TestCLI_FlowJSON(t *testing.T) {
	home := isolateHome(t)
	path := writeFile(t, home, "sales.csv", salesCSV)

	out, err := runCmd(t, "flow", path, "--category", "Product", "--measure", "Revenue", "--format", "json")
	require.NoError(t, err)
	var doc struct {
		Labels []string `json:"labels"`
		Edges  []struct {
			Source int     `json:"source"`
			Target int     `json:"target"`
			Value  float64 `json:"value"`
		} `json:"edges"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, []string{"Total", "A", "B"}, doc.Labels)
	require.Len(t, doc.Edges, 2)
	assert.Equal(t, 13.0, doc.Edges[0].Value)
	assert.Equal(t, 5.0, doc.Edges[1].Value)
}

func TestCLI_FlowStagesToHTMLFile(t *testing.T) {
	home := isolateHome(t)
	path := writeFile(t, home, "leads.csv", leadsCSV)
	dest := filepath.Join(home, "out", "chart.html")

	out, err := runCmd(t, "flow", path, "--stages", "Source,Channel,Outcome", "-o", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved html")

	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(b), "sankey")
}

func TestCLI_FlowRejectsBadSelection(t *testing.T) {
	home := isolateHome(t)
	path := writeFile(t, home, "leads.csv", leadsCSV)

	_, err := runCmd(t, "flow", path, "--stages", "Source,Missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing")

	_, err = runCmd(t, "flow", path, "--stages", "Source,Outcome", "--category", "Source")
	require.Error(t, err)
}

func TestCLI_NarrateDryRun(t *testing.T) {
	home := isolateHome(t)
	path := writeFile(t, home, "sales.csv", salesCSV)

	out, err := runCmd(t, "narrate", path, "--category", "Product", "--measure", "Revenue", "--dry-run", "--kind", "both")
	require.NoError(t, err)
	assert.Contains(t, out, "## Commentary prompt (system ≈")
	assert.Contains(t, out, "## Email prompt")
	assert.Contains(t, out, "[dry-run] provider=groq")
	assert.Contains(t, out, "request_id=sim_")
}

func TestCLI_BudgetLimitBlocksNarration(t *testing.T) {
	home := isolateHome(t)
	path := writeFile(t, home, "sales.csv", salesCSV)

	_, err := runCmd(t, "narrate", path, "--category", "Product", "--measure", "Revenue", "--dry-run", "--budget-limit", "0.00000001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds budget limit")
}

func TestCLI_NarrateMissingKey(t *testing.T) {
	home := isolateHome(t)
	path := writeFile(t, home, "sales.csv", salesCSV)

	_, err := runCmd(t, "narrate", path, "--category", "Product", "--measure", "Revenue", "--quiet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GROQ_API_KEY")
}

func TestCLI_ConfigSet(t *testing.T) {
	home := isolateHome(t)

	out, err := runCmd(t, "config", "set", "root_label", "All revenue")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved config")

	b, err := os.ReadFile(filepath.Join(home, ".flowloom", "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "root_label: All revenue")

	_, err = runCmd(t, "config", "set", "temperature", "9")
	require.Error(t, err)
}
