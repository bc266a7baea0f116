package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/flowloom-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/flowloom-cli/internal/config"
	"github.com/KaramelBytes/flowloom-cli/internal/logger"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
	logJSON bool
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "flowloom",
	Short: "flowloom: turn spreadsheets into Sankey flow graphs with AI commentary",
	Long: `flowloom reads a CSV, TSV or XLSX dataset and builds a Sankey flow graph, either
splitting a total across the values of one category column or chaining two or more
stage columns. Graphs render as tables, JSON, YAML, CSV, Markdown or an HTML chart,
and can be narrated by an LLM (Groq, OpenAI, OpenRouter or a local Ollama).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.flowloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	logger.Init(logger.Options{Debug: debug, JSON: logJSON})
	cfgpkg.LoadEnv()

	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
	logger.Debug("config loaded", "provider", cfg.Provider, "model", cfg.Model)

	// A catalog saved by 'models sync --save' extends the built-in one.
	if path, err := savedCatalogPath(); err == nil {
		if m, err := ai.LoadCatalogFromJSON(path); err == nil {
			ai.MergeCatalog(m)
			logger.Debug("merged saved model catalog", "path", path, "models", len(m))
		}
	}
	if cfg.ModelsAutoSync && cfg.ModelsCatalogURL != "" {
		if err := fetchAndApplyCatalog(cfg.ModelsCatalogURL, cfg.ModelsMerge); err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Warning: models auto-sync failed: %v\n", err)
		}
	}
}

func savedCatalogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, cfgpkg.DirName, "models.json"), nil
}

// fetchCatalog downloads a JSON catalog.
func fetchCatalog(url string) (map[string]ai.ModelInfo, error) {
	client := &http.Client{Timeout: 20 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("fetch: unexpected status %s: %s", resp.Status, string(b))
	}
	var m map[string]ai.ModelInfo
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	for k, v := range m {
		if v.Name == "" {
			v.Name = k
			m[k] = v
		}
	}
	return m, nil
}

// fetchAndApplyCatalog downloads a JSON catalog and applies it in-memory.
func fetchAndApplyCatalog(url string, merge bool) error {
	m, err := fetchCatalog(url)
	if err != nil {
		return err
	}
	if merge {
		ai.MergeCatalog(m)
	} else {
		ai.OverrideCatalog(m)
	}
	return nil
}
