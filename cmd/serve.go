package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KaramelBytes/flowloom-cli/internal/ai"
	"github.com/KaramelBytes/flowloom-cli/internal/logger"
	"github.com/KaramelBytes/flowloom-cli/internal/narrative"
	"github.com/KaramelBytes/flowloom-cli/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr        string
	serveMaxUploadMB int
	serveProvider    string
	serveModel       string
	serveNoAI        bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web UI for uploading datasets and viewing Sankey charts",
	Example: `  flowloom serve
  flowloom serve --addr 127.0.0.1:9000 --max-upload-mb 64
  flowloom serve --provider ollama --model llama3:latest`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		scfg := server.Config{Addr: serveAddr}
		if cfg != nil {
			if !cmd.Flags().Changed("addr") && cfg.ServerAddr != "" {
				scfg.Addr = cfg.ServerAddr
			}
			scfg.MaxUploadBytes = cfg.MaxUploadBytes()
			scfg.RootLabel = cfg.RootLabel
		}
		if serveMaxUploadMB > 0 {
			scfg.MaxUploadBytes = int64(serveMaxUploadMB) << 20
		}
		if !serveNoAI {
			gen, provider, err := serveNarrator()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: AI narrative disabled: %v\n", err)
			} else {
				scfg.Narrator = gen
				logger.Info("narrative enabled", "provider", provider, "model", gen.Config.Model)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Fprintf(cmd.OutOrStdout(), "🌐 Serving flowloom UI on %s (Ctrl+C to stop)\n", displayAddr(scfg.Addr))
		return server.New(scfg).Serve(ctx)
	},
}

// serveNarrator builds a Generator when the selected provider can be reached
// without prompting: a local Ollama, or a hosted provider with a key.
func serveNarrator() (*narrative.Generator, string, error) {
	provider := resolveProvider(cfg, serveProvider)
	if provider != ai.ProviderOllama && (cfg == nil || cfg.KeyFor(provider) == "") {
		return nil, provider, fmt.Errorf("no API key for %s (set %s)", provider, providerKeyEnv(provider))
	}
	rt, provider, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: provider})
	if err != nil {
		return nil, provider, err
	}
	ncfg := narrative.Config{Model: selectModel(cfg, provider, serveModel), MaxTokens: 1024, Temperature: 0.7}
	if cfg != nil {
		if cfg.MaxTokens > 0 {
			ncfg.MaxTokens = cfg.MaxTokens
		}
		if cfg.Temperature > 0 {
			ncfg.Temperature = cfg.Temperature
		}
		ncfg.Audience = cfg.Audience
	}
	return &narrative.Generator{Runtime: rt, Config: ncfg}, provider, nil
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address (default from config server_addr)")
	serveCmd.Flags().IntVar(&serveMaxUploadMB, "max-upload-mb", 0, "maximum upload size in MB (default from config, 32)")
	serveCmd.Flags().StringVar(&serveProvider, "provider", "", "AI provider for narratives (default from config)")
	serveCmd.Flags().StringVar(&serveModel, "model", "", "model for narratives (default from config or provider)")
	serveCmd.Flags().BoolVar(&serveNoAI, "no-ai", false, "disable the narrative endpoint")
}
