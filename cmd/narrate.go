package cmd

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/KaramelBytes/flowloom-cli/internal/ai"
	"github.com/KaramelBytes/flowloom-cli/internal/flow"
	"github.com/KaramelBytes/flowloom-cli/internal/logger"
	"github.com/KaramelBytes/flowloom-cli/internal/narrative"
	"github.com/spf13/cobra"
)

var (
	narrateSel        selectionFlags
	narrateKind       string
	narrateProvider   string
	narrateModel      string
	narrateMaxTokens  int
	narrateTemp       float64
	narrateAudience   string
	narrateDryRun     bool
	narrateBudget     float64
	narrateStream     bool
	narrateJSON       bool
	narrateOutput     string
	narrateTimeoutSec int
	narrateOllamaHost string
	narrateQuiet      bool
	narratePromptMax  int
)

var narrateCmd = &cobra.Command{
	Use:   "narrate <file>",
	Short: "Generate AI commentary or an email draft for a flow graph",
	Example: `  flowloom narrate sales.csv --category Product --measure Revenue
  flowloom narrate leads.csv --stages Source,Outcome --kind both --output report.md
  flowloom narrate leads.csv --stages Source,Outcome --provider ollama --model llama3:latest --stream
  flowloom narrate sales.csv --category Region --measure Net --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds, err := narrationKinds(narrateKind)
		if err != nil {
			return err
		}
		g, err := narrateSel.build(args[0])
		if err != nil {
			return err
		}
		if g.Empty() || len(g.Edges) == 0 {
			return fmt.Errorf("nothing to narrate: %w", narrative.ErrEmptyGraph)
		}

		provider := resolveProvider(cfg, narrateProvider)
		model := selectModel(cfg, provider, narrateModel)
		ncfg := narrative.Config{
			Model:          model,
			MaxTokens:      narrateMaxTokens,
			Temperature:    narrateTemp,
			Audience:       narrateAudience,
			DataTokenLimit: narratePromptMax,
		}
		if cfg != nil {
			if !cmd.Flags().Changed("max-tokens") && cfg.MaxTokens > 0 {
				ncfg.MaxTokens = cfg.MaxTokens
			}
			if !cmd.Flags().Changed("temp") && cfg.Temperature > 0 {
				ncfg.Temperature = cfg.Temperature
			}
			if ncfg.Audience == "" {
				ncfg.Audience = cfg.Audience
			}
		}
		out := cmd.OutOrStdout()

		// Prompt size is known up front; an email built on commentary adds
		// roughly one completion to its prompt.
		promptTokens := 0
		for _, k := range kinds {
			msgs, err := narrative.BuildMessages(k, g, ncfg)
			if err != nil {
				return err
			}
			promptTokens += narrative.EstimatePromptTokens(msgs)
		}
		if len(kinds) == 2 {
			promptTokens += ncfg.MaxTokens
		}
		completionTokens := ncfg.MaxTokens * len(kinds)
		if mi, ok := ai.LookupModel(model); ok && mi.ContextTokens > 0 && promptTokens+ncfg.MaxTokens > mi.ContextTokens {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: prompt (~%d tokens) plus max tokens exceeds %s context (%d)\n", promptTokens, model, mi.ContextTokens)
		}
		if cost, ok := ai.EstimateCostUSD(model, promptTokens, completionTokens); ok {
			if !narrateQuiet && !narrateJSON {
				fmt.Fprintf(cmd.ErrOrStderr(), "💲 Estimated cost (upper bound): ~$%.4f for %s/%s (prompt %d, completion ≤%d tokens)\n", cost, provider, model, promptTokens, completionTokens)
			}
			if err := enforceBudget(cost, narrateBudget); err != nil {
				return err
			}
		}

		if narrateDryRun {
			return printDryRun(out, g, kinds, ncfg, provider, promptTokens)
		}

		rt, provider, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: provider, OllamaHost: narrateOllamaHost})
		if err != nil {
			return err
		}
		gen := &narrative.Generator{Runtime: rt, Config: ncfg}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if narrateTimeoutSec > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(narrateTimeoutSec)*time.Second)
			defer cancel()
		}

		result := &narrationOutput{Provider: provider, Model: model, MaxTokens: ncfg.MaxTokens, Temperature: ncfg.Temperature}
		var commentary string
		for _, k := range kinds {
			start := time.Now()
			var res *narrative.Result
			if narrateStream && !narrateJSON {
				fmt.Fprintf(out, "## %s\n\n", heading(k))
				res, err = gen.Stream(ctx, k, g, commentary, func(d string) { fmt.Fprint(out, d) })
				fmt.Fprintln(out)
			} else if k == narrative.KindEmail {
				res, err = gen.Email(ctx, g, commentary)
			} else {
				res, err = gen.Commentary(ctx, g)
			}
			if err != nil {
				return friendlyError(err, provider, model)
			}
			logger.Info("narrative generated", "kind", k, "provider", provider, "model", res.Model, "request_id", res.RequestID, "elapsed", time.Since(start).Round(time.Millisecond))
			if k == narrative.KindCommentary {
				commentary = res.Content
			}
			result.add(res)
		}

		opts := outputOptions{JSON: narrateJSON, Quiet: narrateQuiet || (narrateStream && !narrateJSON), OutputPath: narrateOutput, Writer: out}
		return writeNarration(result, opts)
	},
}

// narrationKinds expands --kind; "both" runs commentary and then an email built on it.
func narrationKinds(s string) ([]narrative.Kind, error) {
	if strings.EqualFold(strings.TrimSpace(s), "both") {
		return []narrative.Kind{narrative.KindCommentary, narrative.KindEmail}, nil
	}
	k, err := narrative.ParseKind(s)
	if err != nil {
		return nil, err
	}
	return []narrative.Kind{k}, nil
}

func heading(k narrative.Kind) string {
	if k == narrative.KindEmail {
		return "Email"
	}
	return "Commentary"
}

func printDryRun(w io.Writer, g *flow.Graph, kinds []narrative.Kind, ncfg narrative.Config, provider string, promptTokens int) error {
	var all strings.Builder
	for _, k := range kinds {
		msgs, err := narrative.BuildMessages(k, g, ncfg)
		if err != nil {
			return err
		}
		tokens := narrative.TokensByRole(msgs)
		fmt.Fprintf(w, "## %s prompt (system ≈%d, user ≈%d tokens)\n\n", heading(k), tokens["system"], tokens["user"])
		for _, m := range msgs {
			fmt.Fprintf(w, "[%s]\n%s\n\n", m.Role, m.Content)
			all.WriteString(m.Content)
		}
	}
	id := fmt.Sprintf("sim_%x", sha1.Sum([]byte(provider+"|"+ncfg.Model+"|"+all.String())))
	fmt.Fprintf(w, "[dry-run] provider=%s model=%s prompt_tokens≈%d max_tokens=%d request_id=%s\n", provider, ncfg.Model, promptTokens, ncfg.MaxTokens, id[:16])
	return nil
}

func init() {
	rootCmd.AddCommand(narrateCmd)
	narrateSel.register(narrateCmd.Flags())
	f := narrateCmd.Flags()
	f.StringVar(&narrateKind, "kind", "commentary", "what to generate: commentary|email|both")
	f.StringVar(&narrateProvider, "provider", "", "AI provider: groq|openai|openrouter|ollama (default from config)")
	f.StringVar(&narrateModel, "model", "", "model name (default from config or provider)")
	f.IntVar(&narrateMaxTokens, "max-tokens", 1024, "maximum completion tokens")
	f.Float64Var(&narrateTemp, "temp", 0.7, "sampling temperature")
	f.StringVar(&narrateAudience, "audience", "", "who the text is for, e.g. 'the board'")
	f.BoolVar(&narrateDryRun, "dry-run", false, "print the prompts and estimates without calling the provider")
	f.Float64Var(&narrateBudget, "budget-limit", 0, "fail when the estimated cost in USD exceeds this")
	f.BoolVar(&narrateStream, "stream", false, "stream text as it is generated")
	f.BoolVar(&narrateJSON, "json", false, "print the result as JSON")
	f.StringVarP(&narrateOutput, "output", "o", "", "also write the result to a file (.json or markdown)")
	f.IntVar(&narrateTimeoutSec, "timeout-sec", 120, "overall timeout for the provider calls")
	f.StringVar(&narrateOllamaHost, "ollama-host", "", "Ollama host (default from config or OLLAMA_HOST)")
	f.BoolVar(&narrateQuiet, "quiet", false, "suppress the text on stdout (use with --output)")
	f.IntVar(&narratePromptMax, "prompt-limit", 0, "cap the embedded data at about N tokens (0 = no cap)")
}
