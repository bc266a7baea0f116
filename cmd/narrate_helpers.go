package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/flowloom-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/flowloom-cli/internal/config"
	"github.com/KaramelBytes/flowloom-cli/internal/narrative"
	"github.com/KaramelBytes/flowloom-cli/internal/utils"
)

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

// resolveProvider applies flag > config > default and the provider aliases.
func resolveProvider(cfg *cfgpkg.Global, flag string) string {
	name := strings.ToLower(strings.TrimSpace(flag))
	if name == "" && cfg != nil {
		name = cfg.Provider
	}
	if name == "" {
		name = ai.DefaultProvider
	}
	if name == "local" {
		name = ai.ProviderOllama
	}
	return name
}

func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	providerName := resolveProvider(cfg, opts.ProviderFlag)
	var rc ai.RuntimeConfig
	if cfg != nil {
		rc = cfg.RuntimeConfig(providerName)
	}
	if providerName == ai.ProviderOllama {
		if h := strings.TrimSpace(opts.OllamaHost); h != "" {
			rc.Host = h
		}
	}
	client, err := ai.NewRuntime(providerName, rc)
	if err != nil {
		return nil, providerName, err
	}
	return client, providerName, nil
}

// selectModel prefers the explicit flag, then the configured model when it
// belongs to provider, then the provider's default.
func selectModel(cfg *cfgpkg.Global, provider, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.Model != "" && (cfg.Provider == "" || cfg.Provider == provider) {
		return cfg.Model
	}
	if m := ai.DefaultModel(provider); m != "" {
		return m
	}
	return ai.DefaultModel(ai.DefaultProvider)
}

func enforceBudget(estCost, limit float64) error {
	if limit > 0 && estCost > 0 && estCost > limit {
		return fmt.Errorf("✗ Estimated cost ~$%.4f exceeds budget limit ~$%.4f", estCost, limit)
	}
	return nil
}

// providerKeyEnv names the environment variable holding provider's key.
func providerKeyEnv(provider string) string {
	switch provider {
	case ai.ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ai.ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	default:
		return "GROQ_API_KEY"
	}
}

// friendlyError adds user hints for the common provider failures.
func friendlyError(err error, provider, model string) error {
	var (
		missing *ai.MissingKeyError
		authErr *ai.AuthError
		rlErr   *ai.RateLimitError
		nfErr   *ai.ModelNotFoundError
		brErr   *ai.BadRequestError
		qErr    *ai.QuotaExceededError
		sErr    *ai.ServerError
		unreach *ai.UnreachableError
	)
	switch {
	case errors.As(err, &missing):
		return fmt.Errorf("no API key for %s: set %s (or FLOWLOOM_%s) in the environment or .env, or run 'flowloom config set %s_api_key <key>'",
			provider, providerKeyEnv(provider), providerKeyEnv(provider), provider)
	case errors.As(err, &unreach):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("Ollama not reachable at %s. Ensure Ollama is running (see https://ollama.com) and host is correct. You can set FLOWLOOM_OLLAMA_HOST or config 'ollama_host'. Detail: %w", unreach.Host, err)
		}
		return fmt.Errorf("endpoint unreachable. Check your network and provider settings: %w", err)
	case errors.As(err, &authErr):
		return fmt.Errorf("authentication failed: check %s or api_key in config (~/.flowloom/config.yaml): %w", providerKeyEnv(provider), err)
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Errorf("rate limited, try again in ~%ds: %w", int(rlErr.RetryAfter.Seconds()), err)
		}
		return fmt.Errorf("rate limited by provider, please retry: %w", err)
	case errors.As(err, &nfErr):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("local model not available (%s). Install it with 'ollama pull %s' or choose another model. %w", model, model, err)
		}
		return fmt.Errorf("model not found (%s). Verify the model name or list known models with 'flowloom models show': %w", model, err)
	case errors.As(err, &qErr):
		return fmt.Errorf("quota exceeded for %s. Check billing or switch --provider: %w", provider, err)
	case errors.As(err, &brErr):
		return fmt.Errorf("request rejected by %s (try a smaller --max-tokens or another model): %w", provider, err)
	case errors.As(err, &sErr):
		return fmt.Errorf("provider error, please retry later: %w", err)
	}
	return err
}

// narrationOutput is the --json and .json file shape.
type narrationOutput struct {
	Provider    string          `json:"provider"`
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Commentary  *narrationText  `json:"commentary,omitempty"`
	Email       *narrationEmail `json:"email,omitempty"`
}

type narrationText struct {
	Content      string `json:"content"`
	RequestID    string `json:"request_id,omitempty"`
	PromptTokens int    `json:"prompt_tokens"`
}

type narrationEmail struct {
	narrationText
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (o *narrationOutput) add(res *narrative.Result) {
	t := narrationText{Content: res.Content, RequestID: res.RequestID, PromptTokens: res.PromptTokens}
	if res.Kind == narrative.KindEmail {
		e := narrative.ParseEmail(res.Content)
		o.Email = &narrationEmail{narrationText: t, Subject: e.Subject, Body: e.Body}
		return
	}
	o.Commentary = &t
}

// markdown renders the narration for terminals and .md files.
func (o *narrationOutput) markdown() string {
	var sb strings.Builder
	if o.Commentary != nil {
		sb.WriteString("## Commentary\n\n")
		sb.WriteString(o.Commentary.Content)
		sb.WriteString("\n")
	}
	if o.Email != nil {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("## Email\n\n")
		fmt.Fprintf(&sb, "Subject: %s\n\n%s\n", o.Email.Subject, o.Email.Body)
	}
	return sb.String()
}

type outputOptions struct {
	JSON       bool
	Quiet      bool
	OutputPath string
	Writer     io.Writer
}

func writeNarration(o *narrationOutput, opts outputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	if opts.JSON {
		b, err := utils.PrettyJSON(o)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(b))
	} else if !opts.Quiet {
		fmt.Fprint(w, o.markdown())
	}

	if opts.OutputPath == "" {
		return nil
	}
	var data []byte
	switch strings.ToLower(filepath.Ext(opts.OutputPath)) {
	case ".json":
		b, err := json.MarshalIndent(o, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		data = b
	default:
		data = []byte(o.markdown())
	}
	if err := utils.SafeWriteFile(opts.OutputPath, data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if !opts.JSON {
		fmt.Fprintf(w, "\n💾 Saved output to %s\n", opts.OutputPath)
	}
	return nil
}
