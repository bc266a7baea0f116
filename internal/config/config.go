package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/flowloom-cli/internal/ai"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DirName is the per-user config directory under $HOME.
const DirName = ".flowloom"

// Global configuration structure.
type Global struct {
	Provider         string  `mapstructure:"provider" yaml:"provider"`
	Model            string  `mapstructure:"model" yaml:"model"`
	APIKey           string  `mapstructure:"api_key" yaml:"api_key"`
	GroqAPIKey       string  `mapstructure:"groq_api_key" yaml:"groq_api_key,omitempty"`
	OpenAIAPIKey     string  `mapstructure:"openai_api_key" yaml:"openai_api_key,omitempty"`
	OpenRouterAPIKey string  `mapstructure:"openrouter_api_key" yaml:"openrouter_api_key,omitempty"`
	BaseURL          string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	MaxTokens        int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature      float64 `mapstructure:"temperature" yaml:"temperature"`
	Audience         string  `mapstructure:"audience" yaml:"audience,omitempty"`

	// Graph defaults
	RootLabel string `mapstructure:"root_label" yaml:"root_label"`

	// Web UI
	ServerAddr  string `mapstructure:"server_addr" yaml:"server_addr"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`

	// Models catalog auto-sync
	ModelsCatalogURL string `mapstructure:"models_catalog_url" yaml:"models_catalog_url,omitempty"`
	ModelsAutoSync   bool   `mapstructure:"models_auto_sync" yaml:"models_auto_sync"`
	ModelsMerge      bool   `mapstructure:"models_merge" yaml:"models_merge"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`
}

// Keys lists the settable config keys in display order.
var Keys = []string{
	"provider", "model", "api_key", "groq_api_key", "openai_api_key", "openrouter_api_key", "base_url",
	"max_tokens", "temperature", "audience", "root_label", "server_addr", "max_upload_mb",
	"models_catalog_url", "models_auto_sync", "models_merge",
	"http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms",
	"ollama_host", "ollama_timeout_sec",
}

// LoadEnv reads a .env file from the working directory when present.
// Variables already set in the process environment win.
func LoadEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// DefaultPath returns ~/.flowloom/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, DirName, "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.flowloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: FLOWLOOM_* env > config file > provider env fallbacks > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("FLOWLOOM")
	v.AutomaticEnv()

	v.SetDefault("provider", ai.DefaultProvider)
	v.SetDefault("model", "")
	v.SetDefault("api_key", "")
	v.SetDefault("groq_api_key", "")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openrouter_api_key", "")
	v.SetDefault("base_url", "")
	v.SetDefault("max_tokens", 1024)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("audience", "")
	v.SetDefault("root_label", "Total")
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("max_upload_mb", 32)
	v.SetDefault("models_catalog_url", "")
	v.SetDefault("models_auto_sync", false)
	v.SetDefault("models_merge", true)
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("ollama_host", ai.DefaultOllamaHost)
	v.SetDefault("ollama_timeout_sec", 60)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, DirName))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.applyEnvFallbacks()
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "local" {
		c.Provider = ai.ProviderOllama
	}
	if c.Model == "" {
		c.Model = ai.DefaultModel(c.Provider)
	}
	return &c, nil
}

// applyEnvFallbacks fills provider keys from the providers' conventional
// variables when neither the file nor FLOWLOOM_* set them.
func (c *Global) applyEnvFallbacks() {
	fill := func(dst *string, name string) {
		if *dst == "" {
			*dst = os.Getenv(name)
		}
	}
	fill(&c.GroqAPIKey, "GROQ_API_KEY")
	fill(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	fill(&c.OpenRouterAPIKey, "OPENROUTER_API_KEY")
	if h := os.Getenv("OLLAMA_HOST"); h != "" && os.Getenv("FLOWLOOM_OLLAMA_HOST") == "" && c.OllamaHost == ai.DefaultOllamaHost {
		if !strings.Contains(h, "://") {
			h = "http://" + h
		}
		c.OllamaHost = h
	}
}

// KeyFor returns the API key for provider. A provider-specific key wins over
// the generic api_key.
func (c *Global) KeyFor(provider string) string {
	var k string
	switch strings.ToLower(provider) {
	case ai.ProviderGroq:
		k = c.GroqAPIKey
	case ai.ProviderOpenAI:
		k = c.OpenAIAPIKey
	case ai.ProviderOpenRouter:
		k = c.OpenRouterAPIKey
	}
	if k == "" {
		k = c.APIKey
	}
	return k
}

// RuntimeConfig assembles the factory settings for provider.
func (c *Global) RuntimeConfig(provider string) ai.RuntimeConfig {
	rc := ai.RuntimeConfig{
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMax:    c.RetryMaxAttempts,
		BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		APIKey:      c.KeyFor(provider),
		BaseURL:     c.BaseURL,
	}
	if strings.EqualFold(provider, ai.ProviderOllama) {
		rc.Host = c.OllamaHost
		rc.APIKey = ""
		if c.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(c.OllamaTimeoutSec) * time.Second
		}
	}
	return rc
}

// MaxUploadBytes converts MaxUploadMB to bytes.
func (c *Global) MaxUploadBytes() int64 {
	if c.MaxUploadMB <= 0 {
		return 32 << 20
	}
	return int64(c.MaxUploadMB) << 20
}

// Set assigns a single key from its string form.
func (c *Global) Set(key, val string) error {
	parseInt := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	parseBool := func() (bool, error) {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return false, fmt.Errorf("invalid bool for %s: %v", key, val)
		}
		return b, nil
	}
	var err error
	switch key {
	case "provider":
		p := strings.ToLower(val)
		if p == "local" {
			p = ai.ProviderOllama
		}
		if _, ok := ai.GetRuntime(p, ai.RuntimeConfig{}); !ok {
			return fmt.Errorf("invalid provider: %s (use %s)", val, strings.Join(ai.Providers(), ", "))
		}
		c.Provider = p
	case "model":
		c.Model = val
	case "api_key":
		c.APIKey = val
	case "groq_api_key":
		c.GroqAPIKey = val
	case "openai_api_key":
		c.OpenAIAPIKey = val
	case "openrouter_api_key":
		c.OpenRouterAPIKey = val
	case "base_url":
		c.BaseURL = val
	case "max_tokens":
		c.MaxTokens, err = parseInt()
	case "temperature":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil || f < 0 || f > 2 {
			return fmt.Errorf("invalid float for temperature: %v (use 0..2)", val)
		}
		c.Temperature = f
	case "audience":
		c.Audience = val
	case "root_label":
		if strings.TrimSpace(val) == "" {
			return fmt.Errorf("root_label cannot be empty")
		}
		c.RootLabel = val
	case "server_addr":
		c.ServerAddr = val
	case "max_upload_mb":
		c.MaxUploadMB, err = parseInt()
	case "models_catalog_url":
		c.ModelsCatalogURL = val
	case "models_auto_sync":
		c.ModelsAutoSync, err = parseBool()
	case "models_merge":
		c.ModelsMerge, err = parseBool()
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = parseInt()
	case "retry_max_attempts":
		c.RetryMaxAttempts, err = parseInt()
	case "retry_base_delay_ms":
		c.RetryBaseDelayMs, err = parseInt()
	case "retry_max_delay_ms":
		c.RetryMaxDelayMs, err = parseInt()
	case "ollama_host":
		c.OllamaHost = strings.TrimRight(val, "/")
	case "ollama_timeout_sec":
		c.OllamaTimeoutSec, err = parseInt()
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}
