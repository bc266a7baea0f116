package ai

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RuntimeFactory builds a Runtime from the generic config below.
type RuntimeFactory func(RuntimeConfig) Runtime

// RuntimeConfig carries common knobs used by runtimes. It is passed explicitly
// at construction; no runtime reads keys from the environment itself.
type RuntimeConfig struct {
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Hosted providers
	APIKey  string
	BaseURL string
	// Ollama
	Host string
}

func (c RuntimeConfig) withDefaults(timeout time.Duration, retries int, base, limit time.Duration) RuntimeConfig {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = timeout
	}
	if c.RetryMax <= 0 {
		c.RetryMax = retries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = base
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = limit
	}
	return c
}

var registry = map[string]RuntimeFactory{}

// RegisterRuntime registers a provider name with its factory.
func RegisterRuntime(name string, f RuntimeFactory) { registry[strings.ToLower(name)] = f }

// GetRuntime creates a Runtime for the given provider if registered.
func GetRuntime(name string, cfg RuntimeConfig) (Runtime, bool) {
	if f, ok := registry[strings.ToLower(strings.TrimSpace(name))]; ok {
		return f(cfg), true
	}
	return nil, false
}

// NewRuntime is GetRuntime with an error naming the known providers.
func NewRuntime(name string, cfg RuntimeConfig) (Runtime, error) {
	if name == "" {
		name = DefaultProvider
	}
	rt, ok := GetRuntime(name, cfg)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %s)", name, strings.Join(Providers(), ", "))
	}
	return rt, nil
}

// Providers lists registered provider names.
func Providers() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func init() {
	RegisterRuntime(ProviderGroq, func(c RuntimeConfig) Runtime {
		if c.BaseURL == "" {
			c.BaseURL = GroqBaseURL
		}
		return NewCompatClient(ProviderGroq, c)
	})
	RegisterRuntime(ProviderOpenAI, func(c RuntimeConfig) Runtime {
		return NewCompatClient(ProviderOpenAI, c)
	})
	RegisterRuntime(ProviderOpenRouter, func(c RuntimeConfig) Runtime {
		return NewOpenRouterClientWithConfig(c)
	})
	RegisterRuntime(ProviderOllama, func(c RuntimeConfig) Runtime {
		return NewOllamaClientWithConfig(c)
	})
}
