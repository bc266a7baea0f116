package ai

// PresetCatalog returns the built-in entries for a known provider. The result
// can be merged into or replace the in-memory catalog.
func PresetCatalog(provider string) (map[string]ModelInfo, bool) {
	if provider == "local" {
		provider = ProviderOllama
	}
	out := map[string]ModelInfo{}
	for k, v := range builtinCatalog() {
		if v.Provider == provider {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// DefaultModel is the model used when none is configured for provider.
func DefaultModel(provider string) string {
	name, _ := RecommendModel(provider, "cheap")
	return name
}

// RecommendModel returns a recommended model for a tier and provider.
// An empty provider means DefaultProvider. Tiers: cheap|balanced|high-context.
func RecommendModel(provider, tier string) (string, bool) {
	if provider == "" {
		provider = DefaultProvider
	}
	picks := map[string]map[string]string{
		ProviderGroq: {
			"cheap":        "llama3-8b-8192",
			"balanced":     "llama-3.3-70b-versatile",
			"high-context": "llama-3.1-8b-instant",
		},
		ProviderOpenAI: {
			"cheap":        "gpt-4o-mini",
			"balanced":     "gpt-4o",
			"high-context": "gpt-4.1-mini",
		},
		ProviderOpenRouter: {
			"cheap":        "deepseek/deepseek-r1:free",
			"balanced":     "openai/gpt-4o-mini",
			"high-context": "anthropic/claude-3.5-sonnet",
		},
		ProviderOllama: {
			"cheap":        "llama3:latest",
			"balanced":     "llama3.1:8b-instruct",
			"high-context": "phi3:mini-128k-instruct",
		},
	}
	name, ok := picks[provider][tier]
	return name, ok
}
