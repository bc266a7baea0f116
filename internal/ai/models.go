package ai

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
)

// Model metadata and simple pricing helpers for budget warnings.
// Prices are illustrative; verify against the provider's pricing page.

type ModelInfo struct {
	Name          string
	Provider      string  `json:",omitempty"`
	ContextTokens int     // approximate context window
	InputPerK     float64 // USD per 1K input tokens
	OutputPerK    float64 // USD per 1K output tokens
}

var (
	catalogMu sync.RWMutex
	models    = builtinCatalog()
)

func builtinCatalog() map[string]ModelInfo {
	entries := []ModelInfo{
		// Groq hosts open-weight models behind an OpenAI-compatible API.
		{Name: "llama3-8b-8192", Provider: ProviderGroq, ContextTokens: 8192, InputPerK: 0.00005, OutputPerK: 0.00008},
		{Name: "llama-3.1-8b-instant", Provider: ProviderGroq, ContextTokens: 131072, InputPerK: 0.00005, OutputPerK: 0.00008},
		{Name: "llama-3.3-70b-versatile", Provider: ProviderGroq, ContextTokens: 131072, InputPerK: 0.00059, OutputPerK: 0.00079},
		{Name: "gemma2-9b-it", Provider: ProviderGroq, ContextTokens: 8192, InputPerK: 0.0002, OutputPerK: 0.0002},

		{Name: "gpt-4o-mini", Provider: ProviderOpenAI, ContextTokens: 128000, InputPerK: 0.00015, OutputPerK: 0.0006},
		{Name: "gpt-4o", Provider: ProviderOpenAI, ContextTokens: 128000, InputPerK: 0.0025, OutputPerK: 0.01},
		{Name: "gpt-4.1-mini", Provider: ProviderOpenAI, ContextTokens: 1000000, InputPerK: 0.0004, OutputPerK: 0.0016},

		{Name: "deepseek/deepseek-r1:free", Provider: ProviderOpenRouter, ContextTokens: 128000},
		{Name: "openai/gpt-4o-mini", Provider: ProviderOpenRouter, ContextTokens: 128000, InputPerK: 0.0006, OutputPerK: 0.0024},
		{Name: "anthropic/claude-3.5-sonnet", Provider: ProviderOpenRouter, ContextTokens: 200000, InputPerK: 0.003, OutputPerK: 0.015},
		{Name: "meta-llama/llama-3.1-8b-instruct", Provider: ProviderOpenRouter, ContextTokens: 131072},
		{Name: "meta-llama/llama-3.1-70b-instruct", Provider: ProviderOpenRouter, ContextTokens: 131072},

		// Common local (Ollama) tags
		{Name: "llama3:latest", Provider: ProviderOllama, ContextTokens: 8192},
		{Name: "llama3.1:8b-instruct", Provider: ProviderOllama, ContextTokens: 8192},
		{Name: "mistral:7b-instruct", Provider: ProviderOllama, ContextTokens: 8192},
		{Name: "phi3:mini-128k-instruct", Provider: ProviderOllama, ContextTokens: 128000},
	}
	out := make(map[string]ModelInfo, len(entries))
	for _, e := range entries {
		out[e.Name] = e
	}
	return out
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	mi, ok := models[name]
	return mi, ok
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// LoadCatalogFromJSON loads a JSON object map[string]ModelInfo from a file path.
// Example entry:
// { "gpt-4o-mini": {"Name":"gpt-4o-mini","Provider":"openai","ContextTokens":128000,"InputPerK":0.00015,"OutputPerK":0.0006} }
func LoadCatalogFromJSON(path string) (map[string]ModelInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var m map[string]ModelInfo
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, err
	}
	for k, v := range m {
		if v.Name == "" {
			v.Name = k
			m[k] = v
		}
	}
	return m, nil
}

// OverrideCatalog replaces the in-memory catalog entirely.
func OverrideCatalog(m map[string]ModelInfo) {
	if m == nil {
		return
	}
	catalogMu.Lock()
	defer catalogMu.Unlock()
	models = make(map[string]ModelInfo, len(m))
	for k, v := range m {
		models[k] = v
	}
}

// MergeCatalog merges/overrides entries in the in-memory catalog.
func MergeCatalog(m map[string]ModelInfo) {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	for k, v := range m {
		models[k] = v
	}
}

// Catalog returns a shallow copy of the current model catalog.
func Catalog() map[string]ModelInfo {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	out := make(map[string]ModelInfo, len(models))
	for k, v := range models {
		out[k] = v
	}
	return out
}

// CatalogNames returns catalog keys sorted by provider, then name.
func CatalogNames() []string {
	cat := Catalog()
	names := make([]string, 0, len(cat))
	for k := range cat {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := cat[names[i]].Provider, cat[names[j]].Provider
		if pi != pj {
			return pi < pj
		}
		return names[i] < names[j]
	})
	return names
}
