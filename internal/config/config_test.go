package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KaramelBytes/flowloom-cli/internal/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{
		"GROQ_API_KEY", "OPENAI_API_KEY", "OPENROUTER_API_KEY", "OLLAMA_HOST",
		"FLOWLOOM_PROVIDER", "FLOWLOOM_MODEL", "FLOWLOOM_API_KEY", "FLOWLOOM_MAX_TOKENS", "FLOWLOOM_OLLAMA_HOST",
	} {
		t.Setenv(k, "")
	}
	return home
}

func TestLoadDefaults(t *testing.T) {
	isolateEnv(t)
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ai.ProviderGroq, c.Provider)
	assert.Equal(t, "llama3-8b-8192", c.Model)
	assert.Equal(t, "Total", c.RootLabel)
	assert.Equal(t, 3, c.RetryMaxAttempts)
	assert.Equal(t, ai.DefaultOllamaHost, c.OllamaHost)
	assert.Equal(t, int64(32<<20), c.MaxUploadBytes())
}

func TestLoadFileEnvAndFallbacks(t *testing.T) {
	home := isolateEnv(t)
	dir := filepath.Join(home, DirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	body := "provider: openai\nmax_tokens: 512\ntemperature: 0.2\nroot_label: All revenue\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))

	t.Setenv("FLOWLOOM_MAX_TOKENS", "2048")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OLLAMA_HOST", "10.0.0.5:11434")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ai.ProviderOpenAI, c.Provider)
	assert.Equal(t, "gpt-4o-mini", c.Model)
	assert.Equal(t, 2048, c.MaxTokens)
	assert.InDelta(t, 0.2, c.Temperature, 1e-9)
	assert.Equal(t, "All revenue", c.RootLabel)
	assert.Equal(t, "sk-env", c.KeyFor(ai.ProviderOpenAI))
	assert.Equal(t, "http://10.0.0.5:11434", c.OllamaHost)
}

func TestLoadExplicitFile(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")

	c, err := Load(path)
	require.NoError(t, err, "missing explicit file falls back to defaults")
	assert.Equal(t, ai.ProviderGroq, c.Provider)

	require.NoError(t, os.WriteFile(path, []byte("provider: [not, a, string\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Set("provider", "local"))
	require.NoError(t, c.Set("model", "mistral:7b-instruct"))
	require.NoError(t, c.Set("ollama_host", "http://gpu-box:11434/"))
	require.NoError(t, c.Set("models_auto_sync", "true"))
	require.NoError(t, Save(c, path))

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ai.ProviderOllama, again.Provider)
	assert.Equal(t, "mistral:7b-instruct", again.Model)
	assert.Equal(t, "http://gpu-box:11434", again.OllamaHost)
	assert.True(t, again.ModelsAutoSync)
}

func TestSetRejectsBadValues(t *testing.T) {
	c := &Global{}
	assert.Error(t, c.Set("provider", "anthropic"))
	assert.Error(t, c.Set("temperature", "3"))
	assert.Error(t, c.Set("max_tokens", "-1"))
	assert.Error(t, c.Set("models_merge", "maybe"))
	assert.Error(t, c.Set("root_label", "  "))
	assert.Error(t, c.Set("nope", "x"))
}

func TestKeyForAndRuntimeConfig(t *testing.T) {
	c := &Global{
		APIKey:           "generic",
		GroqAPIKey:       "gsk",
		HTTPTimeoutSec:   10,
		RetryMaxAttempts: 4,
		RetryBaseDelayMs: 100,
		RetryMaxDelayMs:  900,
		OllamaHost:       "http://127.0.0.1:11434",
		OllamaTimeoutSec: 90,
	}
	assert.Equal(t, "gsk", c.KeyFor("GROQ"))
	assert.Equal(t, "generic", c.KeyFor(ai.ProviderOpenRouter))

	rc := c.RuntimeConfig(ai.ProviderGroq)
	assert.Equal(t, 10*time.Second, rc.HTTPTimeout)
	assert.Equal(t, 4, rc.RetryMax)
	assert.Equal(t, 100*time.Millisecond, rc.BaseDelay)
	assert.Equal(t, 900*time.Millisecond, rc.MaxDelay)
	assert.Equal(t, "gsk", rc.APIKey)

	oc := c.RuntimeConfig(ai.ProviderOllama)
	assert.Equal(t, "http://127.0.0.1:11434", oc.Host)
	assert.Equal(t, 90*time.Second, oc.HTTPTimeout)
	assert.Empty(t, oc.APIKey)
}

func TestLoadEnvFile(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GROQ_API_KEY=gsk_from_dotenv\n"), 0o644))
	os.Unsetenv("GROQ_API_KEY")
	LoadEnv(path)
	t.Cleanup(func() { os.Unsetenv("GROQ_API_KEY") })

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gsk_from_dotenv", c.KeyFor(ai.ProviderGroq))
}
