package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KaramelBytes/flowloom-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/flowloom-cli/internal/config"
	"github.com/KaramelBytes/flowloom-cli/internal/narrative"
	"github.com/KaramelBytes/flowloom-cli/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectModel(t *testing.T) {
	c := &cfgpkg.Global{Provider: "openai", Model: "gpt-4o"}
	assert.Equal(t, "explicit", selectModel(c, "openai", "explicit"))
	assert.Equal(t, "gpt-4o", selectModel(c, "openai", ""))
	// The configured model belongs to another provider.
	assert.Equal(t, ai.DefaultModel("groq"), selectModel(c, "groq", ""))
	assert.Equal(t, ai.DefaultModel("groq"), selectModel(nil, "groq", ""))
}

func TestResolveProvider(t *testing.T) {
	assert.Equal(t, ai.DefaultProvider, resolveProvider(nil, ""))
	assert.Equal(t, "ollama", resolveProvider(nil, "LOCAL"))
	assert.Equal(t, "openrouter", resolveProvider(&cfgpkg.Global{Provider: "openrouter"}, ""))
	assert.Equal(t, "openai", resolveProvider(&cfgpkg.Global{Provider: "openrouter"}, "openai"))
}

func TestEnforceBudget(t *testing.T) {
	assert.NoError(t, enforceBudget(0.02, 0))
	assert.NoError(t, enforceBudget(0.02, 0.05))
	assert.Error(t, enforceBudget(0.06, 0.05))
}

func TestBuildRuntimeOllamaHostOverride(t *testing.T) {
	c := &cfgpkg.Global{OllamaHost: "http://127.0.0.1:11434"}
	rt, provider, err := buildRuntime(c, runtimeOptions{ProviderFlag: "local", OllamaHost: "http://10.0.0.5:11434"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", provider)
	assert.IsType(t, &ai.OllamaClient{}, rt)

	_, _, err = buildRuntime(c, runtimeOptions{ProviderFlag: "nope"})
	assert.Error(t, err)
}

func TestFriendlyError(t *testing.T) {
	err := friendlyError(fmt.Errorf("generate commentary: %w", &ai.MissingKeyError{Provider: "openai"}), "openai", "gpt-4o-mini")
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	err = friendlyError(&ai.UnreachableError{Host: "http://127.0.0.1:1", Err: errors.New("refused")}, "ollama", "llama3:latest")
	assert.Contains(t, err.Error(), "Ollama not reachable at http://127.0.0.1:1")

	err = friendlyError(&ai.ModelNotFoundError{APIError: &ai.APIError{StatusCode: 404, Message: "missing"}}, "ollama", "llama3:latest")
	assert.Contains(t, err.Error(), "ollama pull llama3:latest")

	rl := &ai.RateLimitError{APIError: &ai.APIError{StatusCode: 429}, RetryAfter: 7 * time.Second}
	err = friendlyError(rl, "groq", "m")
	assert.Contains(t, err.Error(), "~7s")
	assert.True(t, errors.As(err, &rl))

	plain := errors.New("boom")
	assert.Same(t, plain, friendlyError(plain, "groq", "m"))
}

func TestNarrationKinds(t *testing.T) {
	k, err := narrationKinds("both")
	require.NoError(t, err)
	assert.Equal(t, []narrative.Kind{narrative.KindCommentary, narrative.KindEmail}, k)

	k, err = narrationKinds("email")
	require.NoError(t, err)
	assert.Equal(t, []narrative.Kind{narrative.KindEmail}, k)

	_, err = narrationKinds("poem")
	assert.Error(t, err)
}

func TestWriteNarration(t *testing.T) {
	o := &narrationOutput{Provider: "groq", Model: "llama3-8b-8192"}
	o.add(&narrative.Result{Kind: narrative.KindCommentary, Content: "Product A leads."})
	o.add(&narrative.Result{Kind: narrative.KindEmail, Content: "Subject: Q3 flows\n\nHi team,\nA leads."})
	require.NotNil(t, o.Email)
	assert.Equal(t, "Q3 flows", o.Email.Subject)

	dir := t.TempDir()
	var buf bytes.Buffer
	mdPath := filepath.Join(dir, "report.md")
	require.NoError(t, writeNarration(o, outputOptions{OutputPath: mdPath, Writer: &buf}))
	assert.Contains(t, buf.String(), "## Commentary")
	assert.Contains(t, buf.String(), "Saved output to "+mdPath)
	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "Subject: Q3 flows")

	buf.Reset()
	jsonPath := filepath.Join(dir, "report.json")
	require.NoError(t, writeNarration(o, outputOptions{JSON: true, OutputPath: jsonPath, Writer: &buf}))
	assert.Contains(t, buf.String(), `"provider": "groq"`)
	assert.NotContains(t, buf.String(), "Saved output")
	js, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(js), `"subject": "Q3 flows"`)
}

func TestResolveFormat(t *testing.T) {
	f, err := resolveFormat("table", false, "")
	require.NoError(t, err)
	assert.Equal(t, render.Table, f)

	f, err = resolveFormat("table", false, "out/chart.HTML")
	require.NoError(t, err)
	assert.Equal(t, render.HTML, f)

	f, err = resolveFormat("json", true, "chart.html")
	require.NoError(t, err)
	assert.Equal(t, render.JSON, f)

	_, err = resolveFormat("pdf", true, "")
	assert.Error(t, err)
}
