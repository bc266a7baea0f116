package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopBeforeInit(t *testing.T) {
	Reset()
	assert.NotPanics(t, func() {
		Debug("dropped")
		Info("dropped", "k", 1)
		Warn("dropped")
		Error("dropped")
	})
}

func TestLevelsAndKeyvals(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Writer: &buf})
	t.Cleanup(Reset)

	Debug("hidden")
	Info("graph built", "links", 4)
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "graph built")
	assert.Contains(t, out, "links=4")

	buf.Reset()
	Init(Options{Writer: &buf, Debug: true})
	Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Writer: &buf, JSON: true})
	t.Cleanup(Reset)

	Warn("slow request", "path", "/api/flow")
	line := strings.TrimSpace(buf.String())
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "slow request", rec["msg"])
	assert.Equal(t, "/api/flow", rec["path"])
	assert.Equal(t, "warn", rec["level"])
}
