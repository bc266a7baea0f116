package utils_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/flowloom-cli/internal/utils"
)

func TestCountTokens(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"short", "ab", 1},
		{"simple", "hello world", 2},
		{"runes", strings.Repeat("→", 8), 2},
		{"long", strings.Repeat("a", 4000), 1000},
	}
	for _, c := range cases {
		if got := utils.CountTokens(c.in); got != c.want {
			t.Errorf("%s: got %d, want %d", c.name, got, c.want)
		}
	}
}

func TestTruncateToTokenLimit(t *testing.T) {
	text := strings.Repeat("abcd ", 1000)
	trunc := utils.TruncateToTokenLimit(text, 300)
	if n := utils.CountTokens(trunc); n > 300 {
		t.Fatalf("tokens=%d exceeds limit", n)
	}
	if !strings.HasPrefix(text, trunc) || trunc == "" {
		t.Fatalf("expected a non-empty prefix")
	}
	if utils.TruncateToTokenLimit("short", 10) != "short" {
		t.Fatalf("text under the limit must be unchanged")
	}
	if utils.TruncateToTokenLimit("anything", 0) != "" {
		t.Fatalf("zero limit must yield empty text")
	}
}

func TestTokenBreakdown(t *testing.T) {
	got := utils.TokenBreakdown(map[string]string{"system": "abcdefgh", "user": ""})
	if got["system"] != 2 || got["user"] != 0 {
		t.Fatalf("unexpected breakdown %v", got)
	}
}

func TestSafeWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "flow.json")
	if err := utils.SafeWriteFile(path, []byte("first")); err != nil {
		t.Fatalf("SafeWriteFile: %v", err)
	}
	if err := utils.SafeWriteFile(path, []byte("second")); err != nil {
		t.Fatalf("SafeWriteFile overwrite: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "second" {
		t.Fatalf("unexpected content %q (%v)", b, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestPrettyJSON(t *testing.T) {
	b, err := utils.PrettyJSON(map[string]int{"links": 2})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "{\n  \"links\": 2\n}" {
		t.Fatalf("unexpected json %q", b)
	}
}
