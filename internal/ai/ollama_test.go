package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestOllamaGenerateMapsUsage(t *testing.T) {
	var captured ollamaChatRequest
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":             "llama3:latest",
			"message":           map[string]any{"role": "assistant", "content": "three sources feed two targets"},
			"done":              true,
			"prompt_eval_count": 40,
			"eval_count":        7,
		})
	}))
	defer srv.Close()

	c := NewOllamaClientWithConfig(RuntimeConfig{Host: srv.URL + "/", HTTPTimeout: 2 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Generate(ctx, GenerateRequest{
		Model:       "llama3:latest",
		Messages:    []Message{{Role: "system", Content: "analyst"}, {Role: "user", Content: "edges"}},
		MaxTokens:   32,
		Temperature: 0.2,
	})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if resp.Text() != "three sources feed two targets" {
		t.Fatalf("unexpected text %q", resp.Text())
	}
	if resp.Usage.PromptTokens != 40 || resp.Usage.CompletionTokens != 7 || resp.Usage.TotalTokens != 47 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
	if !strings.HasPrefix(resp.RequestID, "ollama_") {
		t.Fatalf("expected local request id, got %q", resp.RequestID)
	}
	if captured.Stream || len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Fatalf("unexpected request %+v", captured)
	}
	if captured.Options["num_predict"] != float64(32) || captured.Options["temperature"] != 0.2 {
		t.Fatalf("unexpected options %v", captured.Options)
	}
}

func TestOllamaModelNotPulled(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "model 'mistral:7b-instruct' not found, try pulling it first"})
	}))
	defer srv.Close()
	c := NewOllamaClient(srv.URL, 2*time.Second, 3, time.Millisecond, time.Millisecond)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "mistral:7b-instruct", Messages: []Message{{Role: "user", Content: "hi"}}})
	var mnf *ModelNotFoundError
	if !errors.As(err, &mnf) {
		t.Fatalf("expected ModelNotFoundError, got %T %v", err, err)
	}
	if !strings.Contains(mnf.Message, "try pulling") {
		t.Fatalf("expected message from body, got %q", mnf.Message)
	}
}

func TestOllamaRejectsEmptyMessages(t *testing.T) {
	c := NewOllamaClient("", 2*time.Second, 1, 0, 0)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "llama3:latest"})
	if err == nil || err.Error() != "messages cannot be empty" {
		t.Fatalf("expected 'messages cannot be empty' error, got: %v", err)
	}
	err = c.GenerateStream(context.Background(), GenerateRequest{Model: "llama3:latest"}, func(string) {})
	if err == nil || err.Error() != "messages cannot be empty" {
		t.Fatalf("expected 'messages cannot be empty' error, got: %v", err)
	}
}

func TestOllamaStream(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			http.Error(w, `{"error":"expected stream"}`, http.StatusBadRequest)
			return
		}
		for _, s := range []string{"North ", "leads."} {
			_, _ = fmt.Fprintf(w, "{\"message\":{\"role\":\"assistant\",\"content\":%q},\"done\":false}\n", s)
		}
		_, _ = fmt.Fprint(w, "{\"message\":{\"role\":\"assistant\",\"content\":\"\"},\"done\":true}\n")
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0)
	var sb strings.Builder
	if err := c.GenerateStream(context.Background(), GenerateRequest{Model: "llama3:latest", Messages: []Message{{Role: "user", Content: "go"}}}, func(d string) { sb.WriteString(d) }); err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	if sb.String() != "North leads." {
		t.Fatalf("unexpected stream text %q", sb.String())
	}
}

func TestOllamaUnreachable(t *testing.T) {
	c := NewOllamaClient("http://127.0.0.1:1", 500*time.Millisecond, 1, 0, 0)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "llama3:latest", Messages: []Message{{Role: "user", Content: "hi"}}})
	var ue *UnreachableError
	if !errors.As(err, &ue) || ue.Host != "http://127.0.0.1:1" {
		t.Fatalf("expected UnreachableError for host, got %v", err)
	}
}
