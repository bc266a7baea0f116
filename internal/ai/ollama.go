package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaHost is where a local Ollama listens by default.
const DefaultOllamaHost = "http://127.0.0.1:11434"

// OllamaClient is a minimal HTTP client for a local Ollama runtime.
type OllamaClient struct {
	httpClient *http.Client
	host       string
	retryMax   int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewOllamaClient creates a new client targeting the given host (e.g., http://127.0.0.1:11434).
func NewOllamaClient(host string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *OllamaClient {
	return NewOllamaClientWithConfig(RuntimeConfig{
		Host:        host,
		HTTPTimeout: httpTimeout,
		RetryMax:    retryMax,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
	})
}

// NewOllamaClientWithConfig reads Host and the retry knobs from cfg.
func NewOllamaClientWithConfig(cfg RuntimeConfig) *OllamaClient {
	cfg = cfg.withDefaults(60*time.Second, 2, 200*time.Millisecond, time.Second)
	host := strings.TrimRight(cfg.Host, "/")
	if host == "" {
		host = DefaultOllamaHost
	}
	return &OllamaClient{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		host:       host,
		retryMax:   cfg.RetryMax,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
	}
}

// Structures aligned with Ollama /api/chat
type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`
}

func (c *OllamaClient) payload(req GenerateRequest, stream bool) ([]byte, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	oreq := ollamaChatRequest{
		Model:    req.Model,
		Messages: make([]ollamaChatMessage, len(req.Messages)),
		Stream:   stream,
		Options:  map[string]any{},
	}
	for i, m := range req.Messages {
		oreq.Messages[i] = ollamaChatMessage(m)
	}
	if req.Temperature > 0 {
		oreq.Options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		oreq.Options["num_predict"] = req.MaxTokens
	}
	b, err := json.Marshal(oreq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return b, nil
}

func (c *OllamaClient) post(ctx context.Context, payload []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(httpReq)
}

// ollamaError classifies a non-2xx reply. Ollama answers 404 for a model that
// has not been pulled.
func ollamaError(resp *http.Response) error {
	apiErr := readAPIError(resp)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &ModelNotFoundError{APIError: apiErr}
	case resp.StatusCode >= 500:
		return &ServerError{APIError: apiErr}
	case resp.StatusCode == http.StatusBadRequest:
		return &BadRequestError{APIError: apiErr}
	}
	return apiErr
}

// Generate sends a non-streaming chat request and maps the reply to GenerateResponse.
func (c *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	payload, err := c.payload(req, false)
	if err != nil {
		return nil, err
	}
	bo := newBackoff(c.retryMax, c.baseDelay, c.maxDelay)
	var lastErr error
	for attempt := 1; attempt <= bo.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := c.once(ctx, payload)
		if err == nil {
			return out, nil
		}
		lastErr = err
		var unreachable *UnreachableError
		retry := Retryable(err) || (errors.As(err, &unreachable) && isRetryableNetErr(unreachable.Err))
		if attempt == bo.attempts || !retry {
			break
		}
		if werr := bo.wait(ctx, 0); werr != nil {
			return nil, werr
		}
	}
	return nil, lastErr
}

func (c *OllamaClient) once(ctx context.Context, payload []byte) (*GenerateResponse, error) {
	resp, err := c.post(ctx, payload)
	if err != nil {
		return nil, &UnreachableError{Host: c.host, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, ollamaError(resp)
	}
	var oresp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&oresp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &GenerateResponse{
		Model:   oresp.Model,
		Choices: []Choice{{Message: Message{Role: "assistant", Content: oresp.Message.Content}}},
		Usage: Usage{
			PromptTokens:     oresp.PromptEvalCount,
			CompletionTokens: oresp.EvalCount,
			TotalTokens:      oresp.PromptEvalCount + oresp.EvalCount,
		},
		// Ollama has no request ids; a local one keeps logs correlatable.
		RequestID: fmt.Sprintf("ollama_%d", time.Now().UnixNano()),
	}, nil
}

// GenerateStream streams newline-delimited JSON chunks from /api/chat.
func (c *OllamaClient) GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(string)) error {
	payload, err := c.payload(req, true)
	if err != nil {
		return err
	}
	resp, err := c.post(ctx, payload)
	if err != nil {
		return &UnreachableError{Host: c.host, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ollamaError(resp)
	}
	dec := json.NewDecoder(resp.Body)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var chunk ollamaChatResponse
		if err := dec.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode stream: %w", err)
		}
		if s := chunk.Message.Content; s != "" {
			onDelta(s)
		}
		if chunk.Done {
			return nil
		}
	}
}
