package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OpenRouterBaseURL is the default chat-completions root.
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterClient talks to OpenRouter's chat-completions API over plain HTTP.
type OpenRouterClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	retryMax   int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewOpenRouterClient returns a client with default timeouts and retry strategy.
func NewOpenRouterClient(apiKey string) *OpenRouterClient {
	return NewOpenRouterClientWithConfig(RuntimeConfig{APIKey: apiKey})
}

// NewOpenRouterClientWithConfig applies timeouts, retry/backoff and an optional
// base URL (used in tests) from cfg.
func NewOpenRouterClientWithConfig(cfg RuntimeConfig) *OpenRouterClient {
	cfg = cfg.withDefaults(60*time.Second, 3, 500*time.Millisecond, 4*time.Second)
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = OpenRouterBaseURL
	}
	return &OpenRouterClient{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		apiKey:     cfg.APIKey,
		baseURL:    base,
		retryMax:   cfg.RetryMax,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
	}
}

func (c *OpenRouterClient) newRequest(ctx context.Context, payload []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", "https://github.com/KaramelBytes/flowloom-cli")
	req.Header.Set("X-Title", "flowloom")
	return req, nil
}

// Generate posts a chat completion, retrying 429 and 5xx responses with
// jittered exponential backoff. A Retry-After header overrides the delay.
func (c *OpenRouterClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, &MissingKeyError{Provider: ProviderOpenRouter}
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	bo := newBackoff(c.retryMax, c.baseDelay, c.maxDelay)
	var lastErr error
	for attempt := 1; attempt <= bo.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		httpReq, err := c.newRequest(ctx, payload)
		if err != nil {
			return nil, err
		}
		out, hint, err := c.do(httpReq)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if attempt == bo.attempts || !(Retryable(err) || isRetryableNetErr(err)) {
			break
		}
		if werr := bo.wait(ctx, hint); werr != nil {
			return nil, werr
		}
	}
	return nil, lastErr
}

// do performs one attempt. The returned duration is a Retry-After hint.
func (c *OpenRouterClient) do(httpReq *http.Request) (*GenerateResponse, time.Duration, error) {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isRetryableNetErr(err) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := readAPIError(resp)
		hint := time.Duration(0)
		if retryableStatus(resp.StatusCode) {
			hint = retryAfter(resp.Header)
		}
		return nil, hint, classifyAPIError(apiErr, resp.Header)
	}
	var out GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, 0, fmt.Errorf("decode response: %w", err)
	}
	out.RequestID = extractRequestID(resp.Header)
	if out.RequestID == "" {
		out.RequestID = out.ID
	}
	return &out, 0, nil
}

// GenerateStream streams content using OpenRouter's SSE stream.
func (c *OpenRouterClient) GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(string)) error {
	if c.apiKey == "" {
		return &MissingKeyError{Provider: ProviderOpenRouter}
	}
	if err := validateRequest(req); err != nil {
		return err
	}
	payload := map[string]any{
		"model":    req.Model,
		"messages": req.Messages,
		"stream":   true,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := c.newRequest(ctx, b)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyAPIError(readAPIError(resp), resp.Header)
	}

	type streamDelta struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
	}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}
		var d streamDelta
		if err := json.Unmarshal([]byte(data), &d); err == nil && len(d.Choices) > 0 {
			if s := d.Choices[0].Delta.Content; s != "" {
				onDelta(s)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read: %w", err)
	}
	return nil
}
