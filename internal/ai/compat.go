package ai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// CompatClient drives any OpenAI-compatible chat-completions API (OpenAI, Groq)
// through go-openai.
type CompatClient struct {
	provider  string
	client    *openai.Client
	apiKey    string
	baseURL   string
	retryMax  int
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewCompatClient builds a client for provider. cfg.BaseURL overrides the
// SDK's default OpenAI root.
func NewCompatClient(provider string, cfg RuntimeConfig) *CompatClient {
	cfg = cfg.withDefaults(60*time.Second, 3, 500*time.Millisecond, 4*time.Second)
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
	return &CompatClient{
		provider:  provider,
		client:    openai.NewClientWithConfig(oc),
		apiKey:    cfg.APIKey,
		baseURL:   oc.BaseURL,
		retryMax:  cfg.RetryMax,
		baseDelay: cfg.BaseDelay,
		maxDelay:  cfg.MaxDelay,
	}
}

func (c *CompatClient) chatRequest(req GenerateRequest) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}
}

// Generate runs one chat completion, retrying rate limits and server errors.
func (c *CompatClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, &MissingKeyError{Provider: c.provider}
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	creq := c.chatRequest(req)
	bo := newBackoff(c.retryMax, c.baseDelay, c.maxDelay)
	var lastErr error
	for attempt := 1; attempt <= bo.attempts; attempt++ {
		resp, err := c.client.CreateChatCompletion(ctx, creq)
		if err == nil {
			out := &GenerateResponse{
				ID:        resp.ID,
				Model:     resp.Model,
				RequestID: resp.ID,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}
			for _, ch := range resp.Choices {
				out.Choices = append(out.Choices, Choice{Message: Message{Role: ch.Message.Role, Content: ch.Message.Content}})
			}
			return out, nil
		}
		lastErr = classifyOpenAIError(err, c.baseURL)
		if attempt == bo.attempts || !Retryable(lastErr) {
			break
		}
		var hint time.Duration
		var rl *RateLimitError
		if errors.As(lastErr, &rl) {
			hint = rl.RetryAfter
		}
		if werr := bo.wait(ctx, hint); werr != nil {
			return nil, werr
		}
	}
	return nil, lastErr
}

// GenerateStream streams deltas through the SDK's SSE reader.
func (c *CompatClient) GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(string)) error {
	if c.apiKey == "" {
		return &MissingKeyError{Provider: c.provider}
	}
	if err := validateRequest(req); err != nil {
		return err
	}
	creq := c.chatRequest(req)
	creq.Stream = true
	stream, err := c.client.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		return classifyOpenAIError(err, c.baseURL)
	}
	defer stream.Close()
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return classifyOpenAIError(err, c.baseURL)
		}
		if len(chunk.Choices) > 0 {
			if s := chunk.Choices[0].Delta.Content; s != "" {
				onDelta(s)
			}
		}
	}
}
