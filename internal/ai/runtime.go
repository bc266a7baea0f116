// Package ai holds the chat-completion runtimes used to narrate flow graphs.
package ai

import (
	"context"
	"errors"
	"fmt"
)

// Runtime is a chat-completion backend.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// StreamRuntime is an optional extension that supports streaming output.
// Implementors invoke onDelta with each partial content chunk.
type StreamRuntime interface {
	GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(string)) error
}

// Provider identifiers used for selection.
const (
	ProviderGroq       = "groq"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

// DefaultProvider is used when nothing is configured.
const DefaultProvider = ProviderGroq

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest is the provider-neutral completion request.
type GenerateRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Choice struct {
	Message Message `json:"message"`
}

// GenerateResponse mirrors the chat-completions response shape.
type GenerateResponse struct {
	ID        string   `json:"id"`
	Model     string   `json:"model,omitempty"`
	Choices   []Choice `json:"choices"`
	Usage     Usage    `json:"usage"`
	RequestID string   `json:"-"`
}

// Text returns the first choice's content, or "" when there is none.
func (r *GenerateResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// APIError represents a structured API error response.
type APIError struct {
	StatusCode int            `json:"-"`
	Code       string         `json:"code,omitempty"`
	Message    string         `json:"message,omitempty"`
	Raw        map[string]any `json:"-"`
	RequestID  string         `json:"-"`
}

func (e *APIError) Error() string {
	s := fmt.Sprintf("api error: status=%d", e.StatusCode)
	if e.Code != "" {
		s += " code=" + e.Code
	}
	if e.RequestID != "" {
		s += " request_id=" + e.RequestID
	}
	if e.Message != "" {
		s += " message=" + e.Message
	}
	return s
}

func validateRequest(req GenerateRequest) error {
	if req.Model == "" {
		return errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return errors.New("messages cannot be empty")
	}
	return nil
}
