package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// AuthError indicates authentication/authorization failures (401/403).
type AuthError struct{ *APIError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.APIError.Error())
}

// RateLimitError indicates 429 responses and may include a Retry-After.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.APIError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.APIError.Error())
}

// ModelNotFoundError indicates the requested model is not available.
type ModelNotFoundError struct{ *APIError }

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model not found: %s", e.APIError.Error())
}

// BadRequestError indicates a 4xx request problem (e.g., 400 validation).
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return fmt.Sprintf("bad request: %s", e.APIError.Error()) }

// QuotaExceededError indicates billing/quota problems.
type QuotaExceededError struct{ *APIError }

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %s", e.APIError.Error())
}

// ServerError indicates 5xx errors from the provider.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return fmt.Sprintf("provider error: %s", e.APIError.Error()) }

// UnreachableError indicates the target runtime is not reachable (e.g., local Ollama down).
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "unreachable"
	}
	if e.Host != "" {
		return fmt.Sprintf("endpoint unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("endpoint unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// MissingKeyError is returned before any request when a hosted provider has no API key.
type MissingKeyError struct{ Provider string }

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("%s API key is missing", e.Provider)
}

// readAPIError decodes a non-2xx body. Providers use {"error":{"message","code"}},
// {"error":"..."} or a flat {"message","code"}.
func readAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	apiErr := &APIError{StatusCode: resp.StatusCode, Raw: raw, RequestID: extractRequestID(resp.Header)}
	src := raw
	switch v := raw["error"].(type) {
	case map[string]any:
		src = v
	case string:
		apiErr.Message = v
	}
	if msg, ok := src["message"].(string); ok && apiErr.Message == "" {
		apiErr.Message = msg
	}
	if code, ok := src["code"].(string); ok {
		apiErr.Code = code
	}
	if apiErr.Message == "" && len(raw) == 0 {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// classifyAPIError maps a generic APIError to the typed errors above.
func classifyAPIError(apiErr *APIError, h http.Header) error {
	sc := apiErr.StatusCode
	msg := apiErr.Message
	code := apiErr.Code
	switch {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return &AuthError{APIError: apiErr}
	case sc == http.StatusTooManyRequests:
		if code == "insufficient_quota" || containsAnyFold(msg, "quota", "billing") {
			return &QuotaExceededError{APIError: apiErr}
		}
		return &RateLimitError{APIError: apiErr, RetryAfter: retryAfter(h)}
	case sc == http.StatusNotFound:
		if code == "model_not_found" || containsAllFold(msg, "model", "not", "found") || containsAllFold(msg, "model", "does not exist") {
			return &ModelNotFoundError{APIError: apiErr}
		}
		return apiErr
	case sc == http.StatusBadRequest:
		if code == "model_not_found" || containsAllFold(msg, "model", "does not exist") || containsAllFold(msg, "model", "decommissioned") {
			return &ModelNotFoundError{APIError: apiErr}
		}
		return &BadRequestError{APIError: apiErr}
	case code == "quota_exceeded" || containsAnyFold(msg, "quota", "billing", "limit exceeded"):
		return &QuotaExceededError{APIError: apiErr}
	case sc >= 500 && sc <= 599:
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}

// classifyOpenAIError converts go-openai errors into this package's typed errors
// so callers handle every provider the same way.
func classifyOpenAIError(err error, host string) error {
	var oaErr *openai.APIError
	if errors.As(err, &oaErr) {
		apiErr := &APIError{StatusCode: oaErr.HTTPStatusCode, Message: oaErr.Message}
		if s, ok := oaErr.Code.(string); ok {
			apiErr.Code = s
		}
		if apiErr.Code == "" {
			apiErr.Code = oaErr.Type
		}
		return classifyAPIError(apiErr, nil)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		apiErr := &APIError{StatusCode: reqErr.HTTPStatusCode}
		if reqErr.Err != nil {
			apiErr.Message = reqErr.Err.Error()
		}
		return classifyAPIError(apiErr, nil)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var nerr net.Error
	if errors.As(err, &nerr) || isRetryableNetErr(err) {
		return &UnreachableError{Host: host, Err: err}
	}
	return err
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	var rl *RateLimitError
	var se *ServerError
	return errors.As(err, &rl) || errors.As(err, &se)
}

func containsAllFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if !containsFold(s, sub) {
			return false
		}
	}
	return true
}

func containsAnyFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if containsFold(s, sub) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	if s == "" || sub == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
