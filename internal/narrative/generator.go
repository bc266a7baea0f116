package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/flowloom-cli/internal/ai"
	"github.com/KaramelBytes/flowloom-cli/internal/flow"
	"github.com/KaramelBytes/flowloom-cli/internal/logger"
)

// ErrNoRuntime is returned by a Generator without a Runtime.
var ErrNoRuntime = errors.New("no narrative runtime configured")

// Result is one generated text.
type Result struct {
	Kind         Kind   `json:"kind"`
	Content      string `json:"content"`
	Model        string `json:"model,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
	PromptTokens int    `json:"prompt_tokens"`
}

// Generator calls Runtime with prompts derived from a graph. It only reads the
// graph, so a failed call leaves it untouched.
type Generator struct {
	Runtime ai.Runtime
	Config  Config
}

// Commentary generates analyst commentary for g.
func (gen *Generator) Commentary(ctx context.Context, g *flow.Graph) (*Result, error) {
	msgs, err := commentaryMessages(g, gen.Config)
	if err != nil {
		return nil, err
	}
	return gen.run(ctx, KindCommentary, msgs, nil)
}

// Email drafts an email for g, building on commentary when given.
func (gen *Generator) Email(ctx context.Context, g *flow.Graph, commentary string) (*Result, error) {
	msgs, err := EmailMessages(g, gen.Config, commentary)
	if err != nil {
		return nil, err
	}
	return gen.run(ctx, KindEmail, msgs, nil)
}

// Stream is like Commentary or Email but reports text deltas as they arrive
// when the runtime supports streaming. Other runtimes deliver the full text
// in a single delta.
func (gen *Generator) Stream(ctx context.Context, kind Kind, g *flow.Graph, commentary string, onDelta func(string)) (*Result, error) {
	var msgs []ai.Message
	var err error
	if kind == KindEmail {
		msgs, err = EmailMessages(g, gen.Config, commentary)
	} else {
		msgs, err = BuildMessages(kind, g, gen.Config)
	}
	if err != nil {
		return nil, err
	}
	return gen.run(ctx, kind, msgs, onDelta)
}

func (gen *Generator) request(msgs []ai.Message) ai.GenerateRequest {
	return ai.GenerateRequest{
		Model:       gen.Config.Model,
		Messages:    msgs,
		MaxTokens:   gen.Config.MaxTokens,
		Temperature: gen.Config.Temperature,
	}
}

func (gen *Generator) run(ctx context.Context, kind Kind, msgs []ai.Message, onDelta func(string)) (*Result, error) {
	if gen.Runtime == nil {
		return nil, ErrNoRuntime
	}
	est := EstimatePromptTokens(msgs)
	logger.Debug("narrative request", "kind", kind, "model", gen.Config.Model, "prompt_tokens_est", est)

	if sr, ok := gen.Runtime.(ai.StreamRuntime); ok && onDelta != nil {
		var sb strings.Builder
		err := sr.GenerateStream(ctx, gen.request(msgs), func(d string) {
			sb.WriteString(d)
			onDelta(d)
		})
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", kind, err)
		}
		return finish(kind, sb.String(), gen.Config.Model, "", est)
	}

	resp, err := gen.Runtime.Generate(ctx, gen.request(msgs))
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", kind, err)
	}
	model := resp.Model
	if model == "" {
		model = gen.Config.Model
	}
	prompt := resp.Usage.PromptTokens
	if prompt == 0 {
		prompt = est
	}
	res, err := finish(kind, resp.Text(), model, resp.RequestID, prompt)
	if err == nil && onDelta != nil {
		onDelta(res.Content)
	}
	return res, err
}

func finish(kind Kind, content, model, requestID string, promptTokens int) (*Result, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("generate %s: empty response from model", kind)
	}
	logger.Debug("narrative response", "kind", kind, "request_id", requestID, "chars", len(content))
	return &Result{Kind: kind, Content: content, Model: model, RequestID: requestID, PromptTokens: promptTokens}, nil
}
