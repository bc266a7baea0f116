// Package narrative turns a flow graph summary into LLM commentary and email drafts.
package narrative

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/flowloom-cli/internal/ai"
	"github.com/KaramelBytes/flowloom-cli/internal/flow"
	"github.com/KaramelBytes/flowloom-cli/internal/utils"
)

// Kind selects the kind of text to generate.
type Kind string

const (
	KindCommentary Kind = "commentary"
	KindEmail      Kind = "email"
)

// DefaultSubject is used when an email draft carries no Subject line.
const DefaultSubject = "Flow analysis summary"

// ErrEmptyGraph is returned when there is nothing to describe.
var ErrEmptyGraph = errors.New("graph has no links to describe")

// ParseKind accepts commentary|email (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "commentary", "insights":
		return KindCommentary, nil
	case "email", "mail":
		return KindEmail, nil
	}
	return "", fmt.Errorf("unknown narrative kind %q (use commentary or email)", s)
}

// Config holds per-call generation settings.
type Config struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Audience    string
	// DataTokenLimit caps the embedded summary, in estimated tokens. Zero
	// means no cap.
	DataTokenLimit int
}

// BuildMessages renders the system and user messages for kind. Email
// messages built here derive from the summary alone; see EmailMessages.
func BuildMessages(kind Kind, g *flow.Graph, cfg Config) ([]ai.Message, error) {
	switch kind {
	case KindCommentary:
		return commentaryMessages(g, cfg)
	case KindEmail:
		return EmailMessages(g, cfg, "")
	}
	return nil, fmt.Errorf("unknown narrative kind %q", kind)
}

func summaryText(g *flow.Graph, cfg Config) (string, error) {
	if g.Empty() || len(g.Edges) == 0 {
		return "", ErrEmptyGraph
	}
	b, err := g.SummaryJSON()
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}
	s := string(b)
	if cfg.DataTokenLimit > 0 && utils.CountTokens(s) > cfg.DataTokenLimit {
		s = utils.TruncateToTokenLimit(s, cfg.DataTokenLimit) + "\n[truncated]"
	}
	return s, nil
}

func audienceLine(cfg Config) string {
	if a := strings.TrimSpace(cfg.Audience); a != "" {
		return "\nWrite for this audience: " + a + "."
	}
	return ""
}

func commentaryMessages(g *flow.Graph, cfg Config) ([]ai.Message, error) {
	data, err := summaryText(g, cfg)
	if err != nil {
		return nil, err
	}
	var system, user string
	if g.Mode == flow.SingleSplit {
		category := g.Stages[0]
		system = "You are a revenue analyst and SaaS finance expert."
		user = fmt.Sprintf(`You are a financial analyst. Based on the following %s by %s data, provide:
- Key %s concentration observations
- Any risks related to reliance on a few %s values
- Recommendations to diversify or optimize %s.%s
Data:
%s`, g.Measure, category, strings.ToLower(g.Measure), category, strings.ToLower(g.Measure), audienceLine(cfg), data)
	} else {
		system = "You are a data analyst who explains flows between stages of a process."
		user = fmt.Sprintf(`The following data counts records moving between consecutive stages (%s). Provide:
- The dominant paths and where most records end up
- Where records fragment or drop off between stages
- Recommendations based on the flow patterns.%s
Data:
%s`, strings.Join(g.Stages, " → "), audienceLine(cfg), data)
	}
	return []ai.Message{{Role: "system", Content: system}, {Role: "user", Content: user}}, nil
}

// EmailMessages renders an email request. A non-empty commentary is used as
// the source; otherwise the graph summary is embedded directly.
func EmailMessages(g *flow.Graph, cfg Config, commentary string) ([]ai.Message, error) {
	data, err := summaryText(g, cfg)
	if err != nil {
		return nil, err
	}
	to := "stakeholders"
	if a := strings.TrimSpace(cfg.Audience); a != "" {
		to = a
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Draft a short professional email to %s summarizing the %s analysis below.\n", to, describe(g))
	sb.WriteString("Start with a line of the form 'Subject: ...', then a blank line, then the body.\n")
	if c := strings.TrimSpace(commentary); c != "" {
		sb.WriteString("Analysis:\n")
		sb.WriteString(c)
	} else {
		sb.WriteString("Data:\n")
		sb.WriteString(data)
	}
	return []ai.Message{
		{Role: "system", Content: "You write clear, concise business emails."},
		{Role: "user", Content: sb.String()},
	}, nil
}

func describe(g *flow.Graph) string {
	if g.Mode == flow.SingleSplit {
		return fmt.Sprintf("%s by %s", g.Measure, g.Stages[0])
	}
	return strings.Join(g.Stages, " → ") + " flow"
}

// TokensByRole sums the estimated tokens of msgs per role.
func TokensByRole(msgs []ai.Message) map[string]int {
	sections := map[string]string{}
	for _, m := range msgs {
		sections[m.Role] += m.Content
	}
	return utils.TokenBreakdown(sections)
}

// EstimatePromptTokens approximates the prompt size of msgs.
func EstimatePromptTokens(msgs []ai.Message) int {
	n := 0
	for _, m := range msgs {
		n += utils.CountTokens(m.Content)
	}
	return n
}
