package evaluation

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"

	"github.com/research-agent/backend/internal/llm"
)

// judgeFunc adapts a function to llm.Completer.
type judgeFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

func (f judgeFunc) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return f(ctx, req)
}

// countingJudge wraps a judge and counts calls.
type countingJudge struct {
	next  llm.Completer
	calls atomic.Int32
}

func (c *countingJudge) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	c.calls.Add(1)
	return c.next.Complete(ctx, req)
}

func roleOf(req llm.CompletionRequest) (Role, bool) {
	for r := Role(0); r < roleCount; r++ {
		if strings.Contains(req.SystemPrompt, "("+r.String()+")") {
			return r, true
		}
	}
	return 0, false
}

func isEscalation(req llm.CompletionRequest) bool {
	return req.Model == DefaultConfig().EscalationModel
}

func reply(content string) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{
		Content: content,
		Usage:   llm.Usage{TotalTokens: 42},
	}, nil
}

func judgeJSON(scores map[string]float64, confidence float64, critique string) string {
	data, _ := json.Marshal(map[string]any{
		"scores":     scores,
		"confidence": confidence,
		"critique":   critique,
	})
	return string(data)
}

// uniformJudge gives every panel role the same scores.
func uniformJudge(scores map[string]float64, confidence float64) judgeFunc {
	return func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return reply(judgeJSON(scores, confidence, "looks fine"))
	}
}
