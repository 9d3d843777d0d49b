package evaluation

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/research-agent/backend/internal/llm"
)

func TestEvaluateWithRoleRepairsResponse(t *testing.T) {
	raw := "Sure, here you go:\n```json\n{\n" +
		"  // scores\n" +
		"  \"scores\": {\"intentAlignment\": 1.4, \"queryCoverage\": -0.2, \"bonus\": \"0.6\",},\n" +
		"  \"confidence\": \"0.8\",\n" +
		"  \"critique\": \"Misses the\nbudget constraint\",\n" +
		"  \"explanation\": \"Plan ignores https://example.com//budget\",\n" +
		"  \"suggestions\": \"add a budget step\",\n" +
		"}\n```"
	judge := judgeFunc(func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return reply(raw)
	})

	p := NewPanel(judge, DefaultConfig())
	r := p.EvaluateWithRole(context.Background(), RoleIntentAnalyst, EvalContext{Query: "q", Plan: "p"})

	require.False(t, r.Failed, r.Critique)
	assert.Equal(t, 1.0, r.Scores["intentAlignment"])
	assert.Equal(t, 0.0, r.Scores["queryCoverage"])
	assert.Equal(t, 0.6, r.Scores["bonus"])
	assert.Equal(t, 0.8, r.Confidence)
	assert.Equal(t, "Misses the\nbudget constraint", r.Critique)
	assert.Equal(t, map[string]string{
		"intentAlignment": "Plan ignores https://example.com//budget",
		"queryCoverage":   "Plan ignores https://example.com//budget",
	}, r.Explanations)
	assert.Equal(t, []string{"add a budget step"}, r.Suggestions)
	assert.Equal(t, 42, r.Tokens)
	assert.Equal(t, []string{"intentAlignment", "queryCoverage"}, r.Dimensions)
}

func TestEvaluateWithRoleExplanationObject(t *testing.T) {
	judge := judgeFunc(func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return reply(`{"scores": {"faithfulness": 0.7}, "confidence": 0.9, "critique": "ok",
			"explanation": {"faithfulness": "one unsupported number", "citationAccuracy": 3}}`)
	})

	r := NewPanel(judge, DefaultConfig()).EvaluateWithRole(context.Background(), RoleFactChecker, EvalContext{Answer: "a"})

	require.False(t, r.Failed)
	assert.Equal(t, map[string]string{"faithfulness": "one unsupported number"}, r.Explanations)
}

func TestEvaluateWithRoleStubs(t *testing.T) {
	tests := []struct {
		name     string
		judge    judgeFunc
		critique string
	}{{
		name: "call error",
		judge: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, errors.New("rate limited")
		},
		critique: "rate limited",
	}, {
		name: "no json",
		judge: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return reply("I cannot evaluate this plan.")
		},
		critique: "failed to parse",
	}, {
		name: "no scores",
		judge: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return reply(`{"confidence": 0.9, "critique": "fine"}`)
		},
		critique: "no scores",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewPanel(tt.judge, DefaultConfig()).EvaluateWithRole(context.Background(), RoleToolSpecialist, EvalContext{})

			assert.True(t, r.Failed)
			assert.Empty(t, r.Scores)
			assert.LessOrEqual(t, r.Confidence, 0.3)
			assert.Contains(t, r.Critique, tt.critique)
			assert.Equal(t, RoleToolSpecialist, r.Role)
		})
	}
}

func TestEvaluateWithPanelKeepsOrderAndBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	judge := judgeFunc(func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)

		role, _ := roleOf(req)
		scores := map[string]float64{}
		for _, d := range role.Dimensions() {
			scores[d] = 0.8
		}
		return reply(judgeJSON(scores, 0.9, role.String()))
	})

	cfg := DefaultConfig()
	cfg.MaxConcurrentJudges = 2
	roles := []Role{RoleAnswerCritic, RoleIntentAnalyst, RoleSourceCritic, RoleFactChecker, RoleToolSpecialist, RoleRetrievalAnalyst, RolePlanningStrategist}

	results := NewPanel(judge, cfg).EvaluateWithPanel(context.Background(), roles, EvalContext{})

	require.Len(t, results, len(roles))
	for i, r := range results {
		assert.Equal(t, roles[i], r.Role)
		assert.Equal(t, roles[i].String(), r.Critique)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRenderPromptSubstitutesPlaceholders(t *testing.T) {
	ec := EvalContext{
		Query:   "jazz concerts in Aarhus this weekend",
		Plan:    map[string]any{"steps": []string{"search venues"}},
		Sources: []Source{{Title: "Blue Note", URL: "https://bluenote.example", Content: "Friday 8 PM"}},
		Answer:  "The Blue Note hosts a show on Friday.",
	}

	plan := renderPrompt(RoleIntentAnalyst, ec)
	assert.Contains(t, plan, ec.Query)
	assert.Contains(t, plan, `"search venues"`)
	assert.Contains(t, plan, `"intentAlignment": <0.0-1.0>`)

	answer := renderPrompt(RoleFactChecker, ec)
	assert.Contains(t, answer, "[1] Blue Note")
	assert.Contains(t, answer, ec.Answer)

	for r := Role(0); r < roleCount; r++ {
		p := renderPrompt(r, ec)
		for _, ph := range []string{"{query}", "{plan}", "{sources}", "{answer}"} {
			assert.False(t, strings.Contains(p, ph), "%s prompt still contains %s", r, ph)
		}
	}
}

func TestRenderSourcesTruncatesOnRuneBoundary(t *testing.T) {
	content := "a" + strings.Repeat("é", maxSourceChars)

	out := renderSources([]Source{{Title: "Aarhus Jazzfest", URL: "https://jazz.example", Content: content}})

	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.Contains(t, out, "a"+strings.Repeat("é", (maxSourceChars-1)/2)+"...")
}
