package evaluation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/research-agent/backend/internal/llm"
)

func panelFixture() []EvaluatorResult {
	return []EvaluatorResult{
		{Role: RoleIntentAnalyst, Model: "gpt-4o-mini", Scores: map[string]float64{"intentAlignment": 0.9}, Confidence: 0.8, Critique: "good"},
		{Role: RolePlanningStrategist, Model: "gpt-4o-mini", Scores: map[string]float64{"intentAlignment": 0.3}, Confidence: 0.7, Critique: "off target"},
		{Role: RoleToolSpecialist, Model: "gpt-4o-mini", Scores: map[string]float64{}, Confidence: 0.3, Critique: "timeout", Failed: true},
	}
}

func TestEscalate(t *testing.T) {
	var prompt llm.CompletionRequest
	judge := judgeFunc(func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		prompt = req
		return reply(`{
			"trustDecisions": {
				"intent_analyst": {"trustScore": 0.9, "reasoning": "specific"},
				"planning_strategist": {"reasoning": "no score given"},
				"tool_specialist": {"trustScore": 1.7}
			},
			"resolvedScores": {"intentAlignment": 0.8, "queryCoverage": -1},
			"finalVerdict": "PASS",
			"overallConfidence": 0.85,
			"synthesis": "The strategist misread the query.",
			"recommendations": ["keep the date filter"]
		}`)
	})

	res := NewEscalator(judge, DefaultConfig()).Escalate(context.Background(), TriggerDisagreement, "query", "plan body", panelFixture())

	assert.False(t, res.Failed)
	assert.Equal(t, "gpt-4o", prompt.Model)
	assert.Contains(t, prompt.UserPrompt, "disagree")
	assert.Contains(t, prompt.UserPrompt, "plan body")
	assert.Contains(t, prompt.UserPrompt, "planning_strategist (model gpt-4o-mini, confidence 0.70)")
	assert.Contains(t, prompt.UserPrompt, "off target")
	assert.Contains(t, prompt.UserPrompt, "This judge failed")

	assert.Equal(t, VerdictPass, res.FinalVerdict)
	assert.Equal(t, map[string]float64{"intent_analyst": 0.9, "tool_specialist": 1.0}, res.TrustDecisions)
	assert.Equal(t, map[string]float64{"intentAlignment": 0.8, "queryCoverage": 0}, res.Scores)
	assert.Equal(t, 0.85, res.OverallConfidence)
	assert.Equal(t, "The strategist misread the query.", res.Narrative)
	assert.Equal(t, TriggerDisagreement, res.Trigger)
	assert.Equal(t, 42, res.Tokens)
}

func TestEscalateDegradesToFail(t *testing.T) {
	tests := []struct {
		name  string
		judge judgeFunc
	}{{
		name: "call error",
		judge: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, errors.New("upstream 503")
		},
	}, {
		name: "unparsable",
		judge: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return reply("verdict: pass")
		},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewEscalator(tt.judge, DefaultConfig()).Escalate(context.Background(), TriggerLowConfidence, "q", "c", panelFixture())

			assert.True(t, res.Failed)
			assert.Equal(t, VerdictFail, res.FinalVerdict)
			assert.Empty(t, res.Scores)
			assert.Contains(t, res.Narrative, "Escalation failed")
		})
	}
}

func TestParseVerdict(t *testing.T) {
	assert.Equal(t, VerdictIterate, parseVerdict(" iterate "))
	assert.Equal(t, VerdictFail, parseVerdict("maybe"))
	assert.Equal(t, VerdictFail, parseVerdict(""))
}

func TestEscalateWithTextNarrative(t *testing.T) {
	judge := judgeFunc(func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return reply(`{"finalVerdict": "iterate", "synthesis": "needs another pass"}`)
	})

	res := NewEscalator(judge, DefaultConfig()).Escalate(context.Background(), TriggerBorderline, "q", "c", nil)

	require.False(t, res.Failed)
	assert.Equal(t, VerdictIterate, res.FinalVerdict)
	assert.Empty(t, res.Scores)
	assert.Empty(t, res.TrustDecisions)
}
