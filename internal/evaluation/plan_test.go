package evaluation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/research-agent/backend/internal/llm"
)

func newPlanEvaluator(judge llm.Completer, cfg Config) *PlanEvaluator {
	return NewPlanEvaluator(NewPanel(judge, cfg), NewEscalator(judge, cfg), cfg)
}

func TestEvaluatePlanPassesFirstAttempt(t *testing.T) {
	judge := &countingJudge{next: uniformJudge(map[string]float64{"intentAlignment": 0.9, "queryCoverage": 0.85}, 0.9)}

	res := newPlanEvaluator(judge, DefaultConfig()).EvaluatePlan(context.Background(), PlanInput{Query: "q", Plan: "search venues"})

	assert.True(t, res.Passed)
	assert.Equal(t, 1, res.TotalIterations)
	assert.False(t, res.EscalatedToLargeModel)
	assert.Len(t, res.Attempts, 1)
	assert.Nil(t, res.Attempts[0].IterationDecision)
	assert.InDelta(t, (0.9*0.25+0.85*0.20)/0.45, res.OverallScore, 1e-9)
	assert.Equal(t, int32(3), judge.calls.Load())
}

func TestEvaluatePlanExhaustsAttempts(t *testing.T) {
	judge := &countingJudge{next: uniformJudge(map[string]float64{"intentAlignment": 0.4}, 0.9)}

	res := newPlanEvaluator(judge, DefaultConfig()).EvaluatePlan(context.Background(), PlanInput{Query: "q", Plan: "p"})

	assert.False(t, res.Passed)
	assert.Equal(t, 3, res.TotalIterations)
	require.Len(t, res.Attempts, 3)
	assert.False(t, res.EscalatedToLargeModel)
	assert.Equal(t, int32(9), judge.calls.Load())

	for i, a := range res.Attempts {
		assert.Equal(t, i+1, a.AttemptNumber)
		assert.False(t, a.Passed)
	}

	decision := res.Attempts[0].IterationDecision
	require.NotNil(t, decision)
	assert.Equal(t, ModeTargetedFix, decision.Mode)
	assert.Equal(t, []string{"intentAlignment (0.40 < 0.70)"}, decision.SpecificIssues)
	assert.Equal(t, "looks fine\nlooks fine\nlooks fine", decision.FeedbackToPlanner)
	assert.Nil(t, res.Attempts[2].IterationDecision, "no decision after the last attempt")
}

func TestEvaluatePlanFullRegenerationMode(t *testing.T) {
	judge := uniformJudge(map[string]float64{
		"intentAlignment":      0.3,
		"queryCoverage":        0.3,
		"scopeAppropriateness": 0.3,
		"stepEfficiency":       0.9,
	}, 0.9)

	res := newPlanEvaluator(judge, DefaultConfig()).EvaluatePlan(context.Background(), PlanInput{Plan: "p"})

	require.NotNil(t, res.Attempts[0].IterationDecision)
	assert.Equal(t, ModeFullRegeneration, res.Attempts[0].IterationDecision.Mode)
	assert.Len(t, res.Attempts[0].IterationDecision.SpecificIssues, 3)
}

func TestEvaluatePlanEscalationResolvesDisagreement(t *testing.T) {
	judge := judgeFunc(func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if isEscalation(req) {
			return reply(`{"trustDecisions": {"intent_analyst": {"trustScore": 0.9}},
				"resolvedScores": {"intentAlignment": 0.85}, "finalVerdict": "pass",
				"overallConfidence": 0.8, "synthesis": "analyst is right"}`)
		}
		role, _ := roleOf(req)
		if role == RolePlanningStrategist {
			return reply(judgeJSON(map[string]float64{"intentAlignment": 0.3}, 0.9, "off target"))
		}
		return reply(judgeJSON(map[string]float64{"intentAlignment": 0.9, "queryCoverage": 0.9}, 0.9, "good"))
	})

	res := newPlanEvaluator(judge, DefaultConfig()).EvaluatePlan(context.Background(), PlanInput{Plan: "p"})

	assert.True(t, res.Passed)
	assert.True(t, res.EscalatedToLargeModel)
	assert.Equal(t, 1, res.TotalIterations)
	esc := res.Attempts[0].Escalation
	require.NotNil(t, esc)
	assert.Equal(t, TriggerDisagreement, esc.Trigger)
	assert.Equal(t, 0.85, res.Scores["intentAlignment"])
	assert.Equal(t, 0.9, res.Scores["queryCoverage"])
}

func TestEvaluatePlanEscalationFailureDoesNotAbort(t *testing.T) {
	judge := &countingJudge{next: judgeFunc(func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if isEscalation(req) {
			return nil, errors.New("escalation model unavailable")
		}
		return reply(judgeJSON(map[string]float64{"intentAlignment": 0.95}, 0.4, "unsure"))
	})}

	res := newPlanEvaluator(judge, DefaultConfig()).EvaluatePlan(context.Background(), PlanInput{Plan: "p"})

	assert.False(t, res.Passed)
	assert.True(t, res.EscalatedToLargeModel)
	require.Len(t, res.Attempts, 3)
	for _, a := range res.Attempts {
		require.NotNil(t, a.Escalation)
		assert.True(t, a.Escalation.Failed)
		assert.Equal(t, TriggerLowConfidence, a.Escalation.Trigger)
		assert.False(t, a.Passed)
	}
	assert.Equal(t, int32(12), judge.calls.Load())
}

func TestEvaluatePlanDimensionThresholds(t *testing.T) {
	cfg := DefaultConfig()
	// keys arrive lower-cased from the config loader
	cfg.DimensionThresholds = map[string]float64{"intentalignment": 0.95}
	judge := uniformJudge(map[string]float64{"intentAlignment": 0.9, "queryCoverage": 0.85}, 0.9)

	res := newPlanEvaluator(judge, cfg).EvaluatePlan(context.Background(), PlanInput{Plan: "p"})

	assert.False(t, res.Passed)
	assert.Equal(t, 3, res.TotalIterations)
	assert.Equal(t, []string{"intentAlignment (0.90 < 0.95)"}, res.Attempts[0].FailingDimensions)
	assert.Equal(t, []string{"intentAlignment (0.90 < 0.95)"}, res.Attempts[0].IterationDecision.SpecificIssues)
}

type planRewriter struct {
	calls     int
	decisions []IterationDecision
}

func (r *planRewriter) Regenerate(ctx context.Context, plan any, decision IterationDecision) (any, error) {
	r.calls++
	r.decisions = append(r.decisions, decision)
	return "plan-v2", nil
}

func TestEvaluatePlanWithRegenerator(t *testing.T) {
	judge := judgeFunc(func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if strings.Contains(req.UserPrompt, "plan-v2") {
			return reply(judgeJSON(map[string]float64{"intentAlignment": 0.9, "queryCoverage": 0.9}, 0.9, "fixed"))
		}
		return reply(judgeJSON(map[string]float64{"intentAlignment": 0.4}, 0.9, "misses the date"))
	})
	rewriter := &planRewriter{}

	res := newPlanEvaluator(judge, DefaultConfig()).
		WithRegenerator(rewriter).
		EvaluatePlan(context.Background(), PlanInput{Plan: "plan-v1"})

	assert.True(t, res.Passed)
	assert.Equal(t, 2, res.TotalIterations)
	assert.Equal(t, 1, rewriter.calls)
	assert.Contains(t, rewriter.decisions[0].FeedbackToPlanner, "misses the date")
	assert.Equal(t, "plan-v1", res.Attempts[0].Plan)
	assert.Equal(t, "plan-v2", res.Attempts[1].Plan)
}

func TestEvaluatePlanCollectsExplanations(t *testing.T) {
	judge := judgeFunc(func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		role, _ := roleOf(req)
		return reply(`{"scores": {"` + role.Dimensions()[0] + `": 0.9}, "confidence": 0.9, "critique": "ok", "explanation": "` + role.String() + ` says fine"}`)
	})

	res := newPlanEvaluator(judge, DefaultConfig()).EvaluatePlan(context.Background(), PlanInput{Plan: "p"})

	assert.True(t, res.Passed)
	assert.Equal(t, "intent_analyst says fine", res.Explanations["queryCoverage"])
	assert.Equal(t, "tool_specialist says fine", res.Explanations["parameterQuality"])
	assert.Len(t, res.Explanations, 6)
}

func TestEvaluatePlanCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	judge := &countingJudge{next: uniformJudge(map[string]float64{"intentAlignment": 0.9}, 0.9)}

	res := newPlanEvaluator(judge, DefaultConfig()).EvaluatePlan(ctx, PlanInput{Plan: "p"})

	assert.True(t, res.EvaluationSkipped)
	assert.Contains(t, res.SkipReason, "cancelled")
	assert.Zero(t, res.TotalIterations)
	assert.Zero(t, judge.calls.Load())
}
