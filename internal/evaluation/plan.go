package evaluation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/research-agent/backend/internal/metrics"
	"github.com/research-agent/backend/pkg/logger"
)

type PlanInput struct {
	Query string
	Plan  any
}

// Regenerator rewrites a plan between attempts using the iteration decision.
// Without one, the same plan is re-evaluated on every attempt.
type Regenerator interface {
	Regenerate(ctx context.Context, plan any, decision IterationDecision) (any, error)
}

type PlanEvaluator struct {
	panel       *Panel
	escalator   *Escalator
	cfg         Config
	regenerator Regenerator
}

func NewPlanEvaluator(panel *Panel, escalator *Escalator, cfg Config) *PlanEvaluator {
	return &PlanEvaluator{
		panel:     panel,
		escalator: escalator,
		cfg:       cfg.withDefaults(),
	}
}

// WithRegenerator sets the callback used between failed attempts.
func (p *PlanEvaluator) WithRegenerator(r Regenerator) *PlanEvaluator {
	p.regenerator = r
	return p
}

// EvaluatePlan runs up to MaxAttempts panel rounds, stopping at the first
// passing attempt. The result reflects the last attempt.
func (p *PlanEvaluator) EvaluatePlan(ctx context.Context, in PlanInput) *PlanEvaluationResult {
	logger.Info("Evaluating plan", zap.Int("max_attempts", p.cfg.MaxAttempts))

	plan := in.Plan
	result := &PlanEvaluationResult{
		Scores:       map[string]float64{},
		Explanations: map[string]string{},
	}

	for n := 1; n <= p.cfg.MaxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			if len(result.Attempts) == 0 {
				result.EvaluationSkipped = true
				result.SkipReason = fmt.Sprintf("plan evaluation cancelled: %v", err)
			}
			break
		}

		attempt, results := p.runAttempt(ctx, n, in.Query, plan)
		if attempt.Escalation != nil {
			result.EscalatedToLargeModel = true
		}

		if !attempt.Passed && n < p.cfg.MaxAttempts {
			decision := p.iterationDecision(attempt.AggregatedScores, results)
			attempt.IterationDecision = &decision

			if p.regenerator != nil {
				next, err := p.regenerator.Regenerate(ctx, plan, decision)
				if err != nil {
					logger.Warn("Plan regeneration failed, re-evaluating previous plan",
						zap.Int("attempt", n),
						zap.Error(err),
					)
				} else if next != nil {
					plan = next
				}
			}
		}

		result.Attempts = append(result.Attempts, attempt)
		if attempt.Passed {
			break
		}
	}

	result.TotalIterations = len(result.Attempts)
	metrics.PlanAttempts.Observe(float64(result.TotalIterations))

	if len(result.Attempts) == 0 {
		recordOutcome(PhasePlan, false, true, 0)
		return result
	}

	last := result.Attempts[len(result.Attempts)-1]
	result.Passed = last.Passed
	result.Scores = last.AggregatedScores
	result.OverallScore = last.OverallScore
	result.Confidence = last.AggregatedConfidence
	for _, r := range last.EvaluatorResults {
		for dim, text := range r.Explanations {
			result.Explanations[dim] = text
		}
	}

	recordOutcome(PhasePlan, result.Passed, false, result.OverallScore)
	logger.Info("Plan evaluation completed",
		zap.Bool("passed", result.Passed),
		zap.Float64("overall_score", result.OverallScore),
		zap.Int("iterations", result.TotalIterations),
		zap.Bool("escalated", result.EscalatedToLargeModel),
	)

	return result
}

func (p *PlanEvaluator) runAttempt(ctx context.Context, n int, query string, plan any) (PlanAttempt, []EvaluatorResult) {
	results := p.panel.EvaluateWithPanel(ctx, RolesFor(PhasePlan), EvalContext{Query: query, Plan: plan})
	agg := AggregateScores(results)

	attempt := PlanAttempt{
		AttemptNumber:        n,
		Timestamp:            time.Now().UTC(),
		Plan:                 plan,
		EvaluatorResults:     results,
		AggregatedScores:     agg.Scores,
		AggregatedConfidence: agg.Confidence,
	}
	attempt.OverallScore = CalculateOverallScore(agg.Scores, nil)
	passed := attempt.OverallScore >= p.cfg.PassThreshold

	if trigger := p.cfg.checkTriggers(agg, results); trigger != TriggerNone {
		esc := p.escalator.Escalate(ctx, trigger, query, renderPlan(plan), results)
		attempt.Escalation = &esc

		if esc.Failed {
			logger.Warn("Escalation failed, recording attempt as failed",
				zap.Int("attempt", n),
				zap.String("trigger", string(trigger)),
				zap.String("reason", esc.Narrative),
			)
			passed = false
		} else {
			if len(esc.Scores) > 0 {
				merged := make(map[string]float64, len(agg.Scores)+len(esc.Scores))
				for dim, s := range agg.Scores {
					merged[dim] = s
				}
				for dim, s := range esc.Scores {
					merged[dim] = s
				}
				attempt.AggregatedScores = merged
				attempt.OverallScore = CalculateOverallScore(merged, nil)
			}
			passed = esc.FinalVerdict == VerdictPass
		}
	}

	check := CheckDimensionThresholds(attempt.AggregatedScores, p.cfg.DimensionThresholds)
	attempt.FailingDimensions = check.FailingDimensions
	attempt.Passed = passed && check.Passed

	logger.Info("Plan attempt evaluated",
		zap.Int("attempt", n),
		zap.Float64("overall_score", attempt.OverallScore),
		zap.Bool("passed", attempt.Passed),
		zap.Strings("failing_dimensions", check.FailingDimensions),
	)

	return attempt, results
}

// iterationDecision lists every dimension below its floor (the dimension
// threshold when configured, else the pass threshold). More than two failing
// dimensions call for a full regeneration.
func (p *PlanEvaluator) iterationDecision(scores map[string]float64, results []EvaluatorResult) IterationDecision {
	var issues []string
	for _, dim := range sortedKeys(scores) {
		floor, ok := p.cfg.DimensionThresholds[dim]
		if !ok {
			floor = p.cfg.PassThreshold
		}
		if s := scores[dim]; s < floor {
			issues = append(issues, fmt.Sprintf("%s (%.2f < %.2f)", dim, s, floor))
		}
	}

	var critiques []string
	for _, r := range results {
		if c := strings.TrimSpace(r.Critique); c != "" && !r.Failed {
			critiques = append(critiques, c)
		}
	}

	mode := ModeTargetedFix
	if len(issues) > 2 {
		mode = ModeFullRegeneration
	}

	return IterationDecision{
		Mode:              mode,
		SpecificIssues:    issues,
		FeedbackToPlanner: strings.Join(critiques, "\n"),
	}
}
