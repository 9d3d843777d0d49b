package evaluation

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/research-agent/backend/pkg/logger"
)

type AnswerInput struct {
	Query   string
	Answer  string
	Sources []Source
}

type AnswerEvaluator struct {
	panel   *Panel
	cfg     Config
	weights map[string]float64
}

func NewAnswerEvaluator(panel *Panel, cfg Config) *AnswerEvaluator {
	return &AnswerEvaluator{panel: panel, cfg: cfg.withDefaults(), weights: WeightsFor(PhaseAnswer)}
}

// EvaluateAnswer grades a drafted answer in a single pass. An empty answer is
// rejected without calling the panel.
func (e *AnswerEvaluator) EvaluateAnswer(ctx context.Context, in AnswerInput) *AnswerEvaluationResult {
	if strings.TrimSpace(in.Answer) == "" {
		logger.Warn("Answer evaluation skipped: empty answer")
		recordOutcome(PhaseAnswer, false, true, 0)
		return &AnswerEvaluationResult{
			Passed:            false,
			Scores:            zeroScores(e.weights),
			ShouldRegenerate:  true,
			EvaluationSkipped: true,
			SkipReason:        "answer is empty",
		}
	}

	logger.Info("Evaluating answer",
		zap.Int("answer_chars", len(in.Answer)),
		zap.Int("sources", len(in.Sources)),
	)

	results := e.panel.EvaluateWithPanel(ctx, RolesFor(PhaseAnswer), EvalContext{
		Query:   in.Query,
		Answer:  in.Answer,
		Sources: in.Sources,
	})

	if reason := failSafeReason(ctx, results); reason != "" {
		logger.Warn("Answer evaluation skipped", zap.String("reason", reason))
		recordOutcome(PhaseAnswer, true, true, 0)
		return &AnswerEvaluationResult{
			Passed:            true,
			Scores:            zeroScores(e.weights),
			EvaluationSkipped: true,
			SkipReason:        reason,
			EvaluatorResults:  results,
		}
	}

	agg := AggregateScores(results)
	result := &AnswerEvaluationResult{
		Scores:           agg.Scores,
		Confidence:       agg.Confidence,
		OverallScore:     CalculateOverallScore(agg.Scores, e.weights),
		Trigger:          e.cfg.checkTriggers(agg, results),
		EvaluatorResults: results,
	}
	result.Passed = result.OverallScore >= e.cfg.SevereFailureThreshold
	result.ShouldRegenerate = !result.Passed
	result.Explanations, result.Critiques = collectNarrative(results)

	recordOutcome(PhaseAnswer, result.Passed, false, result.OverallScore)
	logger.Info("Answer evaluation completed",
		zap.Bool("passed", result.Passed),
		zap.Float64("overall_score", result.OverallScore),
		zap.String("trigger", string(result.Trigger)),
	)

	return result
}
