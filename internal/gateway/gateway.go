package gateway

import (
	"context"

	"github.com/research-agent/backend/internal/confidence"
	"github.com/research-agent/backend/internal/evaluation"
)

type PlanEvaluator interface {
	EvaluatePlan(ctx context.Context, in evaluation.PlanInput) *evaluation.PlanEvaluationResult
}

type RetrievalEvaluator interface {
	EvaluateRetrieval(ctx context.Context, in evaluation.RetrievalInput) *evaluation.RetrievalEvaluationResult
}

type AnswerEvaluator interface {
	EvaluateAnswer(ctx context.Context, in evaluation.AnswerInput) *evaluation.AnswerEvaluationResult
}

type ConfidenceScorer interface {
	Score(ctx context.Context, in confidence.ScoreInput) (*confidence.PipelineResult, error)
}

// Gateway is the entry point research sessions use for evaluation. Every
// evaluation fails open: an error or deadline yields a passing result marked
// EvaluationSkipped, so a judging outage never blocks publishing. It is also
// the only component that touches persistence.
type Gateway struct {
	cfg       Config
	plan      PlanEvaluator
	retrieval RetrievalEvaluator
	answer    AnswerEvaluator
	scorer    ConfidenceScorer
	store     Store
}

type Evaluators struct {
	Plan       PlanEvaluator
	Retrieval  RetrievalEvaluator
	Answer     AnswerEvaluator
	Confidence ConfidenceScorer
}

func New(cfg Config, evaluators Evaluators, store Store) *Gateway {
	return &Gateway{
		cfg:       cfg.withDefaults(),
		plan:      evaluators.Plan,
		retrieval: evaluators.Retrieval,
		answer:    evaluators.Answer,
		scorer:    evaluators.Confidence,
		store:     store,
	}
}

func (g *Gateway) EvaluatePlan(ctx context.Context, in evaluation.PlanInput) *evaluation.PlanEvaluationResult {
	return Guard(ctx, PhasePlan, g.cfg.TimeoutFor(PhasePlan), planFallback,
		func(ctx context.Context) (*evaluation.PlanEvaluationResult, error) {
			return g.plan.EvaluatePlan(ctx, in), nil
		})
}

func (g *Gateway) EvaluateRetrieval(ctx context.Context, in evaluation.RetrievalInput) *evaluation.RetrievalEvaluationResult {
	return Guard(ctx, PhaseRetrieval, g.cfg.TimeoutFor(PhaseRetrieval), retrievalFallback,
		func(ctx context.Context) (*evaluation.RetrievalEvaluationResult, error) {
			return g.retrieval.EvaluateRetrieval(ctx, in), nil
		})
}

func (g *Gateway) EvaluateAnswer(ctx context.Context, in evaluation.AnswerInput) *evaluation.AnswerEvaluationResult {
	return Guard(ctx, PhaseAnswer, g.cfg.TimeoutFor(PhaseAnswer), answerFallback,
		func(ctx context.Context) (*evaluation.AnswerEvaluationResult, error) {
			return g.answer.EvaluateAnswer(ctx, in), nil
		})
}

// ScoreConfidence is where a claim-extraction judge failure, the one error
// the confidence pipeline returns, is turned into a skipped result.
func (g *Gateway) ScoreConfidence(ctx context.Context, in confidence.ScoreInput) *confidence.PipelineResult {
	return Guard(ctx, PhaseConfidence, g.cfg.TimeoutFor(PhaseConfidence), confidenceFallback,
		func(ctx context.Context) (*confidence.PipelineResult, error) {
			return g.scorer.Score(ctx, in)
		})
}

func planFallback(reason string) *evaluation.PlanEvaluationResult {
	return &evaluation.PlanEvaluationResult{
		Passed:            true,
		Scores:            map[string]float64{},
		Explanations:      map[string]string{},
		EvaluationSkipped: true,
		SkipReason:        reason,
		Attempts:          []evaluation.PlanAttempt{},
	}
}

func retrievalFallback(reason string) *evaluation.RetrievalEvaluationResult {
	return &evaluation.RetrievalEvaluationResult{
		Passed:            true,
		Scores:            map[string]float64{},
		EvaluationSkipped: true,
		SkipReason:        reason,
	}
}

func answerFallback(reason string) *evaluation.AnswerEvaluationResult {
	return &evaluation.AnswerEvaluationResult{
		Passed:            true,
		Scores:            map[string]float64{},
		EvaluationSkipped: true,
		SkipReason:        reason,
	}
}

func confidenceFallback(reason string) *confidence.PipelineResult {
	return &confidence.PipelineResult{
		Claims:      []confidence.Claim{},
		Entailments: []confidence.EntailmentResult{},
		Confidence: confidence.ConfidenceResult{
			ClaimConfidences: []confidence.ClaimConfidence{},
			Recommendations:  []string{},
		},
		EvaluationSkipped: true,
		SkipReason:        reason,
	}
}
