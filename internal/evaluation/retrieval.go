package evaluation

import (
	"context"

	"go.uber.org/zap"

	"github.com/research-agent/backend/internal/classifier"
	"github.com/research-agent/backend/internal/metrics"
	"github.com/research-agent/backend/pkg/logger"
)

const actionableDimension = "actionableInformation"

type RetrievalInput struct {
	Query   string
	Sources []Source
}

// RetrievalEvaluator grades fetched sources in a single pass. It merges the
// heuristic classifier's batch score into the panel's scores and never
// blocks the pipeline on a judging failure.
type RetrievalEvaluator struct {
	panel   *Panel
	cfg     Config
	weights map[string]float64
}

func NewRetrievalEvaluator(panel *Panel, cfg Config) *RetrievalEvaluator {
	return &RetrievalEvaluator{panel: panel, cfg: cfg.withDefaults(), weights: WeightsFor(PhaseRetrieval)}
}

func (e *RetrievalEvaluator) EvaluateRetrieval(ctx context.Context, in RetrievalInput) *RetrievalEvaluationResult {
	logger.Info("Evaluating retrieval", zap.Int("sources", len(in.Sources)))

	pages := make([]classifier.Page, len(in.Sources))
	for i, s := range in.Sources {
		pages[i] = classifier.Page{URL: s.URL, Title: s.Title, Content: s.Content}
	}
	batch := classifier.ClassifyBatch(pages)
	for _, c := range batch.Classifications {
		metrics.SourcesClassified.WithLabelValues(string(c.Type)).Inc()
	}

	result := &RetrievalEvaluationResult{
		Classifications:            batch.Classifications,
		ActionableInformationScore: batch.AverageScore,
		NeedsExtraction:            batch.NeedsExtraction,
	}

	results := e.panel.EvaluateWithPanel(ctx, RolesFor(PhaseRetrieval), EvalContext{
		Query:   in.Query,
		Sources: in.Sources,
	})
	result.EvaluatorResults = results

	if reason := failSafeReason(ctx, results); reason != "" {
		logger.Warn("Retrieval evaluation skipped", zap.String("reason", reason))
		result.Passed = true
		result.EvaluationSkipped = true
		result.SkipReason = reason
		result.Scores = zeroScores(e.weights)
		recordOutcome(PhaseRetrieval, true, true, 0)
		return result
	}

	agg := AggregateScores(results)
	agg.Scores[actionableDimension] = batch.AverageScore

	result.Scores = agg.Scores
	result.Confidence = agg.Confidence
	result.OverallScore = CalculateOverallScore(agg.Scores, e.weights)
	result.Passed = result.OverallScore >= e.cfg.SevereFailureThreshold
	result.Trigger = e.cfg.checkTriggers(agg, results)
	result.Explanations, result.Critiques = collectNarrative(results)

	recordOutcome(PhaseRetrieval, result.Passed, false, result.OverallScore)
	logger.Info("Retrieval evaluation completed",
		zap.Bool("passed", result.Passed),
		zap.Float64("overall_score", result.OverallScore),
		zap.Float64("actionable_information", batch.AverageScore),
		zap.Bool("needs_extraction", batch.NeedsExtraction),
		zap.String("trigger", string(result.Trigger)),
	)

	return result
}
