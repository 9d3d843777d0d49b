package confidence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/research-agent/backend/internal/llm"
	"github.com/research-agent/backend/internal/metrics"
	"github.com/research-agent/backend/pkg/logger"
)

type ScoreInput struct {
	Query   string
	Answer  string
	Sources []Source
}

// Scorer runs claim extraction, entailment, SU scoring and confidence
// aggregation in order. Only a claim-extraction judge error is returned.
type Scorer struct {
	extractor  *ClaimExtractor
	checker    *EntailmentChecker
	aggregator *Aggregator
}

func NewScorer(judge llm.Completer, embedder llm.Embedder, cfg Config) *Scorer {
	return &Scorer{
		extractor:  NewClaimExtractor(judge, cfg),
		checker:    NewEntailmentChecker(judge, embedder, cfg),
		aggregator: NewAggregator(cfg),
	}
}

func (s *Scorer) Score(ctx context.Context, in ScoreInput) (*PipelineResult, error) {
	logger.Info("Scoring answer confidence",
		zap.Int("answer_chars", len(in.Answer)),
		zap.Int("sources", len(in.Sources)),
	)

	claims, err := s.extractor.Extract(ctx, in.Answer)
	if err != nil {
		return nil, fmt.Errorf("failed to score confidence: %w", err)
	}

	entailments := s.checker.CheckAll(ctx, claims, in.Sources)
	su := CalculateSUScores(claims, entailments)
	conf := s.aggregator.Aggregate(claims, entailments, su, len(in.Sources))

	metrics.ConfidenceScore.Observe(conf.OverallConfidence)
	logger.Info("Confidence scored",
		zap.Int("claims", len(claims)),
		zap.Float64("overall_confidence", conf.OverallConfidence),
		zap.String("level", string(conf.Level)),
		zap.Float64("su_score", su.OverallScore),
	)

	return &PipelineResult{
		Claims:      claims,
		Entailments: entailments,
		SUScore:     su,
		Confidence:  conf,
	}, nil
}
