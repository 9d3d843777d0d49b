package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/research-agent/backend/internal/confidence"
	"github.com/research-agent/backend/internal/evaluation"
	"github.com/research-agent/backend/internal/gateway"
	"github.com/research-agent/backend/internal/storage/models"
	"github.com/research-agent/backend/pkg/logger"
)

// Input is one finished research session. Phases whose input is missing are
// not evaluated: no plan, no sources, or no answer.
type Input struct {
	Query   string
	Plan    any
	Sources []evaluation.Source
	Answer  string
}

type Result struct {
	Record     *models.EvaluationRecord              `json:"record"`
	Plan       *evaluation.PlanEvaluationResult      `json:"plan,omitempty"`
	Retrieval  *evaluation.RetrievalEvaluationResult `json:"retrieval,omitempty"`
	Answer     *evaluation.AnswerEvaluationResult    `json:"answer,omitempty"`
	Confidence *confidence.PipelineResult            `json:"confidence,omitempty"`
}

type Runner struct {
	gateway *gateway.Gateway
}

func NewRunner(gw *gateway.Gateway) *Runner {
	return &Runner{gateway: gw}
}

// Run evaluates every phase the session produced and saves one record.
// Answer grading and confidence scoring run concurrently.
func (r *Runner) Run(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	logger.Info("Evaluating research session",
		zap.String("query", in.Query),
		zap.Bool("has_plan", in.Plan != nil),
		zap.Int("sources", len(in.Sources)),
		zap.Bool("has_answer", strings.TrimSpace(in.Answer) != ""),
	)

	res := &Result{}
	if in.Plan != nil {
		res.Plan = r.gateway.EvaluatePlan(ctx, evaluation.PlanInput{Query: in.Query, Plan: in.Plan})
	}
	if len(in.Sources) > 0 {
		res.Retrieval = r.gateway.EvaluateRetrieval(ctx, evaluation.RetrievalInput{Query: in.Query, Sources: in.Sources})
	}
	if strings.TrimSpace(in.Answer) != "" {
		var g errgroup.Group
		g.Go(func() error {
			res.Answer = r.gateway.EvaluateAnswer(ctx, evaluation.AnswerInput{
				Query:   in.Query,
				Answer:  in.Answer,
				Sources: in.Sources,
			})
			return nil
		})
		g.Go(func() error {
			res.Confidence = r.gateway.ScoreConfidence(ctx, confidence.ScoreInput{
				Query:   in.Query,
				Answer:  in.Answer,
				Sources: confidenceSources(in.Sources),
			})
			return nil
		})
		_ = g.Wait()
	}

	record, err := buildRecord(in.Query, res)
	if err != nil {
		return nil, err
	}
	record.DurationMS = time.Since(start).Milliseconds()
	res.Record = record

	if err := r.gateway.SaveRecord(ctx, record); err != nil {
		return nil, err
	}

	logger.Info("Research session evaluated",
		zap.String("record_id", record.ID),
		zap.Bool("passed", record.Passed),
		zap.Float64("overall_score", record.OverallScore),
		zap.Int64("duration_ms", record.DurationMS),
	)
	return res, nil
}

func buildRecord(query string, res *Result) (*models.EvaluationRecord, error) {
	record := &models.EvaluationRecord{
		ID:        uuid.NewString(),
		Query:     query,
		Passed:    true,
		CreatedAt: time.Now(),
	}

	var err error
	if res.Plan != nil {
		p := res.Plan
		if record.Plan, err = phaseRecord(p.Passed, p.OverallScore, p.EvaluationSkipped, p.SkipReason, p); err != nil {
			return nil, err
		}
	}
	if res.Retrieval != nil {
		p := res.Retrieval
		if record.Retrieval, err = phaseRecord(p.Passed, p.OverallScore, p.EvaluationSkipped, p.SkipReason, p); err != nil {
			return nil, err
		}
	}
	if res.Answer != nil {
		p := res.Answer
		if record.Answer, err = phaseRecord(p.Passed, p.OverallScore, p.EvaluationSkipped, p.SkipReason, p); err != nil {
			return nil, err
		}
	}
	if res.Confidence != nil {
		p := res.Confidence
		// confidence has no pass/fail of its own
		if record.Confidence, err = phaseRecord(true, p.Confidence.OverallConfidence, p.EvaluationSkipped, p.SkipReason, p); err != nil {
			return nil, err
		}
	}

	var sum float64
	var n int
	for _, p := range []*models.PhaseRecord{record.Plan, record.Retrieval, record.Answer, record.Confidence} {
		if p == nil {
			continue
		}
		if !p.Passed {
			record.Passed = false
		}
		if p.EvaluationSkipped {
			continue
		}
		sum += p.Score
		n++
	}
	if n > 0 {
		record.OverallScore = sum / float64(n)
	}

	return record, nil
}

func phaseRecord(passed bool, score float64, skipped bool, reason string, detail any) (*models.PhaseRecord, error) {
	data, err := json.Marshal(detail)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal phase result: %w", err)
	}
	return &models.PhaseRecord{
		Passed:            passed,
		Score:             score,
		EvaluationSkipped: skipped,
		SkipReason:        reason,
		Detail:            data,
	}, nil
}

func confidenceSources(sources []evaluation.Source) []confidence.Source {
	out := make([]confidence.Source, len(sources))
	for i, s := range sources {
		out[i] = confidence.Source{ID: s.ID, URL: s.URL, Title: s.Title, Content: s.Content}
	}
	return out
}
