package models

import (
	"encoding/json"
	"time"
)

// Phase names as they appear in records and stats.
const (
	PhasePlan       = "plan"
	PhaseRetrieval  = "retrieval"
	PhaseAnswer     = "answer"
	PhaseConfidence = "confidence"
)

// PhaseRecord is the persisted summary of one phase evaluation. Detail holds
// the full evaluation result as JSON.
type PhaseRecord struct {
	Passed            bool            `json:"passed"`
	Score             float64         `json:"score"`
	EvaluationSkipped bool            `json:"evaluationSkipped"`
	SkipReason        string          `json:"skipReason,omitempty"`
	Detail            json.RawMessage `json:"detail,omitempty"`
}

// Status collapses a phase into passed, failed or skipped.
func (p *PhaseRecord) Status() string {
	switch {
	case p.EvaluationSkipped:
		return "skipped"
	case p.Passed:
		return "passed"
	}
	return "failed"
}

// EvaluationRecord is written once per completed research session.
type EvaluationRecord struct {
	ID           string       `json:"id"`
	Query        string       `json:"query"`
	Passed       bool         `json:"passed"`
	OverallScore float64      `json:"overallScore"`
	Plan         *PhaseRecord `json:"plan,omitempty"`
	Retrieval    *PhaseRecord `json:"retrieval,omitempty"`
	Answer       *PhaseRecord `json:"answer,omitempty"`
	Confidence   *PhaseRecord `json:"confidence,omitempty"`
	DurationMS   int64        `json:"durationMs"`
	CreatedAt    time.Time    `json:"createdAt"`
}

type RecordFilter struct {
	Passed *bool
	Query  string
}

type RecordPage struct {
	Records    []EvaluationRecord `json:"records"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"totalPages"`
}

type AverageScores struct {
	Plan      float64 `json:"plan"`
	Retrieval float64 `json:"retrieval"`
	Answer    float64 `json:"answer"`
	Overall   float64 `json:"overall"`
}

type PhaseStats struct {
	Phase    string  `json:"phase"`
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Skipped  int     `json:"skipped"`
	PassRate float64 `json:"passRate"`
}

type ScoreBucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

type Stats struct {
	TotalRecords      int           `json:"totalRecords"`
	PassedCount       int           `json:"passedCount"`
	FailedCount       int           `json:"failedCount"`
	PassRate          float64       `json:"passRate"`
	AverageScores     AverageScores `json:"averageScores"`
	PhaseBreakdown    []PhaseStats  `json:"phaseBreakdown"`
	ScoreDistribution []ScoreBucket `json:"scoreDistribution"`
}
