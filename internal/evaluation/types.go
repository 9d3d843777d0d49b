package evaluation

import (
	"time"

	"github.com/research-agent/backend/internal/classifier"
)

type Phase string

const (
	PhasePlan      Phase = "plan"
	PhaseRetrieval Phase = "retrieval"
	PhaseAnswer    Phase = "answer"
)

// Trigger names the reason a panel is escalated to the large judge. The
// zero value means no escalation.
type Trigger string

const (
	TriggerNone          Trigger = ""
	TriggerLowConfidence Trigger = "low_confidence"
	TriggerDisagreement  Trigger = "disagreement"
	TriggerBorderline    Trigger = "borderline"
)

type Verdict string

const (
	VerdictPass    Verdict = "pass"
	VerdictFail    Verdict = "fail"
	VerdictIterate Verdict = "iterate"
)

type IterationMode string

const (
	ModeTargetedFix      IterationMode = "targeted_fix"
	ModeFullRegeneration IterationMode = "full_regeneration"
)

// Source is one fetched document under review.
type Source struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// EvalContext carries the artifact a judge is asked to grade. Only the
// fields relevant to the role's phase are rendered into its prompt.
type EvalContext struct {
	Query   string
	Plan    any
	Sources []Source
	Answer  string
}

// EvaluatorResult is one judge's opinion. A result with Failed set carries
// no scores; callers treat that as "no opinion", not as zero.
type EvaluatorResult struct {
	Role         Role               `json:"role"`
	Model        string             `json:"model"`
	Dimensions   []string           `json:"dimensions"`
	Scores       map[string]float64 `json:"scores"`
	Confidence   float64            `json:"confidence"`
	Critique     string             `json:"critique"`
	Explanations map[string]string  `json:"explanations,omitempty"`
	Suggestions  []string           `json:"suggestions,omitempty"`
	RawResponse  string             `json:"rawResponse,omitempty"`
	Latency      time.Duration      `json:"latency"`
	Tokens       int                `json:"tokens"`
	Failed       bool               `json:"failed,omitempty"`
}

type AggregatedResult struct {
	Scores     map[string]float64 `json:"scores"`
	Confidence float64            `json:"confidence"`
}

type DimensionCheck struct {
	Passed            bool     `json:"passed"`
	FailingDimensions []string `json:"failingDimensions"`
}

type EscalationResult struct {
	Trigger           Trigger            `json:"trigger"`
	Model             string             `json:"model"`
	Narrative         string             `json:"narrative"`
	TrustDecisions    map[string]float64 `json:"trustDecisions"`
	FinalVerdict      Verdict            `json:"finalVerdict"`
	Scores            map[string]float64 `json:"scores"`
	OverallConfidence float64            `json:"overallConfidence"`
	Recommendations   []string           `json:"recommendations,omitempty"`
	Latency           time.Duration      `json:"latency"`
	Tokens            int                `json:"tokens"`
	// Failed is set when the escalation call or its parsing failed and the
	// verdict is the degraded "fail".
	Failed bool `json:"failed,omitempty"`
}

type IterationDecision struct {
	Mode              IterationMode `json:"mode"`
	SpecificIssues    []string      `json:"specificIssues"`
	FeedbackToPlanner string        `json:"feedbackToPlanner"`
}

type PlanAttempt struct {
	AttemptNumber        int                `json:"attemptNumber"`
	Timestamp            time.Time          `json:"timestamp"`
	Plan                 any                `json:"plan"`
	EvaluatorResults     []EvaluatorResult  `json:"evaluatorResults"`
	AggregatedScores     map[string]float64 `json:"aggregatedScores"`
	AggregatedConfidence float64            `json:"aggregatedConfidence"`
	OverallScore         float64            `json:"overallScore"`
	Passed               bool               `json:"passed"`
	FailingDimensions    []string           `json:"failingDimensions,omitempty"`
	Escalation           *EscalationResult  `json:"escalation,omitempty"`
	IterationDecision    *IterationDecision `json:"iterationDecision,omitempty"`
}

type PlanEvaluationResult struct {
	Passed                bool               `json:"passed"`
	Scores                map[string]float64 `json:"scores"`
	OverallScore          float64            `json:"overallScore"`
	Explanations          map[string]string  `json:"explanations"`
	Confidence            float64            `json:"confidence"`
	EvaluationSkipped     bool               `json:"evaluationSkipped"`
	SkipReason            string             `json:"skipReason,omitempty"`
	Attempts              []PlanAttempt      `json:"attempts"`
	TotalIterations       int                `json:"totalIterations"`
	EscalatedToLargeModel bool               `json:"escalatedToLargeModel"`
}

type RetrievalEvaluationResult struct {
	Passed                     bool                        `json:"passed"`
	Scores                     map[string]float64          `json:"scores"`
	OverallScore               float64                     `json:"overallScore"`
	Confidence                 float64                     `json:"confidence"`
	Explanations               map[string]string           `json:"explanations,omitempty"`
	Critiques                  []string                    `json:"critiques,omitempty"`
	Classifications            []classifier.Classification `json:"classifications"`
	ActionableInformationScore float64                     `json:"actionableInformationScore"`
	NeedsExtraction            bool                        `json:"needsExtraction"`
	// Trigger is advisory: retrieval never calls the escalation judge.
	Trigger           Trigger           `json:"trigger,omitempty"`
	EvaluationSkipped bool              `json:"evaluationSkipped"`
	SkipReason        string            `json:"skipReason,omitempty"`
	EvaluatorResults  []EvaluatorResult `json:"evaluatorResults,omitempty"`
}

type AnswerEvaluationResult struct {
	Passed            bool               `json:"passed"`
	Scores            map[string]float64 `json:"scores"`
	OverallScore      float64            `json:"overallScore"`
	Confidence        float64            `json:"confidence"`
	Explanations      map[string]string  `json:"explanations,omitempty"`
	Critiques         []string           `json:"critiques,omitempty"`
	ShouldRegenerate  bool               `json:"shouldRegenerate"`
	Trigger           Trigger            `json:"trigger,omitempty"`
	EvaluationSkipped bool               `json:"evaluationSkipped"`
	SkipReason        string             `json:"skipReason,omitempty"`
	EvaluatorResults  []EvaluatorResult  `json:"evaluatorResults,omitempty"`
}
