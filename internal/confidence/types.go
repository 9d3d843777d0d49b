package confidence

type ClaimType string

const (
	ClaimFactual     ClaimType = "factual"
	ClaimComparative ClaimType = "comparative"
	ClaimTemporal    ClaimType = "temporal"
	ClaimCausal      ClaimType = "causal"
	ClaimOpinion     ClaimType = "opinion"
)

type WordType string

const (
	WordProperNoun WordType = "proper_noun"
	WordNumeral    WordType = "numeral"
	WordNoun       WordType = "noun"
	WordVerb       WordType = "verb"
)

// wordImportance weighs how much a wrong word of each type hurts a claim.
var wordImportance = map[WordType]float64{
	WordProperNoun: 1.0,
	WordNumeral:    0.95,
	WordNoun:       0.8,
	WordVerb:       0.7,
}

type Verdict string

const (
	VerdictEntailed     Verdict = "entailed"
	VerdictNeutral      Verdict = "neutral"
	VerdictContradicted Verdict = "contradicted"
)

type Level string

const (
	LevelHigh    Level = "high"
	LevelMedium  Level = "medium"
	LevelLow     Level = "low"
	LevelVeryLow Level = "very_low"
)

type Source struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type SubstantiveWord struct {
	Word       string   `json:"word"`
	Type       WordType `json:"type"`
	Position   int      `json:"position"`
	Importance float64  `json:"importance"`
}

type Claim struct {
	ID               string            `json:"id"`
	Text             string            `json:"text"`
	Type             ClaimType         `json:"type"`
	SubstantiveWords []SubstantiveWord `json:"substantiveWords"`
	// SourceSpan indexes the original answer text.
	SourceSpan Span `json:"sourceSpan"`
}

type SourceEvidence struct {
	SourceID     string  `json:"sourceId"`
	SourceURL    string  `json:"sourceUrl"`
	RelevantText string  `json:"relevantText"`
	Similarity   float64 `json:"similarity"`
}

type EntailmentResult struct {
	ClaimID              string           `json:"claimId"`
	Verdict              Verdict          `json:"verdict"`
	Score                float64          `json:"score"`
	SupportingSources    []SourceEvidence `json:"supportingSources"`
	ContradictingSources []SourceEvidence `json:"contradictingSources"`
	Reasoning            string           `json:"reasoning"`
}

type WordContribution struct {
	Word         string  `json:"word"`
	Importance   float64 `json:"importance"`
	Uncertainty  float64 `json:"uncertainty"`
	Contribution float64 `json:"contribution"`
}

type ClaimSUScore struct {
	ClaimID       string             `json:"claimId"`
	Score         float64            `json:"score"`
	WordBreakdown []WordContribution `json:"wordBreakdown"`
}

type SUScoreResult struct {
	OverallScore float64        `json:"overallScore"`
	ClaimScores  []ClaimSUScore `json:"claimScores"`
	Methodology  string         `json:"methodology"`
}

type ClaimConfidence struct {
	ClaimID           string  `json:"claimId"`
	ClaimText         string  `json:"claimText"`
	Confidence        float64 `json:"confidence"`
	Level             Level   `json:"level"`
	EntailmentScore   float64 `json:"entailmentScore"`
	SUScore           float64 `json:"suScore"`
	SupportingSources int     `json:"supportingSources"`
}

type Methodology struct {
	EntailmentWeight  float64 `json:"entailmentWeight"`
	SUScoreWeight     float64 `json:"suScoreWeight"`
	SourceCountWeight float64 `json:"sourceCountWeight"`
}

type ConfidenceResult struct {
	OverallConfidence float64           `json:"overallConfidence"`
	Level             Level             `json:"level"`
	ClaimConfidences  []ClaimConfidence `json:"claimConfidences"`
	Methodology       Methodology       `json:"methodology"`
	Recommendations   []string          `json:"recommendations"`
}

// PipelineResult carries every stage's output for one answer.
type PipelineResult struct {
	Claims      []Claim            `json:"claims"`
	Entailments []EntailmentResult `json:"entailments"`
	SUScore     SUScoreResult      `json:"suScore"`
	Confidence  ConfidenceResult   `json:"confidence"`
	// EvaluationSkipped and SkipReason are set by callers that fail open.
	EvaluationSkipped bool   `json:"evaluationSkipped,omitempty"`
	SkipReason        string `json:"skipReason,omitempty"`
}
