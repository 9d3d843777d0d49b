package confidence

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	lowOverallConfidence = 0.6
	minSources           = 3
	lowClaimConfidence   = 0.5
	weakEntailment       = 0.3
	lowSUScore           = 0.5
	wellSupported        = 0.8
)

// Aggregator combines entailment, SU score and source count into per-claim
// and document confidence.
type Aggregator struct {
	cfg Config
}

func NewAggregator(cfg Config) *Aggregator {
	return &Aggregator{cfg: cfg.withDefaults()}
}

func (a *Aggregator) Aggregate(claims []Claim, entailments []EntailmentResult, su SUScoreResult, sourceCount int) ConfidenceResult {
	byClaim := indexEntailments(entailments)
	suByClaim := make(map[string]float64, len(su.ClaimScores))
	for _, cs := range su.ClaimScores {
		suByClaim[cs.ClaimID] = cs.Score
	}

	sourceSignal := math.Min(1, float64(sourceCount)/float64(a.cfg.SourceSaturation))

	result := ConfidenceResult{
		ClaimConfidences: make([]ClaimConfidence, 0, len(claims)),
		Methodology: Methodology{
			EntailmentWeight:  a.cfg.EntailmentWeight,
			SUScoreWeight:     a.cfg.SUScoreWeight,
			SourceCountWeight: a.cfg.SourceCountWeight,
		},
	}

	for _, claim := range claims {
		e, ok := byClaim[claim.ID]
		if !ok {
			e = EntailmentResult{ClaimID: claim.ID, Verdict: VerdictNeutral, Score: neutralScore}
		}
		suScore, ok := suByClaim[claim.ID]
		if !ok {
			suScore = neutralScore
		}

		entailment := normalizedEntailment(e)
		confidence := clamp01(a.cfg.EntailmentWeight*entailment +
			a.cfg.SUScoreWeight*clamp01(suScore) +
			a.cfg.SourceCountWeight*sourceSignal)

		result.ClaimConfidences = append(result.ClaimConfidences, ClaimConfidence{
			ClaimID:           claim.ID,
			ClaimText:         claim.Text,
			Confidence:        confidence,
			Level:             levelFor(confidence),
			EntailmentScore:   entailment,
			SUScore:           clamp01(suScore),
			SupportingSources: distinctSources(e.SupportingSources),
		})
	}

	result.OverallConfidence = weakestLinkMean(result.ClaimConfidences)
	result.Level = levelFor(result.OverallConfidence)
	result.Recommendations = recommendations(result, sourceCount)
	return result
}

// weakestLinkMean sorts confidences ascending and weights the i-th (0-based)
// by N-i, so the least confident claim counts most.
func weakestLinkMean(claims []ClaimConfidence) float64 {
	n := len(claims)
	if n == 0 {
		return 0
	}

	values := make([]float64, n)
	for i, c := range claims {
		values[i] = c.Confidence
	}
	sort.Float64s(values)

	var weighted, total float64
	for i, v := range values {
		w := float64(n - i)
		weighted += v * w
		total += w
	}
	return clamp01(weighted / total)
}

func levelFor(confidence float64) Level {
	switch {
	case confidence >= 0.8:
		return LevelHigh
	case confidence >= 0.6:
		return LevelMedium
	case confidence >= 0.4:
		return LevelLow
	}
	return LevelVeryLow
}

func distinctSources(evidence []SourceEvidence) int {
	seen := make(map[string]bool, len(evidence))
	for _, e := range evidence {
		key := e.SourceID
		if key == "" {
			key = e.SourceURL
		}
		seen[key] = true
	}
	return len(seen)
}

func recommendations(r ConfidenceResult, sourceCount int) []string {
	var recs []string

	if r.OverallConfidence < lowOverallConfidence {
		recs = append(recs, fmt.Sprintf("Overall confidence is %.2f; verify the key claims before relying on this answer.", r.OverallConfidence))
	}
	if sourceCount < minSources {
		recs = append(recs, fmt.Sprintf("Only %d source(s) were used; gather at least %d independent sources.", sourceCount, minSources))
	}

	var lowConfidence, weak, unsupported, uncertain []string
	for _, c := range r.ClaimConfidences {
		if c.Confidence < lowClaimConfidence {
			lowConfidence = append(lowConfidence, c.ClaimID)
		}
		if c.EntailmentScore < weakEntailment {
			weak = append(weak, c.ClaimID)
		}
		if c.SupportingSources == 0 {
			unsupported = append(unsupported, c.ClaimID)
		}
		if c.SUScore < lowSUScore {
			uncertain = append(uncertain, c.ClaimID)
		}
	}

	if len(lowConfidence) > 0 {
		recs = append(recs, fmt.Sprintf("%d claim(s) have confidence below %.1f: %s.", len(lowConfidence), lowClaimConfidence, strings.Join(lowConfidence, ", ")))
	}
	if len(weak) > 0 {
		recs = append(recs, fmt.Sprintf("%d claim(s) are contradicted or only weakly supported by the sources: %s.", len(weak), strings.Join(weak, ", ")))
	}
	if len(unsupported) > 0 {
		recs = append(recs, fmt.Sprintf("%d claim(s) have no supporting source passage: %s.", len(unsupported), strings.Join(unsupported, ", ")))
	}
	if len(uncertain) > 0 {
		recs = append(recs, fmt.Sprintf("%d claim(s) hinge on uncertain names, numbers or terms (SU score below %.1f): %s.", len(uncertain), lowSUScore, strings.Join(uncertain, ", ")))
	}

	if len(recs) == 0 && r.OverallConfidence >= wellSupported {
		recs = append(recs, "The answer is well supported by its sources.")
	}
	if recs == nil {
		recs = []string{}
	}
	return recs
}
