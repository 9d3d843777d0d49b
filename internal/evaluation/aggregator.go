package evaluation

import (
	"fmt"
	"math"
)

// AggregateScores unions the panel's score maps. When several results score
// the same dimension the last one in slice order wins. Confidence is the mean
// over every result, including failed ones.
func AggregateScores(results []EvaluatorResult) AggregatedResult {
	agg := AggregatedResult{Scores: make(map[string]float64)}
	if len(results) == 0 {
		return agg
	}

	var total float64
	for _, r := range results {
		for dim, score := range r.Scores {
			agg.Scores[dim] = clamp01(score)
		}
		total += clamp01(r.Confidence)
	}
	agg.Confidence = clamp01(total / float64(len(results)))
	return agg
}

// CalculateOverallScore is the weighted mean over dimensions present in both
// scores and weights, normalised by the matched weight. With nil weights the
// default table is used when any dimension matches it, otherwise a plain
// mean of all scores. Returns 0 when nothing matches.
func CalculateOverallScore(scores, weights map[string]float64) float64 {
	if len(scores) == 0 {
		return 0
	}

	if weights == nil {
		if !anyMatch(scores, defaultWeights) {
			var sum float64
			for _, s := range scores {
				sum += clamp01(s)
			}
			return clamp01(sum / float64(len(scores)))
		}
		weights = defaultWeights
	}

	var weighted, matched float64
	for dim, w := range weights {
		s, ok := scores[dim]
		if !ok || w <= 0 {
			continue
		}
		weighted += clamp01(s) * w
		matched += w
	}
	if matched == 0 {
		return 0
	}
	return clamp01(weighted / matched)
}

func anyMatch(scores, weights map[string]float64) bool {
	for dim := range scores {
		if _, ok := weights[dim]; ok {
			return true
		}
	}
	return false
}

// CheckEscalationTriggers applies the default trigger thresholds with the
// given pass threshold.
func CheckEscalationTriggers(agg AggregatedResult, results []EvaluatorResult, passThreshold float64) Trigger {
	cfg := DefaultConfig()
	cfg.PassThreshold = passThreshold
	return cfg.checkTriggers(agg, results)
}

// checkTriggers returns the first trigger that fires, in precedence order
// low_confidence, disagreement, borderline.
func (c Config) checkTriggers(agg AggregatedResult, results []EvaluatorResult) Trigger {
	if agg.Confidence < c.ConfidenceThreshold || allBelow(results, c.ConfidenceThreshold) {
		return TriggerLowConfidence
	}

	if _, spread := maxSpread(results); spread > c.DisagreementThreshold {
		return TriggerDisagreement
	}

	overall := CalculateOverallScore(agg.Scores, nil)
	if math.Abs(overall-c.PassThreshold) < c.BorderlineMargin {
		return TriggerBorderline
	}

	return TriggerNone
}

func allBelow(results []EvaluatorResult, threshold float64) bool {
	for _, r := range results {
		if clamp01(r.Confidence) >= threshold {
			return false
		}
	}
	return true
}

// maxSpread returns the dimension with the widest max-min gap across the
// results that scored it.
func maxSpread(results []EvaluatorResult) (string, float64) {
	type bounds struct{ lo, hi float64 }
	seen := make(map[string]bounds)
	for _, r := range results {
		for dim, s := range r.Scores {
			s = clamp01(s)
			b, ok := seen[dim]
			if !ok {
				seen[dim] = bounds{s, s}
				continue
			}
			b.lo = math.Min(b.lo, s)
			b.hi = math.Max(b.hi, s)
			seen[dim] = b
		}
	}

	var widest string
	var spread float64
	for _, dim := range sortedKeys(seen) {
		if d := seen[dim].hi - seen[dim].lo; d > spread {
			widest, spread = dim, d
		}
	}
	return widest, spread
}

// CheckDimensionThresholds fails any dimension present in both maps whose
// score is below its threshold. Missing scores and unthresholded dimensions
// are never failures.
func CheckDimensionThresholds(scores, thresholds map[string]float64) DimensionCheck {
	check := DimensionCheck{Passed: true}
	if len(thresholds) == 0 {
		return check
	}

	for _, dim := range sortedKeys(thresholds) {
		s, ok := scores[dim]
		if !ok {
			continue
		}
		if t := thresholds[dim]; s < t {
			check.FailingDimensions = append(check.FailingDimensions, fmt.Sprintf("%s (%.2f < %.2f)", dim, s, t))
		}
	}
	check.Passed = len(check.FailingDimensions) == 0
	return check
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
