package confidence

const suMethodology = "SU score = 1 - sum(importance * uncertainty) / sum(importance) over substantive words; " +
	"word uncertainty = entailment base uncertainty * word-type importance; " +
	"document score weights each claim by its total word importance."

// baseUncertainty is the per-claim uncertainty implied by its entailment
// verdict and score.
func baseUncertainty(e EntailmentResult) float64 {
	s := clamp01(e.Score)
	switch e.Verdict {
	case VerdictEntailed:
		return 0.1 + 0.2*(1-s)
	case VerdictContradicted:
		return 0.8 + 0.2*(1-s)
	}
	return 0.5
}

// normalizedEntailment maps a verdict and score onto one 0..1 support scale.
func normalizedEntailment(e EntailmentResult) float64 {
	return clamp01(1 - baseUncertainty(e))
}

// CalculateSUScores scores every claim against its entailment result. A
// claim without an entailment result is treated as neutral.
func CalculateSUScores(claims []Claim, entailments []EntailmentResult) SUScoreResult {
	byClaim := indexEntailments(entailments)

	result := SUScoreResult{
		ClaimScores: make([]ClaimSUScore, 0, len(claims)),
		Methodology: suMethodology,
	}

	var weighted, totalWeight float64
	for _, claim := range claims {
		cs, weight := claimSUScore(claim, byClaim[claim.ID])
		result.ClaimScores = append(result.ClaimScores, cs)
		weighted += cs.Score * weight
		totalWeight += weight
	}

	result.OverallScore = neutralScore
	if totalWeight > 0 {
		result.OverallScore = clamp01(weighted / totalWeight)
	}
	return result
}

func claimSUScore(claim Claim, e EntailmentResult) (ClaimSUScore, float64) {
	cs := ClaimSUScore{
		ClaimID:       claim.ID,
		Score:         neutralScore,
		WordBreakdown: make([]WordContribution, 0, len(claim.SubstantiveWords)),
	}
	if e.ClaimID == "" {
		e = EntailmentResult{ClaimID: claim.ID, Verdict: VerdictNeutral, Score: neutralScore}
	}

	base := baseUncertainty(e)
	var sumContribution, sumImportance float64
	for _, w := range claim.SubstantiveWords {
		importance := clamp01(w.Importance)
		uncertainty := clamp01(base * importance)
		contribution := importance * uncertainty
		cs.WordBreakdown = append(cs.WordBreakdown, WordContribution{
			Word:         w.Word,
			Importance:   importance,
			Uncertainty:  uncertainty,
			Contribution: contribution,
		})
		sumContribution += contribution
		sumImportance += importance
	}

	if sumImportance > 0 {
		cs.Score = clamp01(1 - sumContribution/sumImportance)
	}
	return cs, sumImportance
}

func indexEntailments(entailments []EntailmentResult) map[string]EntailmentResult {
	m := make(map[string]EntailmentResult, len(entailments))
	for _, e := range entailments {
		m[e.ClaimID] = e
	}
	return m
}
