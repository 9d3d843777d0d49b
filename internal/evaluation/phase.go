package evaluation

import (
	"context"
	"fmt"
	"strings"

	"github.com/research-agent/backend/internal/metrics"
)

// failSafeReason reports why a single-pass phase evaluation cannot be
// trusted: the context ended, or every judge on the panel failed. An empty
// string means the panel result is usable.
func failSafeReason(ctx context.Context, results []EvaluatorResult) string {
	if err := ctx.Err(); err != nil {
		return fmt.Sprintf("evaluation cancelled: %v", err)
	}
	if len(results) == 0 {
		return "no judges ran"
	}

	var reasons []string
	for _, r := range results {
		if !r.Failed {
			return ""
		}
		reasons = append(reasons, fmt.Sprintf("%s: %s", r.Role, r.Critique))
	}
	return "all judges failed: " + strings.Join(reasons, "; ")
}

func zeroScores(weights map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(weights))
	for dim := range weights {
		out[dim] = 0
	}
	return out
}

func collectNarrative(results []EvaluatorResult) (map[string]string, []string) {
	explanations := make(map[string]string)
	var critiques []string
	for _, r := range results {
		if r.Failed {
			continue
		}
		for dim, text := range r.Explanations {
			explanations[dim] = text
		}
		if c := strings.TrimSpace(r.Critique); c != "" {
			critiques = append(critiques, fmt.Sprintf("[%s] %s", r.Role, c))
		}
	}
	return explanations, critiques
}

func recordOutcome(phase Phase, passed, skipped bool, overall float64) {
	status := "failed"
	switch {
	case skipped:
		status = "skipped"
	case passed:
		status = "passed"
	}
	metrics.EvaluationTotal.WithLabelValues(string(phase), status).Inc()
	if !skipped {
		metrics.EvaluationScore.WithLabelValues(string(phase)).Observe(overall)
	}
}
