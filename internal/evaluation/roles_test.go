package evaluation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryRoleIsComplete(t *testing.T) {
	seen := map[string]bool{}
	for r := Role(0); r < roleCount; r++ {
		spec := roleSpecs[r]
		assert.NotEmpty(t, spec.name, "role %d has no name", r)
		assert.NotEmpty(t, spec.template, "%s has no template", r)
		assert.NotEmpty(t, spec.dimensions, "%s owns no dimensions", r)
		assert.NotEmpty(t, spec.phase, "%s has no phase", r)
		assert.False(t, seen[spec.name], "duplicate role name %s", spec.name)
		seen[spec.name] = true

		weights := WeightsFor(spec.phase)
		for _, d := range spec.dimensions {
			assert.Contains(t, weights, d, "%s dimension %s has no weight in the %s table", r, d, spec.phase)
		}
	}
}

func TestRolesFor(t *testing.T) {
	assert.Equal(t, []Role{RoleIntentAnalyst, RolePlanningStrategist, RoleToolSpecialist}, RolesFor(PhasePlan))
	assert.Equal(t, []Role{RoleRetrievalAnalyst, RoleSourceCritic}, RolesFor(PhaseRetrieval))
	assert.Equal(t, []Role{RoleFactChecker, RoleAnswerCritic}, RolesFor(PhaseAnswer))
}

func TestWeightTablesSumToOne(t *testing.T) {
	for _, phase := range []Phase{PhasePlan, PhaseRetrieval, PhaseAnswer} {
		var sum float64
		for _, w := range WeightsFor(phase) {
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "phase %s", phase)
	}
}

func TestWeightsForReturnsCopy(t *testing.T) {
	w := WeightsFor(PhaseAnswer)
	w["faithfulness"] = 0
	delete(w, "coherence")

	fresh := WeightsFor(PhaseAnswer)
	assert.Equal(t, 0.30, fresh["faithfulness"])
	assert.Contains(t, fresh, "coherence")
	assert.InDelta(t, (0.30*0.9+0.15*0.5)/0.45,
		CalculateOverallScore(map[string]float64{"faithfulness": 0.9, "coherence": 0.5}, nil), 1e-9)
}

func TestRoleJSON(t *testing.T) {
	data, err := json.Marshal(EvaluatorResult{Role: RoleSourceCritic})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"role":"source_critic"`)

	var r EvaluatorResult
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, RoleSourceCritic, r.Role)

	_, err = ParseRole("pirate")
	assert.Error(t, err)
}

func TestNormalizeDimensionKeys(t *testing.T) {
	got := NormalizeDimensionKeys(map[string]float64{
		"intentalignment":  0.6,
		"CITATIONACCURACY": 0.5,
		"customDim":        0.4,
	})
	assert.Equal(t, map[string]float64{
		"intentAlignment":  0.6,
		"citationAccuracy": 0.5,
		"customDim":        0.4,
	}, got)
	assert.Nil(t, NormalizeDimensionKeys(nil))
}
