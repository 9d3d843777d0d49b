package evaluation

import (
	"fmt"
	"sort"
	"strings"
)

// Role is a judge persona. The set is closed: every role has a static
// roleSpec entry carrying its phase, prompt template and owned dimensions.
type Role int

const (
	RoleIntentAnalyst Role = iota
	RolePlanningStrategist
	RoleToolSpecialist
	RoleRetrievalAnalyst
	RoleSourceCritic
	RoleFactChecker
	RoleAnswerCritic

	roleCount
)

type roleSpec struct {
	name       string
	title      string
	phase      Phase
	dimensions []string
	template   string
}

var roleSpecs = [roleCount]roleSpec{
	RoleIntentAnalyst: {
		name:       "intent_analyst",
		title:      "Intent Analyst",
		phase:      PhasePlan,
		dimensions: []string{"intentAlignment", "queryCoverage"},
		template: `Evaluate whether this research plan answers what the user actually asked.

USER QUERY:
{query}

RESEARCH PLAN:
{plan}

Score:
- intentAlignment: does the plan target the user's real intent, including implicit constraints (time, place, budget)?
- queryCoverage: does the plan cover every part of the query, or does it drop sub-questions?`,
	},
	RolePlanningStrategist: {
		name:       "planning_strategist",
		title:      "Planning Strategist",
		phase:      PhasePlan,
		dimensions: []string{"scopeAppropriateness", "stepEfficiency"},
		template: `Evaluate the structure of this research plan.

USER QUERY:
{query}

RESEARCH PLAN:
{plan}

Score:
- scopeAppropriateness: is the plan neither too narrow to answer the query nor so broad it wastes effort?
- stepEfficiency: are the steps ordered sensibly, without redundant or missing steps?`,
	},
	RoleToolSpecialist: {
		name:       "tool_specialist",
		title:      "Tool Specialist",
		phase:      PhasePlan,
		dimensions: []string{"toolSelection", "parameterQuality"},
		template: `Evaluate the tool calls in this research plan.

USER QUERY:
{query}

RESEARCH PLAN:
{plan}

Score:
- toolSelection: is each step using the most suitable tool (search, fetch, extract) for its goal?
- parameterQuality: are search queries and tool parameters specific, well-formed and likely to return useful results?`,
	},
	RoleRetrievalAnalyst: {
		name:       "retrieval_analyst",
		title:      "Retrieval Analyst",
		phase:      PhaseRetrieval,
		dimensions: []string{"relevance", "coverage"},
		template: `Evaluate the sources retrieved for this query.

USER QUERY:
{query}

RETRIEVED SOURCES:
{sources}

Score:
- relevance: how directly do the sources address the query?
- coverage: together, do the sources contain enough information to answer every part of the query?`,
	},
	RoleSourceCritic: {
		name:       "source_critic",
		title:      "Source Critic",
		phase:      PhaseRetrieval,
		dimensions: []string{"sourceQuality", "diversity"},
		template: `Critically assess the quality of the retrieved sources.

USER QUERY:
{query}

RETRIEVED SOURCES:
{sources}

Score:
- sourceQuality: are the sources authoritative, current and specific rather than listings or link farms?
- diversity: do the sources come from independent origins with different perspectives?`,
	},
	RoleFactChecker: {
		name:       "fact_checker",
		title:      "Fact Checker",
		phase:      PhaseAnswer,
		dimensions: []string{"faithfulness", "citationAccuracy"},
		template: `Check the answer against its sources.

USER QUERY:
{query}

SOURCES:
{sources}

ANSWER:
{answer}

Score:
- faithfulness: is every factual statement in the answer supported by the sources, with nothing invented?
- citationAccuracy: do the citations point at sources that actually support the cited statements?`,
	},
	RoleAnswerCritic: {
		name:       "answer_critic",
		title:      "Answer Critic",
		phase:      PhaseAnswer,
		dimensions: []string{"completeness", "answerRelevance", "coherence"},
		template: `Assess the answer as the user would read it.

USER QUERY:
{query}

ANSWER:
{answer}

Score:
- completeness: does the answer address every part of the query?
- answerRelevance: does the answer stay on the question without padding?
- coherence: is the answer well organised, consistent and easy to follow?`,
	},
}

func (r Role) valid() bool {
	return r >= 0 && r < roleCount
}

func (r Role) String() string {
	if !r.valid() {
		return fmt.Sprintf("role(%d)", int(r))
	}
	return roleSpecs[r].name
}

func (r Role) Phase() Phase {
	if !r.valid() {
		return ""
	}
	return roleSpecs[r].phase
}

// Dimensions returns a copy of the score keys the role owns.
func (r Role) Dimensions() []string {
	if !r.valid() {
		return nil
	}
	return append([]string(nil), roleSpecs[r].dimensions...)
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.valid() {
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
	return []byte(roleSpecs[r].name), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

func ParseRole(s string) (Role, error) {
	for i := Role(0); i < roleCount; i++ {
		if roleSpecs[i].name == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown evaluator role %q", s)
}

// RolesFor returns the panel for a phase in declaration order.
func RolesFor(phase Phase) []Role {
	var roles []Role
	for i := Role(0); i < roleCount; i++ {
		if roleSpecs[i].phase == phase {
			roles = append(roles, i)
		}
	}
	return roles
}

var (
	planWeights = map[string]float64{
		"intentAlignment":      0.25,
		"queryCoverage":        0.20,
		"scopeAppropriateness": 0.15,
		"stepEfficiency":       0.10,
		"toolSelection":        0.20,
		"parameterQuality":     0.10,
	}

	retrievalWeights = map[string]float64{
		"relevance":             0.30,
		"coverage":              0.20,
		"sourceQuality":         0.20,
		"diversity":             0.10,
		"actionableInformation": 0.20,
	}

	answerWeights = map[string]float64{
		"faithfulness":     0.30,
		"citationAccuracy": 0.15,
		"completeness":     0.20,
		"answerRelevance":  0.20,
		"coherence":        0.15,
	}

	// defaultWeights is the union of the phase tables, used when the caller
	// supplies no weights.
	defaultWeights = mergeWeights(planWeights, retrievalWeights, answerWeights)
)

func mergeWeights(tables ...map[string]float64) map[string]float64 {
	out := make(map[string]float64)
	for _, t := range tables {
		for k, v := range t {
			out[k] = v
		}
	}
	return out
}

// WeightsFor returns a copy of the phase's weight table.
func WeightsFor(phase Phase) map[string]float64 {
	switch phase {
	case PhasePlan:
		return mergeWeights(planWeights)
	case PhaseRetrieval:
		return mergeWeights(retrievalWeights)
	case PhaseAnswer:
		return mergeWeights(answerWeights)
	}
	return nil
}

// knownDimensions maps lower-cased dimension names to their canonical form.
var knownDimensions = func() map[string]string {
	m := make(map[string]string)
	for _, spec := range roleSpecs {
		for _, d := range spec.dimensions {
			m[strings.ToLower(d)] = d
		}
	}
	for d := range defaultWeights {
		m[strings.ToLower(d)] = d
	}
	return m
}()

// NormalizeDimensionKeys restores the canonical casing of known dimension
// names. Config loaders lower-case map keys, so "intentalignment" from a
// YAML file becomes "intentAlignment". Unknown keys are kept as given.
func NormalizeDimensionKeys(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if canonical, ok := knownDimensions[strings.ToLower(k)]; ok {
			k = canonical
		}
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
