package evaluation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/research-agent/backend/internal/jsonrepair"
	"github.com/research-agent/backend/internal/llm"
	"github.com/research-agent/backend/internal/metrics"
	"github.com/research-agent/backend/pkg/logger"
)

const escalationSystemPrompt = `You are a senior meta-judge. A panel of smaller judges reviewed an artifact produced by a research agent and could not reach a reliable decision.
Decide how far to trust each judge, resolve the scores yourself, and give a final verdict.
Respond with a single JSON object and nothing else.`

var triggerDescriptions = map[Trigger]string{
	TriggerLowConfidence: "The panel reported low confidence in its own scores.",
	TriggerDisagreement:  "Panel members disagree strongly on at least one dimension.",
	TriggerBorderline:    "The overall score sits right at the pass threshold.",
}

// Escalator makes one call to the large judge to settle a panel that
// triggered escalation.
type Escalator struct {
	judge llm.Completer
	cfg   Config
}

func NewEscalator(judge llm.Completer, cfg Config) *Escalator {
	return &Escalator{judge: judge, cfg: cfg.withDefaults()}
}

type escalationResponse struct {
	TrustDecisions map[string]struct {
		TrustScore any    `json:"trustScore"`
		Reasoning  string `json:"reasoning"`
	} `json:"trustDecisions"`
	ResolvedScores    map[string]any `json:"resolvedScores"`
	FinalVerdict      string         `json:"finalVerdict"`
	OverallConfidence any            `json:"overallConfidence"`
	Synthesis         string         `json:"synthesis"`
	Recommendations   []string       `json:"recommendations"`
}

// Escalate never returns an error. A failed call or unparsable response
// degrades to a "fail" verdict with the reason in the narrative.
func (e *Escalator) Escalate(ctx context.Context, trigger Trigger, query, content string, results []EvaluatorResult) EscalationResult {
	start := time.Now()
	out := EscalationResult{
		Trigger:        trigger,
		Model:          e.cfg.EscalationModel,
		TrustDecisions: map[string]float64{},
		Scores:         map[string]float64{},
	}

	resp, err := e.judge.Complete(ctx, llm.CompletionRequest{
		Model:        e.cfg.EscalationModel,
		SystemPrompt: escalationSystemPrompt,
		UserPrompt:   escalationPrompt(trigger, query, content, results),
		Temperature:  llm.Float32(e.cfg.Temperature),
		MaxTokens:    e.cfg.MaxTokens,
		JSONMode:     true,
	})
	if err != nil {
		return e.degrade(out, start, fmt.Errorf("escalation call failed: %w", err))
	}
	out.Tokens = resp.Usage.TotalTokens

	var parsed escalationResponse
	if err := jsonrepair.UnmarshalObject(resp.Content, &parsed); err != nil {
		return e.degrade(out, start, fmt.Errorf("failed to parse escalation response: %w", err))
	}

	for role, d := range parsed.TrustDecisions {
		if v, ok := toFloat(d.TrustScore); ok {
			out.TrustDecisions[role] = clamp01(v)
		}
	}
	for dim, raw := range parsed.ResolvedScores {
		if v, ok := toFloat(raw); ok {
			out.Scores[dim] = clamp01(v)
		}
	}
	if v, ok := toFloat(parsed.OverallConfidence); ok {
		out.OverallConfidence = clamp01(v)
	}
	out.FinalVerdict = parseVerdict(parsed.FinalVerdict)
	out.Narrative = strings.TrimSpace(parsed.Synthesis)
	out.Recommendations = parsed.Recommendations
	out.Latency = time.Since(start)

	metrics.EscalationsTotal.WithLabelValues(string(trigger), string(out.FinalVerdict)).Inc()
	logger.Info("Escalation resolved",
		zap.String("trigger", string(trigger)),
		zap.String("verdict", string(out.FinalVerdict)),
		zap.Int("resolved_scores", len(out.Scores)),
	)

	return out
}

func (e *Escalator) degrade(out EscalationResult, start time.Time, err error) EscalationResult {
	out.FinalVerdict = VerdictFail
	out.Scores = map[string]float64{}
	out.Narrative = "Escalation failed: " + err.Error()
	out.Failed = true
	out.Latency = time.Since(start)

	metrics.EscalationsTotal.WithLabelValues(string(out.Trigger), "error").Inc()
	logger.Warn("Escalation degraded to fail verdict",
		zap.String("trigger", string(out.Trigger)),
		zap.Error(err),
	)
	return out
}

// parseVerdict maps anything other than a known verdict to fail.
func parseVerdict(s string) Verdict {
	switch v := Verdict(strings.ToLower(strings.TrimSpace(s))); v {
	case VerdictPass, VerdictFail, VerdictIterate:
		return v
	}
	return VerdictFail
}

func escalationPrompt(trigger Trigger, query, content string, results []EvaluatorResult) string {
	var b strings.Builder

	reason := triggerDescriptions[trigger]
	if reason == "" {
		reason = "The panel result needs a second opinion."
	}
	fmt.Fprintf(&b, "ESCALATION TRIGGER: %s\n%s\n\n", trigger, reason)
	fmt.Fprintf(&b, "USER QUERY:\n%s\n\nCONTENT UNDER REVIEW:\n%s\n\nPANEL RESULTS:\n", query, content)

	for _, r := range results {
		fmt.Fprintf(&b, "\n--- %s (model %s, confidence %.2f) ---\n", r.Role, r.Model, r.Confidence)
		if r.Failed {
			b.WriteString("This judge failed and gave no scores.\n")
		}
		for _, dim := range sortedKeys(r.Scores) {
			fmt.Fprintf(&b, "  %s: %.2f\n", dim, r.Scores[dim])
		}
		if r.Critique != "" {
			fmt.Fprintf(&b, "Critique: %s\n", r.Critique)
		}
	}

	b.WriteString(`
Return JSON in exactly this shape:
{
  "trustDecisions": {"<role>": {"trustScore": <0.0-1.0>, "reasoning": "<why>"}},
  "resolvedScores": {"<dimension>": <0.0-1.0>},
  "finalVerdict": "pass" | "fail" | "iterate",
  "overallConfidence": <0.0-1.0>,
  "synthesis": "<how you resolved the panel>",
  "recommendations": ["<concrete fix>"]
}`)
	return b.String()
}
