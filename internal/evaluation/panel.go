package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/research-agent/backend/internal/jsonrepair"
	"github.com/research-agent/backend/internal/llm"
	"github.com/research-agent/backend/internal/metrics"
	"github.com/research-agent/backend/pkg/logger"
)

const (
	stubConfidence = 0.3
	maxSourceChars = 1500
)

var errNoScores = errors.New("judge response contained no scores")

// Panel runs role-scoped judge calls. It never returns an error: a failing
// judge yields a low-confidence stub result.
type Panel struct {
	judge llm.Completer
	cfg   Config
}

func NewPanel(judge llm.Completer, cfg Config) *Panel {
	return &Panel{judge: judge, cfg: cfg.withDefaults()}
}

// EvaluateWithPanel runs every role concurrently, at most MaxConcurrentJudges
// at a time, and returns one result per role in input order.
func (p *Panel) EvaluateWithPanel(ctx context.Context, roles []Role, ec EvalContext) []EvaluatorResult {
	results := make([]EvaluatorResult, len(roles))

	var g errgroup.Group
	g.SetLimit(p.cfg.MaxConcurrentJudges)
	for i, role := range roles {
		g.Go(func() error {
			results[i] = p.EvaluateWithRole(ctx, role, ec)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (p *Panel) EvaluateWithRole(ctx context.Context, role Role, ec EvalContext) EvaluatorResult {
	start := time.Now()
	result := EvaluatorResult{
		Role:       role,
		Model:      p.cfg.PanelModel,
		Dimensions: role.Dimensions(),
	}

	if !role.valid() {
		return p.stub(result, start, fmt.Errorf("unknown role %d", int(role)), "call_error")
	}

	resp, err := p.judge.Complete(ctx, llm.CompletionRequest{
		Model:        p.cfg.PanelModel,
		SystemPrompt: systemPrompt(role),
		UserPrompt:   renderPrompt(role, ec),
		Temperature:  llm.Float32(p.cfg.Temperature),
		MaxTokens:    p.cfg.MaxTokens,
		JSONMode:     true,
	})
	if err != nil {
		return p.stub(result, start, fmt.Errorf("judge call failed: %w", err), "call_error")
	}
	if resp.Model != "" {
		result.Model = resp.Model
	}
	result.RawResponse = resp.Content
	result.Tokens = resp.Usage.TotalTokens

	if err := parseJudgeResponse(resp.Content, role, &result); err != nil {
		return p.stub(result, start, fmt.Errorf("failed to parse judge response: %w", err), "parse_error")
	}

	result.Latency = time.Since(start)
	metrics.JudgeCallsTotal.WithLabelValues(role.String(), "ok").Inc()
	metrics.JudgeLatency.WithLabelValues(role.String()).Observe(result.Latency.Seconds())

	logger.Debug("Judge evaluated",
		zap.String("role", role.String()),
		zap.Float64("confidence", result.Confidence),
		zap.Int("scores", len(result.Scores)),
	)

	return result
}

func (p *Panel) stub(result EvaluatorResult, start time.Time, err error, status string) EvaluatorResult {
	result.Scores = map[string]float64{}
	result.Confidence = stubConfidence
	result.Critique = err.Error()
	result.Explanations = nil
	result.Suggestions = nil
	result.Failed = true
	result.Latency = time.Since(start)

	metrics.JudgeCallsTotal.WithLabelValues(result.Role.String(), status).Inc()
	logger.Warn("Judge degraded to stub result",
		zap.String("role", result.Role.String()),
		zap.String("status", status),
		zap.Error(err),
	)
	return result
}

type judgeResponse struct {
	Scores      map[string]any  `json:"scores"`
	Confidence  any             `json:"confidence"`
	Critique    string          `json:"critique"`
	Explanation json.RawMessage `json:"explanation"`
	Suggestions json.RawMessage `json:"suggestions"`
}

func parseJudgeResponse(content string, role Role, result *EvaluatorResult) error {
	var parsed judgeResponse
	if err := jsonrepair.UnmarshalObject(content, &parsed); err != nil {
		return err
	}

	scores := make(map[string]float64, len(parsed.Scores))
	for dim, raw := range parsed.Scores {
		if v, ok := toFloat(raw); ok {
			scores[dim] = clamp01(v)
		}
	}
	if len(scores) == 0 {
		return errNoScores
	}

	result.Scores = scores
	result.Confidence = 0.5
	if v, ok := toFloat(parsed.Confidence); ok {
		result.Confidence = clamp01(v)
	}
	result.Critique = strings.TrimSpace(parsed.Critique)
	result.Explanations = parseExplanations(parsed.Explanation, role)
	result.Suggestions = parseSuggestions(parsed.Suggestions)
	return nil
}

// parseExplanations accepts either one string, which applies to every owned
// dimension, or an object keyed by dimension.
func parseExplanations(raw json.RawMessage, role Role) map[string]string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		text = strings.TrimSpace(text)
		if text == "" {
			return nil
		}
		out := make(map[string]string)
		for _, dim := range role.Dimensions() {
			out[dim] = text
		}
		return out
	}

	var byDim map[string]any
	if err := json.Unmarshal(raw, &byDim); err != nil {
		return nil
	}
	out := make(map[string]string, len(byDim))
	for dim, v := range byDim {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out[dim] = strings.TrimSpace(s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseSuggestions(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil && one != "" {
		return []string{one}
	}
	return nil
}

// toFloat reads a judge-supplied number, tolerating numeric strings.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func systemPrompt(role Role) string {
	spec := roleSpecs[role]
	return fmt.Sprintf(`You are the %s (%s) on a panel of independent judges reviewing the work of an autonomous research agent.
Score strictly and independently. A score of 1.0 means no reasonable improvement is possible; 0.5 means usable with clear gaps; below 0.3 means unusable.
Respond with a single JSON object and nothing else.`, spec.title, spec.name)
}

func renderPrompt(role Role, ec EvalContext) string {
	spec := roleSpecs[role]
	body := strings.NewReplacer(
		"{query}", ec.Query,
		"{plan}", renderPlan(ec.Plan),
		"{sources}", renderSources(ec.Sources),
		"{answer}", ec.Answer,
	).Replace(spec.template)

	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n\nReturn JSON in exactly this shape:\n{\n  \"scores\": {")
	for i, dim := range spec.dimensions {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q: <0.0-1.0>", dim)
	}
	b.WriteString("},\n  \"confidence\": <0.0-1.0, how sure you are of these scores>,\n")
	b.WriteString("  \"critique\": \"<the most important problems, or why none>\",\n")
	b.WriteString("  \"explanation\": {\"<dimension>\": \"<one sentence per score>\"},\n")
	b.WriteString("  \"suggestions\": [\"<concrete fix>\"]\n}")
	return b.String()
}

func renderPlan(plan any) string {
	switch v := plan.(type) {
	case nil:
		return "(no plan provided)"
	case string:
		return v
	case []byte:
		return string(v)
	}
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", plan)
	}
	return string(data)
}

func renderSources(sources []Source) string {
	if len(sources) == 0 {
		return "(no sources)"
	}
	var b strings.Builder
	for i, s := range sources {
		content := s.Content
		if len(content) > maxSourceChars {
			content = truncateBytes(content, maxSourceChars) + "..."
		}
		fmt.Fprintf(&b, "[%d] %s\nURL: %s\n%s\n\n", i+1, s.Title, s.URL, content)
	}
	return strings.TrimSpace(b.String())
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
