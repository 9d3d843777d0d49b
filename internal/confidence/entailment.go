package confidence

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/research-agent/backend/internal/jsonrepair"
	"github.com/research-agent/backend/internal/llm"
	"github.com/research-agent/backend/pkg/logger"
)

const neutralScore = 0.5

const entailmentSystemPrompt = `You are a meticulous fact checker. Decide whether source passages support, contradict, or do not address a claim.
Respond with a single JSON object and nothing else.`

const entailmentPromptTemplate = `CLAIM:
%s

SOURCE PASSAGES:
%s

Decide whether the passages entail the claim.
- "entailed": the passages state or directly imply the claim
- "contradicted": the passages state something incompatible with the claim
- "neutral": the passages do not settle the claim

Return JSON in exactly this shape:
{"verdict": "entailed" | "neutral" | "contradicted", "score": <0.0-1.0 strength of the verdict>, "supportingPassages": [<passage numbers>], "contradictingPassages": [<passage numbers>], "reasoning": "<one or two sentences>"}`

// EntailmentChecker ranks source passages against each claim by embedding
// similarity and asks the judge for a verdict on the best ones. Every
// failure degrades to a neutral verdict.
type EntailmentChecker struct {
	judge    llm.Completer
	embedder llm.Embedder
	cfg      Config
}

func NewEntailmentChecker(judge llm.Completer, embedder llm.Embedder, cfg Config) *EntailmentChecker {
	return &EntailmentChecker{judge: judge, embedder: embedder, cfg: cfg.withDefaults()}
}

type passage struct {
	source    Source
	text      string
	embedding []float32
}

type rankedPassage struct {
	passage
	similarity float64
}

type entailmentResponse struct {
	Verdict               string `json:"verdict"`
	Score                 any    `json:"score"`
	SupportingPassages    []any  `json:"supportingPassages"`
	ContradictingPassages []any  `json:"contradictingPassages"`
	Reasoning             string `json:"reasoning"`
}

// CheckAll checks every claim against the same sources. Source chunks are
// embedded once and shared across claims.
func (c *EntailmentChecker) CheckAll(ctx context.Context, claims []Claim, sources []Source) []EntailmentResult {
	passages := c.indexSources(ctx, sources)

	results := make([]EntailmentResult, len(claims))
	for i, claim := range claims {
		results[i] = c.check(ctx, claim, passages, len(sources))
	}
	return results
}

func (c *EntailmentChecker) Check(ctx context.Context, claim Claim, sources []Source) EntailmentResult {
	return c.check(ctx, claim, c.indexSources(ctx, sources), len(sources))
}

// indexSources chunks every source and embeds chunks of at least
// MinChunkChars, EmbeddingConcurrency at a time. Chunks that fail to embed
// are dropped.
func (c *EntailmentChecker) indexSources(ctx context.Context, sources []Source) []passage {
	var pending []passage
	for _, s := range sources {
		for _, chunk := range ChunkText(s.Content, c.cfg.MaxChunkChars) {
			if len(chunk) < c.cfg.MinChunkChars {
				continue
			}
			pending = append(pending, passage{source: s, text: chunk})
		}
	}

	var g errgroup.Group
	g.SetLimit(c.cfg.EmbeddingConcurrency)
	for i := range pending {
		g.Go(func() error {
			emb, err := c.embedder.GenerateEmbedding(ctx, pending[i].text)
			if err != nil {
				logger.Warn("Failed to embed source chunk",
					zap.String("source_id", pending[i].source.ID),
					zap.Error(err),
				)
				return nil
			}
			pending[i].embedding = emb
			return nil
		})
	}
	_ = g.Wait()

	passages := pending[:0]
	for _, p := range pending {
		if p.embedding != nil {
			passages = append(passages, p)
		}
	}
	return passages
}

func (c *EntailmentChecker) check(ctx context.Context, claim Claim, passages []passage, sourceCount int) EntailmentResult {
	result := EntailmentResult{
		ClaimID:              claim.ID,
		Verdict:              VerdictNeutral,
		Score:                neutralScore,
		SupportingSources:    []SourceEvidence{},
		ContradictingSources: []SourceEvidence{},
	}

	claimEmb, err := c.embedder.GenerateEmbedding(ctx, claim.Text)
	if err != nil {
		logger.Warn("Failed to embed claim", zap.String("claim_id", claim.ID), zap.Error(err))
		result.Reasoning = fmt.Sprintf("Claim could not be embedded: %v", err)
		return result
	}

	ranked := c.rank(claimEmb, passages, sourceCount)
	if len(ranked) == 0 {
		result.Reasoning = "No source passage is similar enough to the claim."
		return result
	}

	resp, err := c.judge.Complete(ctx, llm.CompletionRequest{
		Model:        c.cfg.Model,
		SystemPrompt: entailmentSystemPrompt,
		UserPrompt:   fmt.Sprintf(entailmentPromptTemplate, claim.Text, renderPassages(ranked)),
		Temperature:  llm.Float32(c.cfg.Temperature),
		MaxTokens:    c.cfg.MaxTokens,
		JSONMode:     true,
	})
	if err != nil {
		logger.Warn("Entailment judge call failed", zap.String("claim_id", claim.ID), zap.Error(err))
		result.Reasoning = fmt.Sprintf("Entailment check failed: %v", err)
		return result
	}

	var parsed entailmentResponse
	if err := jsonrepair.UnmarshalObject(resp.Content, &parsed); err != nil {
		logger.Warn("Failed to parse entailment response", zap.String("claim_id", claim.ID), zap.Error(err))
		result.Reasoning = fmt.Sprintf("Entailment response could not be parsed: %v", err)
		return result
	}

	result.Verdict = parseVerdict(parsed.Verdict)
	result.Score = neutralScore
	if v, ok := toFloat(parsed.Score); ok {
		result.Score = clamp01(v)
	}
	result.SupportingSources = evidenceFor(parsed.SupportingPassages, ranked)
	result.ContradictingSources = evidenceFor(parsed.ContradictingPassages, ranked)
	result.Reasoning = strings.TrimSpace(parsed.Reasoning)

	return result
}

// rank keeps passages at or above the similarity threshold, best first,
// capped at PassagesPerSource per source in total.
func (c *EntailmentChecker) rank(claimEmb []float32, passages []passage, sourceCount int) []rankedPassage {
	var ranked []rankedPassage
	for _, p := range passages {
		sim := cosineSimilarity(claimEmb, p.embedding)
		if sim >= c.cfg.SimilarityThreshold {
			ranked = append(ranked, rankedPassage{passage: p, similarity: clamp01(sim)})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].similarity > ranked[j].similarity
	})

	if limit := c.cfg.PassagesPerSource * sourceCount; len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func renderPassages(ranked []rankedPassage) string {
	var b strings.Builder
	for i, p := range ranked {
		fmt.Fprintf(&b, "[%d] (source: %s)\n%s\n\n", i+1, p.source.URL, p.text)
	}
	return strings.TrimSpace(b.String())
}

// evidenceFor maps 1-based passage numbers back to ranked passages. Numbers
// out of range are dropped.
func evidenceFor(numbers []any, ranked []rankedPassage) []SourceEvidence {
	out := []SourceEvidence{}
	seen := make(map[int]bool)
	for _, raw := range numbers {
		n, ok := toFloat(raw)
		if !ok || n != math.Trunc(n) {
			continue
		}
		i := int(n) - 1
		if i < 0 || i >= len(ranked) || seen[i] {
			continue
		}
		seen[i] = true
		p := ranked[i]
		out = append(out, SourceEvidence{
			SourceID:     p.source.ID,
			SourceURL:    p.source.URL,
			RelevantText: p.text,
			Similarity:   p.similarity,
		})
	}
	return out
}

func parseVerdict(s string) Verdict {
	switch v := Verdict(strings.ToLower(strings.TrimSpace(s))); v {
	case VerdictEntailed, VerdictNeutral, VerdictContradicted:
		return v
	}
	return VerdictNeutral
}

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

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
