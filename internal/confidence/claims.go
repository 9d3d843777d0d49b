package confidence

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/research-agent/backend/internal/jsonrepair"
	"github.com/research-agent/backend/internal/llm"
	"github.com/research-agent/backend/internal/metrics"
	"github.com/research-agent/backend/pkg/logger"
)

const claimSystemPrompt = `You split research answers into discrete, independently checkable claims.
Respond with a JSON array and nothing else.`

const claimPromptTemplate = `Extract every discrete claim from the answer below.

For each claim give:
- "text": the claim as a standalone sentence, quoted from the answer where possible
- "type": one of factual, comparative, temporal, causal, opinion
- "substantiveWords": the words the claim's truth depends on, each with "word", "type" (proper_noun, numeral, noun, verb) and "position" (character offset within the claim text)
- "sourceSpan": {"start": <offset>, "end": <offset>} into the answer

ANSWER:
%s

Return JSON in exactly this shape:
[{"text": "...", "type": "factual", "substantiveWords": [{"word": "...", "type": "proper_noun", "position": 0}], "sourceSpan": {"start": 0, "end": 0}}]`

// ClaimExtractor asks the judge for the answer's claims. A judge call error
// is returned to the caller; a malformed response falls back to one
// synthetic claim so the list is never empty for a non-empty answer.
type ClaimExtractor struct {
	judge llm.Completer
	cfg   Config
}

func NewClaimExtractor(judge llm.Completer, cfg Config) *ClaimExtractor {
	return &ClaimExtractor{judge: judge, cfg: cfg.withDefaults()}
}

type rawClaim struct {
	Text             string    `json:"text"`
	Type             string    `json:"type"`
	SubstantiveWords []rawWord `json:"substantiveWords"`
}

type rawWord struct {
	Word     string `json:"word"`
	Type     string `json:"type"`
	Position *int   `json:"position"`
}

func (e *ClaimExtractor) Extract(ctx context.Context, answer string) ([]Claim, error) {
	if strings.TrimSpace(answer) == "" {
		return nil, nil
	}

	resp, err := e.judge.Complete(ctx, llm.CompletionRequest{
		Model:        e.cfg.Model,
		SystemPrompt: claimSystemPrompt,
		UserPrompt:   fmt.Sprintf(claimPromptTemplate, answer),
		Temperature:  llm.Float32(e.cfg.Temperature),
		MaxTokens:    e.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract claims: %w", err)
	}

	claims, err := parseClaims(resp.Content, answer)
	if err != nil {
		logger.Warn("Claim extraction fell back to a single claim", zap.Error(err))
		claims = []Claim{fallbackClaim(answer, e.cfg.FallbackClaimChars)}
	}

	metrics.ClaimsExtracted.Observe(float64(len(claims)))
	logger.Debug("Claims extracted", zap.Int("claims", len(claims)))
	return claims, nil
}

func parseClaims(content, answer string) ([]Claim, error) {
	var raw []rawClaim
	if err := jsonrepair.UnmarshalArray(content, &raw); err != nil {
		return nil, err
	}

	claims := make([]Claim, 0, len(raw))
	for _, rc := range raw {
		text := strings.TrimSpace(rc.Text)
		if text == "" {
			continue
		}
		claims = append(claims, Claim{
			ID:               fmt.Sprintf("claim-%d", len(claims)+1),
			Text:             text,
			Type:             parseClaimType(rc.Type),
			SubstantiveWords: parseWords(rc.SubstantiveWords, text),
			SourceSpan:       locate(answer, text),
		})
	}
	if len(claims) == 0 {
		return nil, fmt.Errorf("no claims in response")
	}
	return claims, nil
}

func parseClaimType(s string) ClaimType {
	switch t := ClaimType(strings.ToLower(strings.TrimSpace(s))); t {
	case ClaimFactual, ClaimComparative, ClaimTemporal, ClaimCausal, ClaimOpinion:
		return t
	}
	return ClaimFactual
}

// parseWords keeps words of a known type and derives importance from the
// type, ignoring any importance the judge volunteers.
func parseWords(raw []rawWord, claimText string) []SubstantiveWord {
	var words []SubstantiveWord
	for _, rw := range raw {
		word := strings.TrimSpace(rw.Word)
		wt := WordType(strings.ToLower(strings.TrimSpace(rw.Type)))
		importance, ok := wordImportance[wt]
		if word == "" || !ok {
			continue
		}

		pos := strings.Index(claimText, word)
		if rw.Position != nil && *rw.Position >= 0 && *rw.Position < len(claimText) {
			pos = *rw.Position
		}

		words = append(words, SubstantiveWord{
			Word:       word,
			Type:       wt,
			Position:   pos,
			Importance: importance,
		})
	}
	return words
}

// locate finds text in answer, falling back to the whole answer.
func locate(answer, text string) Span {
	if i := strings.Index(answer, text); i >= 0 {
		return Span{Start: i, End: i + len(text)}
	}
	return Span{Start: 0, End: len(answer)}
}

func fallbackClaim(answer string, maxChars int) Claim {
	text := truncateRunes(strings.TrimSpace(answer), maxChars)
	return Claim{
		ID:         "claim-1",
		Text:       text,
		Type:       ClaimFactual,
		SourceSpan: locate(answer, text),
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
