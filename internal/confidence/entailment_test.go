package confidence

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blueNoteClaim() Claim {
	return Claim{ID: "claim-1", Text: "The Blue Note hosts a jazz night."}
}

func TestCheckEntailed(t *testing.T) {
	judge := &recordingJudge{content: `{"verdict": "Entailed", "score": 0.9, "supportingPassages": [1, 7, "1", 0.5],
		"contradictingPassages": [], "reasoning": "Passage 1 states it."}`}
	embedder := &keywordEmbedder{keyword: "blue note"}
	cfg := DefaultConfig()
	cfg.MaxChunkChars = 100

	res := NewEntailmentChecker(judge, embedder, cfg).Check(context.Background(), blueNoteClaim(), []Source{blueNoteSource()})

	assert.Equal(t, VerdictEntailed, res.Verdict)
	assert.Equal(t, 0.9, res.Score)
	assert.Equal(t, "claim-1", res.ClaimID)
	require.Len(t, res.SupportingSources, 1)
	ev := res.SupportingSources[0]
	assert.Equal(t, "src-1", ev.SourceID)
	assert.Equal(t, 1.0, ev.Similarity)
	assert.Contains(t, ev.RelevantText, "Blue Note")
	assert.Empty(t, res.ContradictingSources)

	require.Equal(t, 1, judge.calls())
	prompt := judge.requests[0].UserPrompt
	assert.Contains(t, prompt, "[1] (source: https://bluenote.example/jazz)")
	assert.NotContains(t, prompt, "Parking", "dissimilar paragraph is not sent to the judge")
}

func TestCheckNoSimilarPassagesSkipsJudge(t *testing.T) {
	judge := &recordingJudge{content: `{"verdict": "entailed", "score": 1}`}
	embedder := &keywordEmbedder{keyword: "parking"}

	res := NewEntailmentChecker(judge, embedder, DefaultConfig()).Check(context.Background(), blueNoteClaim(), []Source{blueNoteSource()})

	assert.Equal(t, VerdictNeutral, res.Verdict)
	assert.Equal(t, 0.5, res.Score)
	assert.Zero(t, judge.calls())
}

func TestCheckFailsOpen(t *testing.T) {
	tests := []struct {
		name     string
		judge    *recordingJudge
		embedder *keywordEmbedder
		reason   string
	}{{
		name:     "judge error",
		judge:    &recordingJudge{err: errors.New("timeout")},
		embedder: &keywordEmbedder{keyword: "blue note"},
		reason:   "timeout",
	}, {
		name:     "unparsable verdict",
		judge:    &recordingJudge{content: "entailed, clearly"},
		embedder: &keywordEmbedder{keyword: "blue note"},
		reason:   "could not be parsed",
	}, {
		name:     "claim embedding error",
		judge:    &recordingJudge{content: `{"verdict": "entailed"}`},
		embedder: &keywordEmbedder{keyword: "blue note", failOn: "jazz night."},
		reason:   "could not be embedded",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewEntailmentChecker(tt.judge, tt.embedder, DefaultConfig()).Check(context.Background(), blueNoteClaim(), []Source{blueNoteSource()})

			assert.Equal(t, VerdictNeutral, res.Verdict)
			assert.Equal(t, 0.5, res.Score)
			assert.Contains(t, res.Reasoning, tt.reason)
		})
	}
}

func TestCheckCapsPassagesPerSource(t *testing.T) {
	var paras []string
	for i := 0; i < 6; i++ {
		paras = append(paras, strings.Repeat("The Blue Note jazz club is open late tonight. ", 2)+strings.Repeat("x", i))
	}
	src := Source{ID: "src-1", URL: "https://bluenote.example", Content: strings.Join(paras, "\n\n")}
	judge := &recordingJudge{content: `{"verdict": "neutral", "score": 0.5}`}

	cfg := DefaultConfig()
	cfg.MaxChunkChars = 100
	NewEntailmentChecker(judge, &keywordEmbedder{keyword: "blue note"}, cfg).Check(context.Background(), blueNoteClaim(), []Source{src})

	require.Equal(t, 1, judge.calls())
	prompt := judge.requests[0].UserPrompt
	assert.Contains(t, prompt, "[3]")
	assert.NotContains(t, prompt, "[4]")
}

func TestCheckAllEmbedsSourcesOnce(t *testing.T) {
	judge := &recordingJudge{content: `{"verdict": "entailed", "score": 0.8, "supportingPassages": [1]}`}
	embedder := &keywordEmbedder{keyword: "blue note"}
	claims := []Claim{blueNoteClaim(), {ID: "claim-2", Text: "The Blue Note is a jazz venue."}}

	results := NewEntailmentChecker(judge, embedder, DefaultConfig()).CheckAll(context.Background(), claims, []Source{blueNoteSource()})

	require.Len(t, results, 2)
	assert.Equal(t, "claim-2", results[1].ClaimID)
	// two source paragraphs packed into one chunk, plus one embedding per claim
	assert.Equal(t, int32(3), embedder.calls.Load())
}

func TestCheckSkipsShortChunksAndFailedEmbeddings(t *testing.T) {
	src := Source{ID: "s", URL: "u", Content: "Blue Note.\n\n" + strings.Repeat("The Blue Note opens at eight. ", 3)}
	cfg := DefaultConfig()
	cfg.MaxChunkChars = 60

	checker := NewEntailmentChecker(&recordingJudge{}, &keywordEmbedder{keyword: "blue note", failOn: "eight"}, cfg)
	passages := checker.indexSources(context.Background(), []Source{src})

	assert.Empty(t, passages)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{0, 1}))
	assert.Zero(t, cosineSimilarity([]float32{1}, []float32{1, 0}))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{0, 0}))
}
