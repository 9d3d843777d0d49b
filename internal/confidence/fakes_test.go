package confidence

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/research-agent/backend/internal/llm"
)

type judgeFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

func (f judgeFunc) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return f(ctx, req)
}

// recordingJudge returns a fixed response and keeps every request.
type recordingJudge struct {
	mu       sync.Mutex
	content  string
	err      error
	requests []llm.CompletionRequest
}

func (j *recordingJudge) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	j.mu.Lock()
	j.requests = append(j.requests, req)
	j.mu.Unlock()
	if j.err != nil {
		return nil, j.err
	}
	return &llm.CompletionResponse{Content: j.content}, nil
}

func (j *recordingJudge) calls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.requests)
}

// keywordEmbedder puts text mentioning keyword on one axis and everything
// else on an orthogonal one, so similarity is either 1 or 0.
type keywordEmbedder struct {
	keyword string
	failOn  string
	calls   atomic.Int32
}

func (e *keywordEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, errors.New("embedding service unavailable")
	}
	if strings.Contains(strings.ToLower(text), e.keyword) {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

func blueNoteSource() Source {
	return Source{
		ID:  "src-1",
		URL: "https://bluenote.example/jazz",
		Content: "The Blue Note hosts a jazz night on November 29 starting at 8 PM sharp.\n\n" +
			"Parking nearby is limited, so public transport is recommended for visitors.",
	}
}
