package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{{
		name: "transport error",
		err:  errors.New("connection reset"),
		want: true,
	}, {
		name: "rate limited",
		err:  fmt.Errorf("failed to create completion: %w", &openai.APIError{HTTPStatusCode: 429}),
		want: true,
	}, {
		name: "server error",
		err:  &openai.RequestError{HTTPStatusCode: 503, Err: errors.New("unavailable")},
		want: true,
	}, {
		name: "bad request",
		err:  &openai.APIError{HTTPStatusCode: 400},
		want: false,
	}, {
		name: "unauthorized",
		err:  &openai.APIError{HTTPStatusCode: 401},
		want: false,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func TestIsServiceFailure(t *testing.T) {
	assert.False(t, isServiceFailure(context.Canceled))
	assert.False(t, isServiceFailure(&openai.APIError{HTTPStatusCode: 400}))
	assert.True(t, isServiceFailure(&openai.APIError{HTTPStatusCode: 500}))
	assert.True(t, isServiceFailure(errors.New("dial tcp: timeout")))
}

func TestRequestTemperature(t *testing.T) {
	tests := []struct {
		name      string
		requested *float32
		fallback  float32
		want      float32
	}{
		{"nil uses client default", nil, 0.7, 0.7},
		{"explicit value wins", Float32(0.2), 0.7, 0.2},
		{"explicit zero is kept deterministic", Float32(0), 0.7, math.SmallestNonzeroFloat32},
		{"zero default", nil, 0, math.SmallestNonzeroFloat32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, requestTemperature(tt.requested, tt.fallback))
		})
	}
}
