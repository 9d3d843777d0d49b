package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/research-agent/backend/internal/metrics"
	"github.com/research-agent/backend/pkg/logger"
)

var (
	ErrTimeout  = errors.New("evaluation timed out")
	errPanicked = errors.New("evaluation panicked")
)

type outcome[T any] struct {
	value T
	err   error
}

// Guard runs fn under a deadline and never fails: on error, panic, deadline
// or cancellation it returns fallback(reason) instead. fn receives the
// derived context, which is cancelled once Guard returns, so an abandoned
// call stops as soon as it next checks its context.
func Guard[T any](ctx context.Context, phase Phase, timeout time.Duration, fallback func(reason string) T, fn func(ctx context.Context) (T, error)) T {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[T]{err: fmt.Errorf("%w: %v", errPanicked, r)}
			}
		}()
		v, err := fn(ctx)
		done <- outcome[T]{value: v, err: err}
	}()

	var err error
	kind := "error"
	select {
	case out := <-done:
		if out.err == nil && ctx.Err() == nil {
			metrics.EvaluationDuration.WithLabelValues(string(phase)).Observe(time.Since(start).Seconds())
			return out.value
		}
		err = out.err
		if err == nil {
			err = ctx.Err()
		}
		if errors.Is(err, errPanicked) {
			kind = "panic"
		}
	case <-ctx.Done():
		err = ctx.Err()
	}
	// fn may see the deadline and return before Done is selected
	if kind != "panic" && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s", ErrTimeout, timeout)
		kind = "timeout"
	}

	logger.Warn("Evaluation failed open",
		zap.String("phase", string(phase)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)
	metrics.GatewayFallbacks.WithLabelValues(string(phase), kind).Inc()

	return fallback(err.Error())
}
