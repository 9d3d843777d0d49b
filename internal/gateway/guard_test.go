package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reasonFallback(reason string) string {
	return "fallback: " + reason
}

func TestGuardReturnsValue(t *testing.T) {
	got := Guard(context.Background(), PhaseAnswer, time.Second, reasonFallback,
		func(ctx context.Context) (string, error) { return "ok", nil })

	assert.Equal(t, "ok", got)
}

func TestGuardFallsBackOnError(t *testing.T) {
	got := Guard(context.Background(), PhaseAnswer, time.Second, reasonFallback,
		func(ctx context.Context) (string, error) { return "partial", errors.New("judge unavailable") })

	assert.Equal(t, "fallback: judge unavailable", got)
}

func TestGuardFallsBackOnPanic(t *testing.T) {
	got := Guard(context.Background(), PhaseAnswer, time.Second, reasonFallback,
		func(ctx context.Context) (string, error) { panic("nil map") })

	assert.Contains(t, got, "evaluation panicked: nil map")
}

func TestGuardTimeoutCancelsWork(t *testing.T) {
	cancelled := make(chan struct{})

	got := Guard(context.Background(), PhaseRetrieval, 20*time.Millisecond, reasonFallback,
		func(ctx context.Context) (string, error) {
			<-ctx.Done()
			close(cancelled)
			return "late", nil
		})

	assert.Contains(t, got, ErrTimeout.Error())
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("guarded work was not cancelled")
	}
}

func TestGuardReportsTimeoutWhenWorkReturnsDeadlineError(t *testing.T) {
	for i := 0; i < 20; i++ {
		got := Guard(context.Background(), PhaseConfidence, 5*time.Millisecond, reasonFallback,
			func(ctx context.Context) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			})

		require.Contains(t, got, ErrTimeout.Error())
	}
}

func TestGuardParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := Guard(ctx, PhasePlan, time.Minute, reasonFallback,
		func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})

	assert.Equal(t, "fallback: context canceled", got)
}

func TestConfigTimeouts(t *testing.T) {
	cfg := Config{RetrievalTimeout: time.Second}.withDefaults()

	require.Equal(t, time.Second, cfg.TimeoutFor(PhaseRetrieval))
	assert.Equal(t, 60*time.Second, cfg.TimeoutFor(PhasePlan))
	assert.Equal(t, 45*time.Second, cfg.TimeoutFor(PhaseAnswer))
	assert.Equal(t, 45*time.Second, cfg.TimeoutFor(PhaseConfidence))
}
