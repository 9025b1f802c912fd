package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleRateLimiterFirstWaitIsImmediate(t *testing.T) {
	r := NewSimpleRateLimiter(time.Hour, time.Hour)

	start := time.Now()
	require.NoError(t, r.Wait(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestSimpleRateLimiterSpacesActions(t *testing.T) {
	r := NewSimpleRateLimiter(50*time.Millisecond, 50*time.Millisecond)

	require.NoError(t, r.Wait(context.Background()))
	start := time.Now()
	require.NoError(t, r.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestSimpleRateLimiterZeroDelay(t *testing.T) {
	r := NewSimpleRateLimiter(0, 0)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestSimpleRateLimiterCancelled(t *testing.T) {
	r := NewSimpleRateLimiter(time.Hour, time.Hour)
	require.NoError(t, r.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSetDelayClampsMax(t *testing.T) {
	r := NewSimpleRateLimiter(time.Second, 2*time.Second)
	r.SetDelay(5*time.Second, time.Second)

	min, max := r.Delays()
	assert.Equal(t, 5*time.Second, min)
	assert.Equal(t, 5*time.Second, max)
}

func TestAdaptiveRateLimiter(t *testing.T) {
	a := NewAdaptiveRateLimiter(time.Second, 2*time.Second)

	for i := 0; i < 3; i++ {
		a.RecordError()
	}
	min, max := a.Delays()
	assert.Equal(t, 1500*time.Millisecond, min)
	assert.Equal(t, 3*time.Second, max)

	for i := 0; i < 6; i++ {
		a.RecordSuccess()
	}
	min, max = a.Delays()
	assert.Equal(t, 1350*time.Millisecond, min)
	assert.Equal(t, 2700*time.Millisecond, max)

	for i := 0; i < 60; i++ {
		a.RecordSuccess()
	}
	min, max = a.Delays()
	assert.Equal(t, time.Second, min, "never drops below the base delay")
	assert.Equal(t, 2*time.Second, max)
}

func TestAdaptiveRateLimiterZeroBase(t *testing.T) {
	a := NewAdaptiveRateLimiter(0, 0)
	for i := 0; i < 12; i++ {
		a.RecordSuccess()
	}
	min, max := a.Delays()
	assert.Zero(t, min)
	assert.Zero(t, max)
}
