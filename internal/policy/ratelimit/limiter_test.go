package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitPacesProvider(t *testing.T) {
	t.Parallel()

	l := New(map[string]Rate{"browser": {PerSecond: 10, Burst: 1}})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "browser"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "browser"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestProvidersDoNotShareBuckets(t *testing.T) {
	t.Parallel()

	l := New(map[string]Rate{
		"browser": {PerSecond: 0.01},
		"actor":   {PerSecond: 0.01},
	})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "browser"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "actor"))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(map[string]Rate{"actor": {PerSecond: 0.001, Burst: 1}})
	require.NoError(t, l.Wait(context.Background(), "actor"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, "actor")
	require.Error(t, err)
	require.Contains(t, err.Error(), "actor rate limit")
}

func TestUnlimitedCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		limiter  *Limiter
		provider string
	}{
		{"nil limiter", nil, "browser"},
		{"unlisted provider", New(map[string]Rate{"actor": {PerSecond: 0.001}}), "browser"},
		{"zero rate", New(map[string]Rate{"browser": {}}), "browser"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			start := time.Now()
			for range 5 {
				require.NoError(t, tt.limiter.Wait(context.Background(), tt.provider))
			}
			require.Less(t, time.Since(start), 50*time.Millisecond)
		})
	}
}
