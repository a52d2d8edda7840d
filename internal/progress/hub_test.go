package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type batchSink struct {
	mu      sync.Mutex
	batches [][]Event
	err     error
	closed  int
}

func (s *batchSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
	return s.err
}

func (s *batchSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *batchSink) sizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.batches))
	for i, b := range s.batches {
		out[i] = len(b)
	}
	return out
}

func (s *batchSink) names() []Name {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Name
	for _, b := range s.batches {
		for _, evt := range b {
			out = append(out, evt.Name)
		}
	}
	return out
}

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func connecting(runID string) Event {
	return Step(runID, epoch, StepConnecting, "Connecting to browser")
}

func TestHubDeliversFullBatches(t *testing.T) {
	t.Parallel()

	sink := &batchSink{}
	hub := NewHub(Config{MaxBatchEvents: 3, MaxBatchWait: time.Hour}, sink)
	for range 3 {
		hub.Emit(connecting("run-a"))
	}
	require.Eventually(t, func() bool {
		return len(sink.sizes()) == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []int{3}, sink.sizes())
	require.NoError(t, hub.Close(context.Background()))
}

func TestHubTerminalEventsSkipTheDeadline(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		last Event
	}{
		{"complete", Event{RunID: "run-a", TS: epoch, Name: NameComplete, Data: map[string]bool{"ok": true}}},
		{"error", Failure("run-a", epoch, "Pipeline timed out")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sink := &batchSink{}
			hub := NewHub(Config{MaxBatchEvents: 100, MaxBatchWait: time.Hour}, sink)
			hub.Emit(connecting("run-a"))
			hub.Emit(tt.last)
			require.Eventually(t, func() bool {
				return len(sink.sizes()) == 1
			}, time.Second, 5*time.Millisecond)
			require.Equal(t, []Name{NameStep, tt.last.Name}, sink.names())
			require.NoError(t, hub.Close(context.Background()))
		})
	}
}

func TestHubDeadlineStartsWithFirstEvent(t *testing.T) {
	t.Parallel()

	sink := &batchSink{}
	hub := NewHub(Config{MaxBatchEvents: 100, MaxBatchWait: 40 * time.Millisecond}, sink)
	defer func() { require.NoError(t, hub.Close(context.Background())) }()

	start := time.Now()
	stopFeeding := make(chan struct{})
	go func() {
		tick := time.NewTicker(5 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stopFeeding:
				return
			case <-tick.C:
				hub.Emit(connecting("run-a"))
			}
		}
	}()
	require.Eventually(t, func() bool {
		return len(sink.sizes()) > 0
	}, time.Second, 2*time.Millisecond)
	close(stopFeeding)
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestHubCloseDrainsAndClosesSinks(t *testing.T) {
	t.Parallel()

	first, second := &batchSink{}, &batchSink{}
	hub := NewHub(Config{MaxBatchEvents: 100, MaxBatchWait: time.Hour}, first, nil, second)
	hub.Emit(connecting("run-a"))
	hub.Emit(Session("run-a", epoch, "sess_1", "https://replay.example/sess_1"))

	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
	for _, s := range []*batchSink{first, second} {
		require.Equal(t, []Name{NameStep, NameSession}, s.names())
		require.Equal(t, 1, s.closed)
	}

	hub.Emit(connecting("run-b"))
	require.Len(t, first.names(), 2)
}

func TestHubDiscardsMalformedEvents(t *testing.T) {
	t.Parallel()

	sink := &batchSink{}
	hub := NewHub(Config{MaxBatchEvents: 1}, sink)
	hub.Emit(Event{RunID: "run-a", TS: epoch, Name: "heartbeat", Data: "x"})
	hub.Emit(Event{RunID: "run-a", Name: NameStep, Data: StepData{Step: StepConnecting}})
	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.sizes())
}

func TestHubFailingSinkDoesNotStarveOthers(t *testing.T) {
	t.Parallel()

	broken := &batchSink{err: errors.New("broker unavailable")}
	healthy := &batchSink{}
	hub := NewHub(Config{MaxBatchEvents: 1}, broken, healthy)
	hub.Emit(connecting("run-a"))
	hub.Emit(connecting("run-b"))
	require.NoError(t, hub.Close(context.Background()))
	require.Equal(t, []int{1, 1}, healthy.sizes())
	require.Equal(t, []int{1, 1}, broken.sizes())
}

func TestHubEmitDoesNotBlockWhenFull(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	slow := sinkFunc(func(ctx context.Context, _ []Event) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	hub := NewHub(Config{BufferSize: 1, MaxBatchEvents: 1}, slow)

	start := time.Now()
	for range 50 {
		hub.Emit(connecting("run-a"))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
	close(release)
	require.NoError(t, hub.Close(context.Background()))
}

func TestNilHubIsInert(t *testing.T) {
	t.Parallel()

	var hub *Hub
	hub.Emit(connecting("run-a"))
	require.NoError(t, hub.Close(context.Background()))
}
