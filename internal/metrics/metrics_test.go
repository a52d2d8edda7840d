package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if httpRequestsTotal == nil || discoveryTotal == nil ||
		providerAttemptsTotal == nil || feedbackTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveProvider(t *testing.T) {
	before := testutil.ToFloat64(providerAttemptsCounter("browser", OutcomeError))
	ObserveProvider("browser", OutcomeError, 2*time.Second)
	after := testutil.ToFloat64(providerAttemptsCounter("browser", OutcomeError))
	if after-before != 1 {
		t.Fatalf("expected provider counter to grow by 1, got %f", after-before)
	}
}

func TestObserveFeedbackAndDiscovery(t *testing.T) {
	ObserveFeedback("task", "edit")
	if val := testutil.ToFloat64(feedbackTotal.WithLabelValues("task", "edit")); val < 1 {
		t.Fatalf("feedback counter = %f", val)
	}
	ObserveDiscovery("mock", 6)
	if val := testutil.ToFloat64(discoveryTotal.WithLabelValues("mock")); val < 1 {
		t.Fatalf("discovery counter = %f", val)
	}
}

func TestActiveSessionsGauge(t *testing.T) {
	Init()
	start := testutil.ToFloat64(activeSessions)
	IncActiveSessions()
	if got := testutil.ToFloat64(activeSessions); got != start+1 {
		t.Fatalf("gauge after inc = %f", got)
	}
	DecActiveSessions()
	if got := testutil.ToFloat64(activeSessions); got != start {
		t.Fatalf("gauge after dec = %f", got)
	}
}

func providerAttemptsCounter(provider, outcome string) prometheus.Counter {
	Init()
	return providerAttemptsTotal.WithLabelValues(provider, outcome)
}
