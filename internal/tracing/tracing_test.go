package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTraceRecordsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp, err := EnsureInitialized(context.Background(), Options{ServiceName: "test", Exporter: exporter})
	require.NoError(t, err)
	require.True(t, Enabled())

	again, err := EnsureInitialized(context.Background(), Options{ServiceName: "other"})
	require.NoError(t, err)
	require.Same(t, tp, again)

	got, err := Trace(context.Background(), "generateBusinessTasks", func(context.Context) (int, error) {
		return 42, nil
	}, attribute.String("business.id", "biz_1"))
	require.NoError(t, err)
	require.Equal(t, 42, got)

	boom := errors.New("boom")
	_, err = Trace(context.Background(), "analyzeBusinessReviews", func(context.Context) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, tp.ForceFlush(context.Background()))
	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	require.Equal(t, "generateBusinessTasks", spans[0].Name)
	require.Equal(t, "analyzeBusinessReviews", spans[1].Name)
}
