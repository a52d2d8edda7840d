package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/business-discovery/internal/publisher"
)

var _ publisher.Publisher = (*Publisher)(nil)

func TestPublisherRecordsEvents(t *testing.T) {
	t.Parallel()

	pub := New()
	ctx := context.Background()
	id, err := pub.Publish(ctx, "profiles", publisher.ProfileCompleted{RunID: "run_1", BusinessID: "biz_1"})
	require.NoError(t, err)
	require.Equal(t, "mem-1", id)
	id, err = pub.Publish(ctx, "profiles", publisher.RunFailed{RunID: "run_2", Message: "Pipeline timed out"})
	require.NoError(t, err)
	require.Equal(t, "mem-2", id)
	_, err = pub.Publish(ctx, "audit", "plain")
	require.NoError(t, err)

	require.Len(t, pub.Messages(), 3)
	require.Len(t, pub.ByTopic("profiles"), 2)
	require.Empty(t, pub.ByTopic("missing"))

	failed := pub.Event(publisher.EventRunFailed)
	require.Len(t, failed, 1)
	require.Equal(t, map[string]string{"event": publisher.EventRunFailed, "run_id": "run_2"}, failed[0].Attributes)
	require.Empty(t, pub.Messages()[2].Attributes)

	msgs := pub.Messages()
	msgs[0].Topic = "changed"
	require.Equal(t, "profiles", pub.Messages()[0].Topic)
}

func TestPublishHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	pub := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pub.Publish(ctx, "profiles", publisher.RunFailed{RunID: "run_1"})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, pub.Messages())
}
