package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "scan-events", map[string]any{"job_id": "scan_1"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "other", "payload")
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "scan-events", msgs[0].Topic)
	require.Equal(t, "other", msgs[1].Topic)

	msgs[0].Topic = "modified"
	require.Equal(t, "scan-events", pub.Messages()[0].Topic, "Messages() returns a copy")
	require.NoError(t, pub.Close())
}

func TestPublisherRejectsCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Publish(ctx, "scan-events", "x")
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, New().Messages())
}
