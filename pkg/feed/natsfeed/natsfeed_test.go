package natsfeed

import (
	"context"
	"testing"
	"time"

	"github.com/see2code/transport-platform/pkg/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMessageDelivers(t *testing.T) {
	t.Parallel()

	f := NewNatsFeed("vehicles.locations")
	snapshots := make(chan feed.Snapshot, 1)

	f.handleMessage(context.Background(), snapshots, []byte(`{"vehicle-1": {"companyID": "company-1"}}`))

	select {
	case snapshot := <-snapshots:
		assert.Contains(t, snapshot.Entries, "vehicle-1")
	default:
		t.Fatal("frame was not delivered")
	}
}

func TestHandleMessageDropsUndecodableFrame(t *testing.T) {
	t.Parallel()

	f := NewNatsFeed("vehicles.locations")
	snapshots := make(chan feed.Snapshot, 1)

	f.handleMessage(context.Background(), snapshots, []byte(`not json`))

	assert.Empty(t, snapshots)
}

func TestHandleMessageReturnsAfterCancellation(t *testing.T) {
	t.Parallel()

	f := NewNatsFeed("vehicles.locations")

	// Buffer full and the consumer gone, the shape a subscription ends in
	snapshots := make(chan feed.Snapshot, 1)
	snapshots <- feed.Snapshot{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.handleMessage(ctx, snapshots, []byte(`{"vehicle-1": {"companyID": "company-1"}}`))
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler must not block after cancellation")
	}

	require.Len(t, snapshots, 1, "nothing delivered after cancellation")
}
