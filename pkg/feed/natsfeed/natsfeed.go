package natsfeed

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/see2code/transport-platform/pkg/feed"
	"github.com/see2code/transport-platform/pkg/util"
)

// NatsFeed subscribes to a subject carrying full-snapshot JSON frames, one
// object of vehicleID -> record per message.
type NatsFeed struct {
	Subject string
}

func NewNatsFeed(subject string) *NatsFeed {
	return &NatsFeed{Subject: subject}
}

func (f *NatsFeed) Subscribe(ctx context.Context) (<-chan feed.Snapshot, <-chan error, error) {
	url := util.GetEnvDefault("TRANSPORT_NATS_URL", nats.DefaultURL)

	conn, err := nats.Connect(url,
		nats.Name("transport-platform-tracker"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, err
	}

	snapshots := make(chan feed.Snapshot, 1)
	errs := make(chan error, 1)

	subscription, err := conn.Subscribe(f.Subject, func(msg *nats.Msg) {
		f.handleMessage(ctx, snapshots, msg.Data)
	})
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	conn.SetDisconnectErrHandler(func(_ *nats.Conn, err error) {
		if err != nil {
			log.Warn().Err(err).Msg("NATS feed disconnected")
		}
	})

	conn.SetClosedHandler(func(c *nats.Conn) {
		if ctx.Err() == nil {
			errs <- c.LastError()
		}
	})

	// The channels are never closed: Unsubscribe does not wait for an
	// in-flight message callback, so a close here could race a handler that
	// is mid-send. Consumers leave on ctx cancellation and the channels fall
	// to the collector with the subscription
	go func() {
		<-ctx.Done()
		subscription.Unsubscribe()
		conn.Close()
	}()

	return snapshots, errs, nil
}

// handleMessage decodes one wire frame and delivers it unless the
// subscription context has ended.
func (f *NatsFeed) handleMessage(ctx context.Context, snapshots chan<- feed.Snapshot, data []byte) {
	snapshot, err := feed.DecodeSnapshot(data, time.Now())
	if err != nil {
		log.Warn().Err(err).Str("subject", f.Subject).Msg("Discarding undecodable feed frame")
		return
	}

	select {
	case snapshots <- snapshot:
	case <-ctx.Done():
	}
}
