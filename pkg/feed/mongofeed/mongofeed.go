package mongofeed

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/see2code/transport-platform/pkg/database"
	"github.com/see2code/transport-platform/pkg/feed"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoFeed watches a collection of raw vehicle location documents with a
// change stream. Every change triggers a full collection reload, matching the
// push-on-change full-snapshot semantics of the upstream realtime store.
type MongoFeed struct {
	CollectionName string
}

func NewMongoFeed(collectionName string) *MongoFeed {
	return &MongoFeed{CollectionName: collectionName}
}

func (f *MongoFeed) Subscribe(ctx context.Context) (<-chan feed.Snapshot, <-chan error, error) {
	collection := database.GetCollection(f.CollectionName)

	var stream *mongo.ChangeStream

	// Establishing the watch can race replica set elections on deploy, so
	// retry with exponential backoff before giving up
	establish := func() error {
		var err error
		stream, err = collection.Watch(ctx, mongo.Pipeline{})
		return err
	}

	establishBackoff := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	if err := backoff.Retry(establish, backoff.WithContext(establishBackoff, ctx)); err != nil {
		return nil, nil, err
	}

	snapshots := make(chan feed.Snapshot, 1)
	errs := make(chan error, 1)

	go func() {
		defer close(snapshots)
		defer close(errs)
		defer stream.Close(context.Background())

		// Deliver the current state before the first change arrives
		if snapshot, err := f.loadSnapshot(ctx, collection); err == nil {
			snapshots <- snapshot
		} else {
			errs <- err
			return
		}

		for stream.Next(ctx) {
			snapshot, err := f.loadSnapshot(ctx, collection)
			if err != nil {
				errs <- err
				return
			}

			select {
			case snapshots <- snapshot:
			case <-ctx.Done():
				return
			}
		}

		if err := stream.Err(); err != nil && ctx.Err() == nil {
			errs <- err
		}
	}()

	return snapshots, errs, nil
}

func (f *MongoFeed) loadSnapshot(ctx context.Context, collection *mongo.Collection) (feed.Snapshot, error) {
	cursor, err := collection.Find(ctx, bson.M{})
	if err != nil {
		return feed.Snapshot{}, err
	}
	defer cursor.Close(ctx)

	records := map[string]feed.RawRecord{}

	for cursor.Next(ctx) {
		var record feed.RawRecord
		if err := cursor.Decode(&record); err != nil {
			log.Warn().Err(err).Msg("Failed to decode vehicle location document")
			continue
		}

		if record.VehicleID == "" {
			continue
		}

		records[record.VehicleID] = record
	}

	if err := cursor.Err(); err != nil {
		return feed.Snapshot{}, err
	}

	return feed.EncodeSnapshot(records, time.Now()), nil
}
