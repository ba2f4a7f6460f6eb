package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/see2code/transport-platform/pkg/database"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// QueueName is the rmq queue carrying accepted position events.
const QueueName = "vehicle-history-queue"

type BatchConsumer struct {
	id int
}

func NewBatchConsumer(id int) *BatchConsumer {
	return &BatchConsumer{id: id}
}

func (consumer *BatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	var insertOperations []mongo.WriteModel

	for _, payload := range payloads {
		var event *PositionEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil || event == nil {
			log.Error().Err(err).Msg("Failed to decode history event")
			continue
		}

		insertOperations = append(insertOperations, mongo.NewInsertOneModel().SetDocument(event))
	}

	if len(insertOperations) > 0 {
		historyCollection := database.GetCollection("vehicle_history")

		startTime := time.Now()
		_, err := historyCollection.BulkWrite(context.Background(), insertOperations, &options.BulkWriteOptions{})
		log.Info().Int("Length", len(insertOperations)).Str("Time", time.Since(startTime).String()).Msg("Bulk write")

		if err != nil {
			log.Error().Err(err).Msg("Failed to bulk write vehicle history")
		}
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Error().Err(err).Msg("Failed to ack history event")
		}
	}
}
