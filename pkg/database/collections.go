package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func createIndexes() {
	createVehicleLocationsIndexes()
	createVehicleHistoryIndexes()
	createFleetIndexes()
}

func createVehicleLocationsIndexes() {
	// Raw location records pushed by the GPS gateway, watched by the feed
	vehicleLocationsCollection := GetCollection("vehicle_locations")
	vehicleLocationsIndex := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "companyid", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "vehicleid", Value: 1}},
		},
	}

	opts := options.CreateIndexes()
	_, err := vehicleLocationsCollection.Indexes().CreateMany(context.Background(), vehicleLocationsIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createVehicleHistoryIndexes() {
	// Accepted position events, kept for path-line rendering
	vehicleHistoryCollection := GetCollection("vehicle_history")
	_, err := vehicleHistoryCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "companyid", Value: 1},
				{Key: "vehicleid", Value: 1},
				{Key: "recordedat", Value: 1},
			},
		},
		{
			Keys:    bson.D{{Key: "recordedat", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(7 * 24 * 3600), // Expire after 7 days
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createFleetIndexes() {
	// Fleet vehicle registry
	fleetVehiclesCollection := GetCollection("fleet_vehicles")
	fleetCompanyVehicleIndexName := "FleetCompanyVehicle"
	_, err := fleetVehiclesCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Options: &options.IndexOptions{
				Name: &fleetCompanyVehicleIndexName,
			},
			Keys: bson.D{
				{Key: "companyid", Value: 1},
				{Key: "vehicleid", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "licenseplate", Value: 1}},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}
