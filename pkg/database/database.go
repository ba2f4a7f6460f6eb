package database

import (
	"context"
	"time"

	"github.com/see2code/transport-platform/pkg/util"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoInstance struct {
	Client   *mongo.Client
	Database *mongo.Database
}

var Instance *MongoInstance

const defaultConnectionString = "mongodb://localhost:27017/"
const defaultDatabase = "transport-platform"

func Connect() error {
	env := util.GetEnvironmentVariables()

	connectionString := defaultConnectionString
	dbName := defaultDatabase

	if env["TRANSPORT_MONGODB_CONNECTION"] != "" {
		connectionString = env["TRANSPORT_MONGODB_CONNECTION"]
	}

	if env["TRANSPORT_MONGODB_DATABASE"] != "" {
		dbName = env["TRANSPORT_MONGODB_DATABASE"]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return err
	}

	Instance = &MongoInstance{
		Client:   client,
		Database: client.Database(dbName),
	}

	if err := client.Ping(context.Background(), nil); err != nil {
		return err
	}

	createIndexes()

	return nil
}

func GetCollection(collectionName string) *mongo.Collection {
	return Instance.Database.Collection(collectionName)
}
