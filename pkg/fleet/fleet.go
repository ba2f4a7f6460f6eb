package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/rs/zerolog/log"
	"github.com/see2code/transport-platform/pkg/database"
	"github.com/see2code/transport-platform/pkg/redis_client"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Vehicle is the registry record for one fleet vehicle. The feed often omits
// display metadata, the registry is the authoritative source for it.
type Vehicle struct {
	VehicleID    string `json:"vehicleId" bson:"vehicleid"`
	CompanyID    string `json:"companyId" bson:"companyid"`
	LicensePlate string `json:"licensePlate" bson:"licenseplate"`
	DriverName   string `json:"driverName" bson:"drivername"`
	CarrierName  string `json:"carrierName,omitempty" bson:"carriername,omitempty"`
}

var metadataCache *cache.Cache[string]

// CreateMetadataCache sets up the redis-backed read-through cache. Optional,
// lookups fall through to mongo when it is absent.
func CreateMetadataCache() {
	redisStore := redisstore.NewRedis(redis_client.Client, store.WithExpiration(90*time.Minute))

	metadataCache = cache.New[string](redisStore)
}

func cacheKey(companyID string, vehicleID string) string {
	return fmt.Sprintf("fleet-vehicle:%s:%s", companyID, vehicleID)
}

// Get returns the registry record for one vehicle, or nil when unknown.
func Get(ctx context.Context, companyID string, vehicleID string) (*Vehicle, error) {
	if metadataCache != nil {
		if cached, _ := metadataCache.Get(ctx, cacheKey(companyID, vehicleID)); cached != "" {
			var vehicle Vehicle
			if err := json.Unmarshal([]byte(cached), &vehicle); err == nil {
				return &vehicle, nil
			}
		}
	}

	fleetCollection := database.GetCollection("fleet_vehicles")

	vehicle, err := decodeRegistryRecord(fleetCollection.FindOne(ctx, bson.M{"companyid": companyID, "vehicleid": vehicleID}))
	if err != nil {
		log.Error().Err(err).Str("company", companyID).Str("vehicle", vehicleID).Msg("Failed to decode fleet vehicle")
		return nil, err
	}

	if vehicle != nil && metadataCache != nil {
		if data, err := json.Marshal(vehicle); err == nil {
			metadataCache.Set(ctx, cacheKey(companyID, vehicleID), string(data))
		}
	}

	return vehicle, nil
}

// decodeRegistryRecord separates a registry miss (nil, nil) from a document
// that exists but cannot be decoded.
func decodeRegistryRecord(result interface{ Decode(v any) error }) (*Vehicle, error) {
	var vehicle Vehicle
	if err := result.Decode(&vehicle); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}

		return nil, err
	}

	return &vehicle, nil
}

// Upsert stores the registry record and refreshes the cache.
func Upsert(ctx context.Context, vehicle Vehicle) error {
	fleetCollection := database.GetCollection("fleet_vehicles")

	filter := bson.M{"companyid": vehicle.CompanyID, "vehicleid": vehicle.VehicleID}
	opts := options.Replace().SetUpsert(true)

	if _, err := fleetCollection.ReplaceOne(ctx, filter, vehicle, opts); err != nil {
		return err
	}

	if metadataCache != nil {
		if data, err := json.Marshal(vehicle); err == nil {
			metadataCache.Set(ctx, cacheKey(vehicle.CompanyID, vehicle.VehicleID), string(data))
		}
	}

	return nil
}

// Delete removes the registry record and drops its cache entry.
func Delete(ctx context.Context, companyID string, vehicleID string) error {
	fleetCollection := database.GetCollection("fleet_vehicles")

	if _, err := fleetCollection.DeleteOne(ctx, bson.M{"companyid": companyID, "vehicleid": vehicleID}); err != nil {
		return err
	}

	if metadataCache != nil {
		metadataCache.Delete(ctx, cacheKey(companyID, vehicleID))
	}

	return nil
}

// List returns all registry records of one company.
func List(ctx context.Context, companyID string) ([]Vehicle, error) {
	fleetCollection := database.GetCollection("fleet_vehicles")

	cursor, err := fleetCollection.Find(ctx, bson.M{"companyid": companyID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	vehicles := []Vehicle{}
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, err
	}

	return vehicles, nil
}
