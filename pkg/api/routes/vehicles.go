package routes

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/see2code/transport-platform/pkg/database"
	"github.com/see2code/transport-platform/pkg/fleet"
	"github.com/see2code/transport-platform/pkg/tracking/history"
	"github.com/see2code/transport-platform/pkg/util"
	"github.com/sourcegraph/conc/pool"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func VehiclesRouter(router fiber.Router) {
	router.Get("/", listVehiclePositions)
	router.Get("/:identifier/history", getVehicleHistory)
}

// vehiclePosition is the latest archived position of one vehicle, with the
// registry metadata joined in.
type vehiclePosition struct {
	history.PositionEvent `bson:",inline"`

	LicensePlate string `json:"licensePlate,omitempty" bson:"-"`
	DriverName   string `json:"driverName,omitempty" bson:"-"`
}

func listVehiclePositions(c *fiber.Ctx) error {
	companyID := c.Query("company")
	if companyID == "" {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "A company must be provided",
		})
	}

	match := bson.M{"companyid": companyID}

	if idsQuery := c.Query("ids"); idsQuery != "" {
		ids := util.RemoveDuplicateStrings(strings.Split(idsQuery, ","), []string{""})
		match["vehicleid"] = bson.M{"$in": ids}
	}

	historyCollection := database.GetCollection("vehicle_history")

	// Latest archived event per vehicle
	aggregation := bson.A{
		bson.M{"$match": match},
		bson.M{"$sort": bson.M{"recordedat": -1}},
		bson.M{"$group": bson.M{
			"_id":    "$vehicleid",
			"latest": bson.M{"$first": "$$ROOT"},
		}},
		bson.M{"$replaceRoot": bson.M{"newRoot": "$latest"}},
		bson.M{"$sort": bson.M{"vehicleid": 1}},
	}

	cursor, err := historyCollection.Aggregate(context.Background(), aggregation)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	defer cursor.Close(context.Background())

	vehicles := []vehiclePosition{}
	if err := cursor.All(context.Background(), &vehicles); err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	enrichVehiclePositions(companyID, vehicles)

	return c.JSON(vehicles)
}

// enrichVehiclePositions joins registry metadata onto the positions. Lookups
// run concurrently, misses leave the record bare.
func enrichVehiclePositions(companyID string, vehicles []vehiclePosition) {
	var mutex sync.Mutex

	enrichmentPool := pool.New().WithMaxGoroutines(8)

	for index := range vehicles {
		index := index

		enrichmentPool.Go(func() {
			registered, err := fleet.Get(context.Background(), companyID, vehicles[index].VehicleID)
			if err != nil || registered == nil {
				return
			}

			mutex.Lock()
			vehicles[index].LicensePlate = registered.LicensePlate
			vehicles[index].DriverName = registered.DriverName
			mutex.Unlock()
		})
	}

	enrichmentPool.Wait()
}

func getVehicleHistory(c *fiber.Ctx) error {
	companyID := c.Query("company")
	if companyID == "" {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "A company must be provided",
		})
	}

	identifier := c.Params("identifier")

	query := bson.M{
		"companyid": companyID,
		"vehicleid": identifier,
	}

	// from/to bound the window in unix milliseconds
	timeRange := bson.M{}
	if from, err := strconv.ParseInt(c.Query("from"), 10, 64); err == nil {
		timeRange["$gte"] = from
	}
	if to, err := strconv.ParseInt(c.Query("to"), 10, 64); err == nil {
		timeRange["$lte"] = to
	}
	if len(timeRange) > 0 {
		query["recordedat"] = timeRange
	}

	limit := int64(c.QueryInt("limit", 500))

	historyCollection := database.GetCollection("vehicle_history")

	opts := options.Find().SetSort(bson.M{"recordedat": 1}).SetLimit(limit)
	cursor, err := historyCollection.Find(context.Background(), query, opts)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	defer cursor.Close(context.Background())

	events := []history.PositionEvent{}
	if err := cursor.All(context.Background(), &events); err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(events)
}
