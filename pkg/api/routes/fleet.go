package routes

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/see2code/transport-platform/pkg/fleet"
)

func FleetRouter(router fiber.Router) {
	router.Get("/", listFleetVehicles)
	router.Get("/:identifier", getFleetVehicle)
	router.Post("/", upsertFleetVehicle)
	router.Delete("/:identifier", deleteFleetVehicle)
}

func listFleetVehicles(c *fiber.Ctx) error {
	companyID := c.Query("company")
	if companyID == "" {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "A company must be provided",
		})
	}

	vehicles, err := fleet.List(context.Background(), companyID)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(vehicles)
}

func getFleetVehicle(c *fiber.Ctx) error {
	companyID := c.Query("company")
	if companyID == "" {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "A company must be provided",
		})
	}

	vehicle, err := fleet.Get(context.Background(), companyID, c.Params("identifier"))
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if vehicle == nil {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "Could not find a fleet vehicle matching the identifier",
		})
	}

	return c.JSON(vehicle)
}

func upsertFleetVehicle(c *fiber.Ctx) error {
	var vehicle fleet.Vehicle
	if err := c.BodyParser(&vehicle); err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "Failed to parse the fleet vehicle",
		})
	}

	if vehicle.CompanyID == "" || vehicle.VehicleID == "" {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "A company and vehicle id must be provided",
		})
	}

	if err := fleet.Upsert(context.Background(), vehicle); err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(vehicle)
}

func deleteFleetVehicle(c *fiber.Ctx) error {
	companyID := c.Query("company")
	if companyID == "" {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "A company must be provided",
		})
	}

	if err := fleet.Delete(context.Background(), companyID, c.Params("identifier")); err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
