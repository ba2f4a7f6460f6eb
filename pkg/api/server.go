package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/see2code/transport-platform/pkg/api/routes"
)

func SetupServer(listen string) error {
	webApp := fiber.New()
	webApp.Use(NewLogger())

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)

	routes.VehiclesRouter(group.Group("/vehicles"))
	routes.FleetRouter(group.Group("/fleet"))

	return webApp.Listen(listen)
}
