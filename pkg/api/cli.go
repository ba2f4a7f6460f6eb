package api

import (
	"github.com/see2code/transport-platform/pkg/config"
	"github.com/see2code/transport-platform/pkg/database"
	"github.com/see2code/transport-platform/pkg/fleet"
	"github.com/see2code/transport-platform/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "web-api",
		Usage: "Provides the back-office web API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "listen target for the web server",
					},
				},
				Action: func(c *cli.Context) error {
					if err := config.Load(); err != nil {
						return err
					}
					if err := database.Connect(); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						return err
					}

					fleet.CreateMetadataCache()

					listen := c.String("listen")
					if listen == "" {
						listen = config.Config.API.Listen
					}

					return SetupServer(listen)
				},
			},
		},
	}
}
