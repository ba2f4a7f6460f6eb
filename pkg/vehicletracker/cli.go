package vehicletracker

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/see2code/transport-platform/pkg/config"
	"github.com/see2code/transport-platform/pkg/database"
	"github.com/see2code/transport-platform/pkg/feed"
	"github.com/see2code/transport-platform/pkg/feed/mongofeed"
	"github.com/see2code/transport-platform/pkg/feed/natsfeed"
	"github.com/see2code/transport-platform/pkg/fleet"
	"github.com/see2code/transport-platform/pkg/maprender"
	"github.com/see2code/transport-platform/pkg/redis_client"
	"github.com/see2code/transport-platform/pkg/tracking"
	"github.com/see2code/transport-platform/pkg/tracking/history"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	companyFlag := &cli.StringFlag{
		Name:     "company",
		Usage:    "company the tracker is scoped to",
		EnvVars:  []string{"TRANSPORT_COMPANY_ID"},
		Required: true,
	}

	return &cli.Command{
		Name:  "vehicle-tracker",
		Usage: "Live vehicle tracking engine, filters feed positions onto the map",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run an instance of the tracking engine",
				Flags: []cli.Flag{companyFlag},
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

					historyQueue, err := redis_client.QueueConnection.OpenQueue(history.QueueName)
					if err != nil {
						return err
					}

					companyID := c.String("company")

					tracker := tracking.New(companyID, newFeed(config.Config.Feed), config.Config.Tracking)
					tracker.HistoryQueue = historyQueue
					tracker.Enrich = enrichFromRegistry

					surface := maprender.NewWebsocketSurface()
					renderer := maprender.NewRenderer(surface, config.Config.Render, config.Config.Tracking.ActivityWindow())

					tracker.OnPublish(renderer.Reconcile)

					renderer.Start()
					if err := tracker.Start(context.Background()); err != nil {
						return err
					}

					startMapServer(surface, tracker)

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					tracker.Stop()
					renderer.Stop()

					return nil
				},
			},
			{
				Name:  "testfilter",
				Usage: "run sample position reports through the significance filter",
				Flags: []cli.Flag{companyFlag},
				Action: func(c *cli.Context) error {
					if err := config.Load(); err != nil {
						return err
					}

					companyID := c.String("company")
					filter := tracking.NewPositionFilter(companyID, config.Config.Tracking)

					reports := []feed.RawRecord{
						{
							VehicleID: "demo-1",
							CompanyID: companyID,
							Location: &feed.RawLocation{
								Latitude: 48.1486, Longitude: 17.1077, Accuracy: 12,
							},
						},
						{
							// Within the displacement threshold of the first report
							VehicleID: "demo-1",
							CompanyID: companyID,
							Location: &feed.RawLocation{
								Latitude: 48.14862, Longitude: 17.10772, Accuracy: 12,
							},
						},
						{
							VehicleID: "demo-2",
							CompanyID: companyID,
							Location: &feed.RawLocation{
								Latitude: 48.7139, Longitude: 21.2581, Accuracy: 250,
							},
						},
						{
							VehicleID: "demo-3",
							CompanyID: "another-company",
							Location: &feed.RawLocation{
								Latitude: 49.1951, Longitude: 16.6068, Accuracy: 8,
							},
						},
					}

					for _, report := range reports {
						accepted, gate := filter.Accept(report.VehicleID, report)

						pretty.Println(report.VehicleID, accepted, gate)
					}

					return nil
				},
			},
		},
	}
}

// newFeed selects the realtime transport from config.
func newFeed(cfg config.FeedConfig) feed.Feed {
	if cfg.Transport == "nats" {
		return natsfeed.NewNatsFeed(cfg.Subject)
	}

	return mongofeed.NewMongoFeed(cfg.Collection)
}

// enrichFromRegistry fills display metadata from the fleet registry. Lookup
// failures leave the feed-provided values alone.
func enrichFromRegistry(companyID string, vehicleID string, vehicle *tracking.Vehicle) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	registered, err := fleet.Get(ctx, companyID, vehicleID)
	if err != nil || registered == nil {
		return
	}

	if registered.LicensePlate != "" {
		vehicle.LicensePlate = registered.LicensePlate
	}
	if registered.DriverName != "" {
		vehicle.DriverName = registered.DriverName
	}
}

// startMapServer serves the map websocket and the tracking metrics.
func startMapServer(surface *maprender.WebsocketSurface, tracker *tracking.Tracker) {
	mux := http.NewServeMux()
	mux.HandleFunc("/map", surface.HandleWebsocket)
	mux.Handle("/metrics", tracker.Metrics().Handler())

	listen := config.Config.Render.Listen

	go func() {
		log.Info().Str("listen", listen).Msg("Starting map server")

		if err := http.ListenAndServe(listen, mux); err != nil {
			log.Fatal().Err(err).Msg("Map server failed")
		}
	}()
}
