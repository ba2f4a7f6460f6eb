package history

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/see2code/transport-platform/pkg/consumer"
	"github.com/see2code/transport-platform/pkg/database"
	"github.com/see2code/transport-platform/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "history-archiver",
		Usage: "Persists accepted vehicle positions for path-line rendering",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the history archiver",
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						return err
					}

					redisConsumer := consumer.RedisConsumer{
						QueueName:       QueueName,
						NumberConsumers: 2,
						BatchSize:       100,
						Timeout:         2 * time.Second,
						Consumer:        NewBatchConsumer(0),
					}
					go redisConsumer.Setup()

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish

					return nil
				},
			},
		},
	}
}
