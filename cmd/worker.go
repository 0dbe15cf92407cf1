package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/Ericatici/video-service/internal/worker"
)

func workerCmd() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Run the conversion worker pool",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL connection string",
				Sources: cli.EnvVars("VS_DATABASE_URL"),
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Number of concurrent conversion workers",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if v := cmd.String("database-url"); v != "" {
				cfg.Database.URL = v
			}
			if v := cmd.Int("workers"); v > 0 {
				cfg.Worker.Count = int(v)
			}

			log.Info().Int("workers", cfg.Worker.Count).Str("redis", cfg.Redis.Addr).Msg("starting worker")

			runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return worker.Run(runCtx, cfg)
		},
	}
}
