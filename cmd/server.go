package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/Ericatici/video-service/internal/controller"
)

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run the HTTP API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL connection string",
				Sources: cli.EnvVars("VS_DATABASE_URL"),
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
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("JWT secret is required (set VS_AUTH_JWT_SECRET or auth.jwt_secret in config)")
			}

			runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return controller.Run(runCtx, cfg)
		},
	}
}
