// Package cmd defines the CLI surface: api server, conversion worker and
// migrations, all driven by the same config.
package cmd

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/Ericatici/video-service/internal/config"
)

var version = "dev"

func App() *cli.Command {
	return &cli.Command{
		Name:    "video-service",
		Version: version,
		Usage:   "Async video conversion service: upload, convert, download.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file",
				Sources: cli.EnvVars("VS_CONFIG_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("VS_LOGGING_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			serverCmd(),
			workerCmd(),
			migrateCmd(),
		},
	}
}

// loadConfig reads config for a subcommand and applies the global flags.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if v := cmd.String("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database URL is required (set VS_DATABASE_URL or database.url in config)")
	}
	return cfg, nil
}
