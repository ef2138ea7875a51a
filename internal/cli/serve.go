package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/tabstash/internal/app"
	"github.com/MrSnakeDoc/tabstash/internal/config"
	"github.com/MrSnakeDoc/tabstash/internal/logger"
)

// NewServeCommand runs the HTTP server. It is configured from TABSTASH_*
// environment variables only.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log := logger.New(cfg.LogLevel, cfg.PrettyLog)
			defer func() { _ = log.Sync() }()

			a, err := app.New(context.Background(), cfg, log)
			if err != nil {
				return err
			}
			return a.Run()
		},
	}
}
