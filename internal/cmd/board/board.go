// Package board parses board command flags and composes the realtime
// retrospective transport entrypoint.
package board

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/louisbranch/retroboard/internal/platform/cmd"
	server "github.com/louisbranch/retroboard/internal/services/board/app"
)

// Config holds board command configuration.
type Config struct {
	HTTPAddr        string        `env:"RETROBOARD_HTTP_ADDR"        envDefault:":8080"`
	StoragePath     string        `env:"RETROBOARD_STORAGE_PATH"     envDefault:"board.db"`
	InactivityGrace time.Duration `env:"RETROBOARD_INACTIVITY_GRACE" envDefault:"15s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "board HTTP listen address")
	fs.StringVar(&cfg.StoragePath, "storage-path", cfg.StoragePath, "sqlite database path")
	fs.DurationVar(&cfg.InactivityGrace, "inactivity-grace", cfg.InactivityGrace, "grace window before a disconnected facilitator loses the role")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the board app and starts realtime transport behavior.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceBoard, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:        cfg.HTTPAddr,
			StoragePath:     cfg.StoragePath,
			InactivityGrace: cfg.InactivityGrace,
		}); err != nil {
			return fmt.Errorf("serve board: %w", err)
		}
		return nil
	})
}
