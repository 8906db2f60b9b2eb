// Package sessions parses session service flags and launches the service.
package sessions

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/sessiontrack/internal/platform/cmd"
	server "github.com/louisbranch/sessiontrack/internal/services/sessions/app"
)

// Config holds sessions command configuration.
type Config struct {
	Port int `env:"SESSIONS_PORT" envDefault:"8095"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The sessions HTTP server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the sessions HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSessions, func(ctx context.Context) error {
		return server.Run(ctx, cfg.Port)
	})
}
