package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/c360studio/mapspec/config"
	"github.com/c360studio/mapspec/editor"
	"github.com/c360studio/mapspec/events"
	"github.com/c360studio/mapspec/gateway"
)

// App wires the gateway, session and notification bus together for the
// CLI commands.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *gateway.Client
	session *editor.Session

	natsConn *nats.Conn
	bus      events.Bus
}

// NewApp creates the application from a loaded configuration.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	app := &App{cfg: cfg, logger: logger}

	app.client = gateway.NewClient(cfg.Details(),
		gateway.WithLogger(logger),
		gateway.WithTimeout(cfg.API.Timeout))

	app.bus = events.NopBus{}
	if cfg.NATS.URL != "" {
		conn, err := nats.Connect(cfg.NATS.URL, nats.Name("mapspec"))
		if err != nil {
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		app.natsConn = conn
		app.bus = events.NewNATSBus(conn, logger)
		logger.Debug("notification bus connected", "url", cfg.NATS.URL)
	}

	app.session = editor.NewSession(app.client,
		editor.WithBus(app.bus),
		editor.WithLogger(logger))

	return app, nil
}

// WatchConfig hot-reloads the project config file, pushing fresh
// connection details into the gateway. Runs until ctx is canceled.
func (a *App) WatchConfig(ctx context.Context, path string) error {
	watcher := config.NewWatcher(path, func(cfg *config.Config) {
		a.client.SetDetails(cfg.Details())
	}, a.logger)
	return watcher.Run(ctx)
}

// Close releases the app's connections.
func (a *App) Close() {
	if a.natsConn != nil {
		a.natsConn.Drain() //nolint:errcheck // best effort on shutdown
	}
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
