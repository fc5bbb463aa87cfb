package events

import (
	"log/slog"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

// NATSBus publishes events as JSON messages on the mapspec.event.*
// subjects. Delivery is fire-and-forget: publish failures are logged and
// dropped, matching the bus contract.
type NATSBus struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewNATSBus creates a bus over an established NATS connection.
func NewNATSBus(conn *nats.Conn, logger *slog.Logger) *NATSBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSBus{conn: conn, logger: logger}
}

// Publish implements Bus.
func (b *NATSBus) Publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		b.logger.Warn("encode event", "subject", e.Subject(), "error", err)
		return
	}
	if err := b.conn.Publish(e.Subject(), data); err != nil {
		b.logger.Warn("publish event", "subject", e.Subject(), "error", err)
	}
}
