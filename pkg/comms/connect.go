// Package comms provides NATS connection helpers and subject naming
// for the gateway's messaging backbone.
package comms

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const logPrefix = "comms:connect"

// Connect creates a NATS connection to the given URL.
func Connect(url, name string) (*nats.Conn, error) {
	slog.Info(fmt.Sprintf("%s - Connecting to NATS at %s as %s", logPrefix, url, name))

	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn(fmt.Sprintf("%s - NATS disconnected: %v", logPrefix, err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info(fmt.Sprintf("%s - NATS reconnected to %s", logPrefix, nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			slog.Info(fmt.Sprintf("%s - NATS connection closed", logPrefix))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Connected to NATS at %s", logPrefix, nc.ConnectedUrl()))
	return nc, nil
}
