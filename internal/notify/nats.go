package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/uuid/v5"
	"github.com/nats-io/nats.go"
)

// NATSPublisher bridges server events onto NATS subjects consumed by the
// realtime gateway fleet.
type NATSPublisher struct {
	nc *nats.Conn
}

// NewNATS connects to the broker. Reconnection is handled by the client;
// publishes during an outage are buffered or dropped, which matches the
// at-least-once/no-guarantee contract of the fan-out.
func NewNATS(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc}, nil
}

// ServerEvent publishes the event as JSON on server.<id>.events.
func (p *NATSPublisher) ServerEvent(_ context.Context, serverID uuid.UUID, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.nc.Publish(subjectFor(serverID), data)
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() { p.nc.Close() }

func subjectFor(serverID uuid.UUID) string {
	return "server." + serverID.String() + ".events"
}
