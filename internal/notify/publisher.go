// Package notify publishes server events to connected-client fan-out.
// Publication is fire-and-forget: at-least-once is acceptable, failures are
// observability-only and never surface to the operation that triggered them.
package notify

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

// ServerUpdated signals that a server's structure changed and clients
// should refetch it.
type ServerUpdated struct {
	Type     string    `json:"type"`
	ServerID uuid.UUID `json:"server_id"`
}

// NewServerUpdated builds the event for a server.
func NewServerUpdated(serverID uuid.UUID) ServerUpdated {
	return ServerUpdated{Type: "server_updated", ServerID: serverID}
}

// Publisher delivers events to the subscribers of a server.
type Publisher interface {
	// ServerEvent publishes one event to the server's subscribers.
	ServerEvent(ctx context.Context, serverID uuid.UUID, event any) error
	// Close releases the underlying connection.
	Close()
}

// Noop is a Publisher that drops everything. Used when fan-out is disabled
// and in tests.
type Noop struct{}

// ServerEvent discards the event.
func (Noop) ServerEvent(context.Context, uuid.UUID, any) error { return nil }

// Close does nothing.
func (Noop) Close() {}
