package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/parleychat/parley/internal/model"
)

// ChannelRepository provides channel lookup and historical message replay.
type ChannelRepository interface {
	// GetChannel loads a channel by id.
	GetChannel(ctx context.Context, id uuid.UUID) (*model.Channel, error)

	// ImportMessages inserts decoded historical messages into the channel
	// with fresh identifiers, atomically for the whole batch.
	ImportMessages(ctx context.Context, channelID uuid.UUID, msgs []model.ImportedMessage) (int, error)
}
