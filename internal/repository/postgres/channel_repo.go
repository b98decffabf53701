package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/parleychat/parley/internal/errs"
	"github.com/parleychat/parley/internal/model"
)

// ChannelRepo implements ChannelRepository using PostgreSQL.
type ChannelRepo struct{ db *DB }

// NewChannelRepo constructs a channel repository.
func NewChannelRepo(db *DB) *ChannelRepo { return &ChannelRepo{db: db} }

// GetChannel loads a channel by id.
func (r *ChannelRepo) GetChannel(ctx context.Context, id uuid.UUID) (*model.Channel, error) {
	const q = `
SELECT id, server_id, channel_type, position, category_id, is_private, encrypted, created_at
FROM channels WHERE id=$1`
	row := r.db.Pool.QueryRow(ctx, q, id)
	var ch model.Channel
	if err := row.Scan(
		&ch.ID, &ch.ServerID, &ch.ChannelType, &ch.Position,
		&ch.CategoryID, &ch.IsPrivate, &ch.Encrypted, &ch.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &ch, nil
}

// ImportMessages inserts the batch with fresh message identifiers inside
// one transaction. Identifiers from the backup are never reused; they could
// collide with messages created between export and restore.
func (r *ChannelRepo) ImportMessages(
	ctx context.Context, channelID uuid.UUID, msgs []model.ImportedMessage,
) (imported int, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
			imported = 0
		}
	}()

	const ins = `
INSERT INTO messages (id, channel_id, sender_token, encrypted_body, timestamp, has_attachments, sender_id, reply_to_id, message_type)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for _, m := range msgs {
		var id uuid.UUID
		if id, err = uuid.NewV4(); err != nil {
			return 0, err
		}
		if _, err = tx.Exec(ctx, ins,
			id, channelID, m.SenderToken, m.EncryptedBody, m.Timestamp,
			m.HasAttachments, m.SenderID, m.ReplyToID, m.MessageType,
		); err != nil {
			return 0, err
		}
		imported++
	}
	return imported, nil
}
