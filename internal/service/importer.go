package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/parleychat/parley/internal/errs"
	"github.com/parleychat/parley/internal/metrics"
	"github.com/parleychat/parley/internal/model"
	"github.com/parleychat/parley/internal/permissions"
	"github.com/parleychat/parley/internal/repository"
)

// defaultMaxBatch caps records per import call. Callers page large
// histories across calls; each call is independently transactional.
const defaultMaxBatch = 200

// ImportService replays historical messages into a restored channel.
type ImportService interface {
	// Import validates, decodes and inserts one batch. The whole batch
	// commits or none of it does.
	Import(ctx context.Context, callerID, channelID uuid.UUID, records []model.MessageRecord) (int, error)
}

type ImportServiceImpl struct {
	channels repository.ChannelRepository
	members  repository.MembershipRepository
	maxBatch int
}

// NewImportService constructs ImportService with batch limits.
func NewImportService(channels repository.ChannelRepository, members repository.MembershipRepository, maxBatch int) *ImportServiceImpl {
	if maxBatch <= 0 {
		maxBatch = defaultMaxBatch
	}
	return &ImportServiceImpl{channels: channels, members: members, maxBatch: maxBatch}
}

// Import runs validation and authorization before any mutation, then
// delegates the transactional insert to the repository. Any record failing
// to decode rejects the whole batch: a partial import could not be
// re-submitted without duplicating the records that made it in.
func (s *ImportServiceImpl) Import(
	ctx context.Context, callerID, channelID uuid.UUID, records []model.MessageRecord,
) (int, error) {
	if len(records) > s.maxBatch {
		return 0, fmt.Errorf("%w: too many messages per batch (max %d)", errs.ErrValidation, s.maxBatch)
	}

	ch, err := s.channels.GetChannel(ctx, channelID)
	if err != nil {
		return 0, fmt.Errorf("channel: %w", err)
	}
	if !ch.ServerID.Valid {
		return 0, fmt.Errorf("%w: cannot import messages into a direct message channel", errs.ErrValidation)
	}

	isOwner, perms, err := s.members.MemberPermissions(ctx, ch.ServerID.UUID, callerID)
	if err != nil {
		return 0, err
	}
	if !isOwner && !permissions.Has(perms, permissions.ManageServer) {
		return 0, fmt.Errorf("%w: missing MANAGE_SERVER permission", errs.ErrForbidden)
	}

	msgs, err := decodeRecords(records)
	if err != nil {
		return 0, err
	}

	n, err := s.channels.ImportMessages(ctx, channelID, msgs)
	if err != nil {
		return 0, err
	}
	metrics.MessagesImportedTotal.Add(float64(n))
	return n, nil
}

// decodeRecords converts transport records to insertable messages.
// sender_token/encrypted_body/timestamp failures abort the batch;
// unresolvable sender and reply references degrade to NULL because
// historical cross-references to deleted or foreign entities must not
// block the import.
func decodeRecords(records []model.MessageRecord) ([]model.ImportedMessage, error) {
	msgs := make([]model.ImportedMessage, 0, len(records))
	for i, rec := range records {
		token, err := base64.StdEncoding.DecodeString(rec.SenderToken)
		if err != nil {
			return nil, fmt.Errorf("%w: message[%d]: invalid base64 sender_token", errs.ErrValidation, i)
		}
		body, err := base64.StdEncoding.DecodeString(rec.EncryptedBody)
		if err != nil {
			return nil, fmt.Errorf("%w: message[%d]: invalid base64 encrypted_body", errs.ErrValidation, i)
		}
		ts, err := parseTimestamp(rec.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: message[%d]: invalid timestamp %q", errs.ErrValidation, i, rec.Timestamp)
		}

		msgs = append(msgs, model.ImportedMessage{
			SenderToken:    token,
			EncryptedBody:  body,
			Timestamp:      ts,
			HasAttachments: rec.HasAttachments,
			SenderID:       optionalID(rec.SenderID),
			ReplyToID:      optionalID(rec.ReplyToID),
			MessageType:    rec.MessageType,
		})
	}
	return msgs, nil
}

// parseTimestamp accepts RFC 3339 with offset, or a bare fractional-seconds
// timestamp that older exporters wrote, which is defined to be UTC. The
// result is normalized to UTC.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05", s)
	}
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func optionalID(s *string) uuid.NullUUID {
	if s == nil {
		return uuid.NullUUID{}
	}
	id, err := uuid.FromString(*s)
	if err != nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: id, Valid: true}
}
