package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/parleychat/parley/internal/backup"
	"github.com/parleychat/parley/internal/errs"
	"github.com/parleychat/parley/internal/model"
)

// ServerRepo implements ServerRepository using PostgreSQL.
type ServerRepo struct{ db *DB }

// NewServerRepo constructs a server repository.
func NewServerRepo(db *DB) *ServerRepo { return &ServerRepo{db: db} }

// IsMember reports whether the user belongs to the server.
func (r *ServerRepo) IsMember(ctx context.Context, serverID, userID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM server_members WHERE server_id=$1 AND user_id=$2)`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, serverID, userID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// MemberPermissions returns ownership and the bitwise OR of the user's role
// permissions on the server, the default role included.
func (r *ServerRepo) MemberPermissions(ctx context.Context, serverID, userID uuid.UUID) (bool, int64, error) {
	const q = `
SELECT s.owner_id = $2,
       COALESCE((SELECT bit_or(ro.permissions)
                 FROM roles ro
                 LEFT JOIN member_roles mr ON mr.role_id = ro.id AND mr.user_id = $2
                 WHERE ro.server_id = s.id AND (ro.is_default OR mr.user_id IS NOT NULL)), 0)
FROM servers s WHERE s.id = $1`
	var isOwner bool
	var perms int64
	if err := r.db.Pool.QueryRow(ctx, q, serverID, userID).Scan(&isOwner, &perms); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, 0, errs.ErrNotFound
		}
		return false, 0, err
	}
	return isOwner, perms, nil
}

// Wipe statements, ordered so nothing is orphaned: attachments, reactions
// and reports hang off messages without FK cascades (dropped during the
// message partition migration), so they go first.
const (
	wipeAttachments = `
DELETE FROM attachments WHERE message_id IN (
  SELECT m.id FROM messages m
  JOIN channels c ON c.id = m.channel_id
  WHERE c.server_id = $1)`

	wipeReactions = `
DELETE FROM reactions WHERE message_id IN (
  SELECT m.id FROM messages m
  JOIN channels c ON c.id = m.channel_id
  WHERE c.server_id = $1)`

	wipeReports = `
DELETE FROM reports WHERE message_id IN (
  SELECT m.id FROM messages m
  JOIN channels c ON c.id = m.channel_id
  WHERE c.server_id = $1)`

	detachSystemChannel = `UPDATE servers SET system_channel_id = NULL WHERE id = $1`
	wipeChannels        = `DELETE FROM channels WHERE server_id = $1`
	wipeCategories      = `DELETE FROM channel_categories WHERE server_id = $1`
	wipeRoles           = `DELETE FROM roles WHERE server_id = $1 AND is_default = FALSE`
)

// ReplaceStructure rebuilds the server hierarchy from the backup in one
// transaction. Concurrent restores of the same server serialize on a
// per-server advisory lock held until commit.
func (r *ServerRepo) ReplaceStructure(
	ctx context.Context, serverID, callerID uuid.UUID, b model.StructuralBackup,
) (res *model.RestoreResult, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
			res = nil
		}
	}()

	const lock = `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`
	if _, err = tx.Exec(ctx, lock, serverID); err != nil {
		return nil, err
	}

	for _, q := range []string{
		wipeAttachments, wipeReactions, wipeReports,
		detachSystemChannel, wipeChannels, wipeCategories, wipeRoles,
	} {
		if _, err = tx.Exec(ctx, q, serverID); err != nil {
			return nil, err
		}
	}

	ids := backup.NewIDMap()
	res = &model.RestoreResult{}

	if err = r.createCategories(ctx, tx, serverID, b.Categories, ids, res); err != nil {
		return nil, err
	}
	if err = r.createChannels(ctx, tx, serverID, callerID, b.Channels, ids, res); err != nil {
		return nil, err
	}
	if err = r.applyRoles(ctx, tx, serverID, b.Roles, ids, res); err != nil {
		return nil, err
	}
	if err = r.applyOverwrites(ctx, tx, b.Overwrites, ids, res); err != nil {
		return nil, err
	}

	res.ChannelIDMap = ids.Channels()
	return res, nil
}

func (r *ServerRepo) createCategories(
	ctx context.Context, tx pgx.Tx, serverID uuid.UUID,
	cats []model.BackupCategory, ids *backup.IDMap, res *model.RestoreResult,
) error {
	const ins = `
INSERT INTO channel_categories (id, server_id, name, position)
VALUES ($1, $2, $3, $4)`
	for _, cat := range cats {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, ins, id, serverID, cat.Name, cat.Position); err != nil {
			return err
		}
		ids.SetCategory(cat.LocalID, id)
		res.CategoriesCreated++
	}
	return nil
}

func (r *ServerRepo) createChannels(
	ctx context.Context, tx pgx.Tx, serverID, callerID uuid.UUID,
	chans []model.BackupChannel, ids *backup.IDMap, res *model.RestoreResult,
) error {
	const insChannel = `
INSERT INTO channels (id, server_id, name, channel_type, position, category_id, is_private, encrypted, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, now())`
	const insMember = `
INSERT INTO channel_members (id, channel_id, user_id, joined_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (channel_id, user_id) DO NOTHING`

	for _, ch := range chans {
		// Structural restore only applies to server-owned channels.
		if ch.ChannelType == "dm" || ch.ChannelType == "group_dm" {
			continue
		}

		var categoryID uuid.NullUUID
		if ch.CategoryLocalID != nil {
			if id, ok := ids.Category(*ch.CategoryLocalID); ok {
				categoryID = uuid.NullUUID{UUID: id, Valid: true}
			}
		}

		channelID, err := uuid.NewV4()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insChannel,
			channelID, serverID, ch.Name, ch.ChannelType, ch.Position, categoryID, ch.IsPrivate,
		); err != nil {
			return err
		}

		membershipID, err := uuid.NewV4()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insMember, membershipID, channelID, callerID); err != nil {
			return err
		}

		ids.SetChannel(ch.LocalID, channelID)
		res.ChannelsCreated++
	}
	return nil
}

func (r *ServerRepo) applyRoles(
	ctx context.Context, tx pgx.Tx, serverID uuid.UUID,
	roles []model.BackupRole, ids *backup.IDMap, res *model.RestoreResult,
) error {
	const selDefault = `SELECT id FROM roles WHERE server_id = $1 AND is_default = TRUE LIMIT 1`
	const updDefault = `UPDATE roles SET permissions = $1 WHERE id = $2`
	const insRole = `
INSERT INTO roles (id, server_id, name, color, permissions, position, is_default)
VALUES ($1, $2, $3, $4, $5, $6, FALSE)`

	var defaultRoleID uuid.UUID
	haveDefault := true
	if err := tx.QueryRow(ctx, selDefault, serverID).Scan(&defaultRoleID); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		haveDefault = false
	}

	for _, role := range roles {
		if role.IsDefault {
			if !haveDefault {
				res.DefaultRoleMissing = true
				continue
			}
			if _, err := tx.Exec(ctx, updDefault, role.Permissions, defaultRoleID); err != nil {
				return err
			}
			ids.SetRole(role.LocalID, defaultRoleID)
			res.RolesUpdated++
			continue
		}

		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insRole,
			id, serverID, role.Name, role.Color, role.Permissions, role.Position,
		); err != nil {
			return err
		}
		ids.SetRole(role.LocalID, id)
		res.RolesCreated++
	}
	return nil
}

func (r *ServerRepo) applyOverwrites(
	ctx context.Context, tx pgx.Tx,
	ows []model.BackupOverwrite, ids *backup.IDMap, res *model.RestoreResult,
) error {
	const upsert = `
INSERT INTO channel_permission_overwrites (channel_id, target_type, target_id, allow_bits, deny_bits)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (channel_id, target_type, target_id)
DO UPDATE SET allow_bits = EXCLUDED.allow_bits, deny_bits = EXCLUDED.deny_bits`

	for _, ow := range ows {
		// Member-targeted overwrites name identities from the exporting
		// instance and cannot be trusted to mean the same account here.
		if ow.TargetType != "role" {
			continue
		}
		channelID, ok := ids.Channel(ow.ChannelLocalID)
		if !ok {
			continue
		}
		roleID, ok := ids.Role(ow.TargetLocalID)
		if !ok {
			continue
		}
		if _, err := tx.Exec(ctx, upsert, channelID, ow.TargetType, roleID, ow.Allow, ow.Deny); err != nil {
			return err
		}
		res.OverwritesApplied++
	}
	return nil
}
