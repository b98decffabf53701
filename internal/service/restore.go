package service

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/parleychat/parley/internal/errs"
	"github.com/parleychat/parley/internal/metrics"
	"github.com/parleychat/parley/internal/model"
	"github.com/parleychat/parley/internal/notify"
	"github.com/parleychat/parley/internal/permissions"
	"github.com/parleychat/parley/internal/repository"
)

// Structural caps, validated against the entire submitted backup before any
// mutation begins.
const (
	maxCategories = 50
	maxChannels   = 500
	maxRoles      = 250
)

// RestoreService replaces a server's structural hierarchy from a backup.
type RestoreService interface {
	// Restore wipes and rebuilds the server's categories, channels, roles
	// and overwrites atomically, returning counts and the channel id map.
	Restore(ctx context.Context, callerID, serverID uuid.UUID, b model.StructuralBackup) (*model.RestoreResult, error)
}

type RestoreServiceImpl struct {
	servers repository.ServerRepository
	audit   repository.AuditSink
	pub     notify.Publisher
	log     *zap.Logger

	// sideEffectTimeout bounds the post-commit audit/notify dispatch.
	sideEffectTimeout time.Duration
}

// NewRestoreService constructs RestoreService with required dependencies.
func NewRestoreService(
	servers repository.ServerRepository,
	audit repository.AuditSink,
	pub notify.Publisher,
	log *zap.Logger,
) *RestoreServiceImpl {
	return &RestoreServiceImpl{
		servers:           servers,
		audit:             audit,
		pub:               pub,
		log:               log,
		sideEffectTimeout: 5 * time.Second,
	}
}

// Restore authorizes the caller, validates caps and delegates the atomic
// rebuild to the repository. Authorization and validation run before any
// mutating step: a rejected request leaves the system unchanged.
func (s *RestoreServiceImpl) Restore(
	ctx context.Context, callerID, serverID uuid.UUID, b model.StructuralBackup,
) (*model.RestoreResult, error) {
	member, err := s.servers.IsMember(ctx, serverID, callerID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("%w: not a member of this server", errs.ErrForbidden)
	}

	isOwner, perms, err := s.servers.MemberPermissions(ctx, serverID, callerID)
	if err != nil {
		return nil, err
	}
	if !isOwner && !permissions.Has(perms, permissions.ManageServer) {
		return nil, fmt.Errorf("%w: missing MANAGE_SERVER permission", errs.ErrForbidden)
	}

	if len(b.Categories) > maxCategories {
		return nil, fmt.Errorf("%w: too many categories (max %d)", errs.ErrValidation, maxCategories)
	}
	if len(b.Channels) > maxChannels {
		return nil, fmt.Errorf("%w: too many channels (max %d)", errs.ErrValidation, maxChannels)
	}
	if len(b.Roles) > maxRoles {
		return nil, fmt.Errorf("%w: too many roles (max %d)", errs.ErrValidation, maxRoles)
	}

	res, err := s.servers.ReplaceStructure(ctx, serverID, callerID, b)
	if err != nil {
		metrics.RestoresTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.RestoresTotal.WithLabelValues("ok").Inc()

	if res.DefaultRoleMissing {
		// Should be structurally impossible: every server gets a default
		// role at creation. The backup's default-role bitmask was skipped.
		s.log.Warn("server has no default role; backup default-role permissions not applied",
			zap.String("server_id", serverID.String()))
	}

	s.dispatchAfterRestore(serverID, callerID, b.ServerName, res)
	return res, nil
}

// dispatchAfterRestore runs the best-effort post-commit side effects:
// audit record and fan-out notification. Neither blocks nor fails the
// caller-visible result; failures are logged and not retried.
func (s *RestoreServiceImpl) dispatchAfterRestore(
	serverID, callerID uuid.UUID, sourceName string, res *model.RestoreResult,
) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.sideEffectTimeout)
		defer cancel()

		meta, err := json.Marshal(map[string]any{
			"source_server_name": sourceName,
			"categories_created": res.CategoriesCreated,
			"channels_created":   res.ChannelsCreated,
			"roles_created":      res.RolesCreated,
		})
		if err == nil {
			targetType := "server"
			err = s.audit.Record(ctx, model.AuditEntry{
				ServerID:   serverID,
				ActorID:    callerID,
				Action:     "server_restore",
				TargetType: &targetType,
				TargetID:   uuid.NullUUID{UUID: serverID, Valid: true},
				Metadata:   meta,
			})
		}
		if err != nil {
			s.log.Warn("restore audit write failed",
				zap.String("server_id", serverID.String()), zap.Error(err))
		}

		if err := s.pub.ServerEvent(ctx, serverID, notify.NewServerUpdated(serverID)); err != nil {
			s.log.Warn("restore notification publish failed",
				zap.String("server_id", serverID.String()), zap.Error(err))
		}
	}()
}
