// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/parleychat/parley/internal/model"
)

// MembershipRepository answers authorization questions about a server.
type MembershipRepository interface {
	// IsMember reports whether the user currently belongs to the server.
	IsMember(ctx context.Context, serverID, userID uuid.UUID) (bool, error)

	// MemberPermissions returns whether the user owns the server and the
	// aggregate permission bitmask of their roles (default role included).
	MemberPermissions(ctx context.Context, serverID, userID uuid.UUID) (isOwner bool, perms int64, err error)
}

// ServerRepository provides the structural restore mutation on top of
// membership lookups.
type ServerRepository interface {
	MembershipRepository

	// ReplaceStructure wipes the server's categories, channels, roles and
	// overwrites and rebuilds them from the backup inside one transaction.
	// The caller is added to every created channel. The default role is
	// never deleted, only updated. Any failure rolls back everything.
	ReplaceStructure(ctx context.Context, serverID, callerID uuid.UUID, b model.StructuralBackup) (*model.RestoreResult, error)
}
