package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/parleychat/parley/internal/model"
)

// AuditRepo implements AuditSink using PostgreSQL.
type AuditRepo struct{ db *DB }

// NewAuditRepo constructs an audit sink repository.
func NewAuditRepo(db *DB) *AuditRepo { return &AuditRepo{db: db} }

// Record inserts one audit row. Callers treat failures as observability-only.
func (r *AuditRepo) Record(ctx context.Context, e model.AuditEntry) error {
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	const q = `
INSERT INTO audit_log (id, server_id, actor_id, action, target_type, target_id, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())`
	_, err = r.db.Pool.Exec(ctx, q, id, e.ServerID, e.ActorID, e.Action, e.TargetType, e.TargetID, e.Metadata)
	return err
}
