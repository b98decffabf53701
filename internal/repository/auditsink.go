package repository

import (
	"context"

	"github.com/parleychat/parley/internal/model"
)

// AuditSink records audit entries. Every call site treats failures as
// observability-only; a failed write never fails the calling operation.
type AuditSink interface {
	Record(ctx context.Context, e model.AuditEntry) error
}
