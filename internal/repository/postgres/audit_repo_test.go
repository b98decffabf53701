package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/require"

	"github.com/parleychat/parley/internal/model"
)

func TestAuditRepo_Record_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAuditRepo(db)

	serverID := uuid.Must(uuid.NewV4())
	actorID := uuid.Must(uuid.NewV4())
	targetType := "server"

	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(pgxmock.AnyArg(), serverID, actorID, "server_restore",
			&targetType, uuid.NullUUID{UUID: serverID, Valid: true}, []byte(`{"k":1}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := r.Record(context.Background(), model.AuditEntry{
		ServerID:   serverID,
		ActorID:    actorID,
		Action:     "server_restore",
		TargetType: &targetType,
		TargetID:   uuid.NullUUID{UUID: serverID, Valid: true},
		Metadata:   []byte(`{"k":1}`),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_Record_Error(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAuditRepo(db)

	boom := errors.New("insert failed")
	mock.ExpectExec(`INSERT INTO audit_log`).
		WillReturnError(boom)

	err := r.Record(context.Background(), model.AuditEntry{
		ServerID: uuid.Must(uuid.NewV4()),
		ActorID:  uuid.Must(uuid.NewV4()),
		Action:   "server_export",
	})
	require.ErrorIs(t, err, boom)
}
