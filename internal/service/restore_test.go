package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/parleychat/parley/internal/errs"
	"github.com/parleychat/parley/internal/model"
	"github.com/parleychat/parley/internal/notify"
	"github.com/parleychat/parley/internal/permissions"
	"github.com/parleychat/parley/internal/repository"
)

type fakeServerRepo struct {
	member    bool
	memberErr error

	isOwner  bool
	perms    int64
	permsErr error

	replaceIn  *model.StructuralBackup
	replaceOut *model.RestoreResult
	replaceErr error
}

var _ repository.ServerRepository = (*fakeServerRepo)(nil)

func (f *fakeServerRepo) IsMember(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return f.member, f.memberErr
}

func (f *fakeServerRepo) MemberPermissions(context.Context, uuid.UUID, uuid.UUID) (bool, int64, error) {
	return f.isOwner, f.perms, f.permsErr
}

func (f *fakeServerRepo) ReplaceStructure(
	_ context.Context, _, _ uuid.UUID, b model.StructuralBackup,
) (*model.RestoreResult, error) {
	f.replaceIn = &b
	return f.replaceOut, f.replaceErr
}

type fakePublisher struct {
	mu     sync.Mutex
	events []any
	err    error
}

var _ notify.Publisher = (*fakePublisher)(nil)

func (f *fakePublisher) ServerEvent(_ context.Context, _ uuid.UUID, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func (f *fakePublisher) Close() {}

func (f *fakePublisher) published() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.events...)
}

// waitUntil polls cond until it holds or the deadline passes. The restore
// side effects run on a goroutine after the caller gets its result.
func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached within deadline")
}

func backupOfSize(categories, channels, roles int) model.StructuralBackup {
	b := model.StructuralBackup{ServerName: "origin"}
	for i := 0; i < categories; i++ {
		b.Categories = append(b.Categories, model.BackupCategory{LocalID: "c", Name: "c"})
	}
	for i := 0; i < channels; i++ {
		b.Channels = append(b.Channels, model.BackupChannel{LocalID: "ch", Name: "ch", ChannelType: "text"})
	}
	for i := 0; i < roles; i++ {
		b.Roles = append(b.Roles, model.BackupRole{LocalID: "r", Name: "r"})
	}
	return b
}

func TestRestoreService_NotAMember(t *testing.T) {
	t.Parallel()
	repo := &fakeServerRepo{member: false}
	s := NewRestoreService(repo, &fakeAuditSink{}, notify.Noop{}, zap.NewNop())

	_, err := s.Restore(context.Background(), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), model.StructuralBackup{})
	if !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
	if repo.replaceIn != nil {
		t.Fatalf("repo must not be called for non-members")
	}
}

func TestRestoreService_MissingManageServer(t *testing.T) {
	t.Parallel()
	repo := &fakeServerRepo{member: true, isOwner: false, perms: permissions.SendMessages}
	s := NewRestoreService(repo, &fakeAuditSink{}, notify.Noop{}, zap.NewNop())

	_, err := s.Restore(context.Background(), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), model.StructuralBackup{})
	if !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
	if repo.replaceIn != nil {
		t.Fatalf("repo must not be called without MANAGE_SERVER")
	}
}

func TestRestoreService_OwnerBypassesPermissionCheck(t *testing.T) {
	t.Parallel()
	repo := &fakeServerRepo{member: true, isOwner: true, perms: 0, replaceOut: &model.RestoreResult{}}
	s := NewRestoreService(repo, &fakeAuditSink{}, notify.Noop{}, zap.NewNop())

	if _, err := s.Restore(context.Background(), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), model.StructuralBackup{}); err != nil {
		t.Fatalf("owner restore: %v", err)
	}
}

func TestRestoreService_Caps(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		backup model.StructuralBackup
	}{
		{"categories", backupOfSize(51, 0, 0)},
		{"channels", backupOfSize(0, 501, 0)},
		{"roles", backupOfSize(0, 0, 251)},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			repo := &fakeServerRepo{member: true, isOwner: true}
			s := NewRestoreService(repo, &fakeAuditSink{}, notify.Noop{}, zap.NewNop())

			_, err := s.Restore(context.Background(), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), tc.backup)
			if !errors.Is(err, errs.ErrValidation) {
				t.Fatalf("want ErrValidation, got %v", err)
			}
			if repo.replaceIn != nil {
				t.Fatalf("repo must not be called when caps are exceeded")
			}
		})
	}
}

func TestRestoreService_AtCapsPasses(t *testing.T) {
	t.Parallel()
	repo := &fakeServerRepo{member: true, isOwner: true, replaceOut: &model.RestoreResult{}}
	s := NewRestoreService(repo, &fakeAuditSink{}, notify.Noop{}, zap.NewNop())

	if _, err := s.Restore(context.Background(), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), backupOfSize(50, 500, 250)); err != nil {
		t.Fatalf("backup exactly at caps should pass: %v", err)
	}
	if repo.replaceIn == nil {
		t.Fatalf("repo not called")
	}
}

func TestRestoreService_PassesResultThrough(t *testing.T) {
	t.Parallel()
	chanID := uuid.Must(uuid.NewV4())
	out := &model.RestoreResult{
		CategoriesCreated: 2,
		ChannelsCreated:   4,
		RolesCreated:      2,
		RolesUpdated:      1,
		OverwritesApplied: 3,
		ChannelIDMap:      map[string]uuid.UUID{"local": chanID},
	}
	repo := &fakeServerRepo{member: true, perms: permissions.ManageServer, replaceOut: out}
	s := NewRestoreService(repo, &fakeAuditSink{}, notify.Noop{}, zap.NewNop())

	res, err := s.Restore(context.Background(), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), model.StructuralBackup{})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if res != out {
		t.Fatalf("result not passed through")
	}
}

func TestRestoreService_RepoErrorSurfaces(t *testing.T) {
	t.Parallel()
	boom := errors.New("tx failed")
	repo := &fakeServerRepo{member: true, isOwner: true, replaceErr: boom}
	audit := &fakeAuditSink{}
	pub := &fakePublisher{}
	s := NewRestoreService(repo, audit, pub, zap.NewNop())

	_, err := s.Restore(context.Background(), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), model.StructuralBackup{})
	if !errors.Is(err, boom) {
		t.Fatalf("want repo error, got %v", err)
	}
	if len(audit.recorded()) != 0 || len(pub.published()) != 0 {
		t.Fatalf("no side effects on failed restore")
	}
}

func TestRestoreService_DispatchesAuditAndNotification(t *testing.T) {
	t.Parallel()
	serverID := uuid.Must(uuid.NewV4())
	callerID := uuid.Must(uuid.NewV4())
	repo := &fakeServerRepo{member: true, isOwner: true, replaceOut: &model.RestoreResult{CategoriesCreated: 1}}
	audit := &fakeAuditSink{}
	pub := &fakePublisher{}
	s := NewRestoreService(repo, audit, pub, zap.NewNop())

	if _, err := s.Restore(context.Background(), callerID, serverID, model.StructuralBackup{ServerName: "origin"}); err != nil {
		t.Fatalf("restore: %v", err)
	}

	waitUntil(t, func() bool {
		return len(audit.recorded()) == 1 && len(pub.published()) == 1
	})

	e := audit.recorded()[0]
	if e.Action != "server_restore" || e.ServerID != serverID || e.ActorID != callerID {
		t.Fatalf("unexpected audit entry: %+v", e)
	}
	ev, ok := pub.published()[0].(notify.ServerUpdated)
	if !ok || ev.ServerID != serverID || ev.Type != "server_updated" {
		t.Fatalf("unexpected event: %+v", pub.published()[0])
	}
}

func TestRestoreService_SideEffectFailuresDoNotSurface(t *testing.T) {
	t.Parallel()
	repo := &fakeServerRepo{member: true, isOwner: true, replaceOut: &model.RestoreResult{}}
	audit := &fakeAuditSink{err: errors.New("audit down")}
	pub := &fakePublisher{err: errors.New("broker down")}
	s := NewRestoreService(repo, audit, pub, zap.NewNop())

	if _, err := s.Restore(context.Background(), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), model.StructuralBackup{}); err != nil {
		t.Fatalf("side effect failures must not surface: %v", err)
	}

	// Both side effects still ran despite failing.
	waitUntil(t, func() bool {
		return len(audit.recorded()) == 1 && len(pub.published()) == 1
	})
}
