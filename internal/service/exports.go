// Package service contains application services for manifest verification,
// structural restore and message replay.
package service

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/parleychat/parley/internal/backup"
	"github.com/parleychat/parley/internal/errs"
	"github.com/parleychat/parley/internal/metrics"
	"github.com/parleychat/parley/internal/model"
	"github.com/parleychat/parley/internal/repository"
)

// ExportService verifies export manifests and records export events.
type ExportService interface {
	// Verify checks a detached Ed25519 signature over the manifest's
	// canonical serialization against the signer's registered key.
	Verify(ctx context.Context, manifest []byte, signature string) (*model.VerifyResult, error)

	// LogExport records a completed client-side export in the audit log.
	LogExport(ctx context.Context, actorID uuid.UUID, e model.ExportLog) error
}

type ExportServiceImpl struct {
	users repository.UserDirectory
	audit repository.AuditSink
	log   *zap.Logger
}

// NewExportService constructs ExportService with required dependencies.
func NewExportService(users repository.UserDirectory, audit repository.AuditSink, log *zap.Logger) *ExportServiceImpl {
	return &ExportServiceImpl{users: users, audit: audit, log: log}
}

// Verify is stateless and requires no authentication: anyone holding a
// manifest and signature may verify it. A cryptographic mismatch is not an
// error; only malformed input and an unknown signer are.
func (s *ExportServiceImpl) Verify(ctx context.Context, manifest []byte, signature string) (*model.VerifyResult, error) {
	m, err := backup.ParseManifest(manifest)
	if err != nil {
		return nil, err
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not valid base64", errs.ErrValidation)
	}
	if len(sig) != ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: signature must be %d bytes", errs.ErrValidation, ed25519.SignatureSize)
	}

	signer, err := s.users.FindByID(ctx, m.ExportedBy)
	if err != nil {
		return nil, fmt.Errorf("signer: %w", err)
	}

	canonical, err := m.Canonical()
	if err != nil {
		return nil, err
	}

	// The identity_key column may hold a key-exchange key of a different
	// length; that is not an error, it just cannot validate the signature.
	valid := false
	if len(signer.IdentityKey) == ed25519.PublicKeySize {
		valid = ed25519.Verify(ed25519.PublicKey(signer.IdentityKey), canonical, sig)
	}

	result := "invalid"
	if valid {
		result = "valid"
	}
	metrics.VerificationsTotal.WithLabelValues(result).Inc()

	return &model.VerifyResult{
		Valid: valid,
		Signer: &model.SignerInfo{
			UserID:      signer.ID,
			Username:    signer.Username,
			DisplayName: signer.DisplayName,
		},
		IdentityKeyMatches: valid,
	}, nil
}

// LogExport records an export event. DM exports carry no server id and are
// not audited. Sink failures are swallowed: the client already completed
// its export and must not see it fail retroactively.
func (s *ExportServiceImpl) LogExport(ctx context.Context, actorID uuid.UUID, e model.ExportLog) error {
	if !e.ServerID.Valid {
		return nil
	}

	action := "export"
	switch e.Scope {
	case "server":
		action = "server_export"
	case "channel":
		action = "channel_export"
	}

	meta, err := json.Marshal(map[string]any{
		"message_count": e.MessageCount,
		"scope":         e.Scope,
	})
	if err != nil {
		return err
	}

	entry := model.AuditEntry{
		ServerID: e.ServerID.UUID,
		ActorID:  actorID,
		Action:   action,
		Metadata: meta,
	}
	if e.ChannelID.Valid {
		targetType := "channel"
		entry.TargetType = &targetType
		entry.TargetID = e.ChannelID
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
	return nil
}
