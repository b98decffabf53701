package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/parleychat/parley/internal/model"
)

// UserDirectory resolves platform accounts, including their registered
// public keys, for signature verification.
type UserDirectory interface {
	// FindByID loads a user by id.
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}
