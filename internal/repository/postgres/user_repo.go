package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/parleychat/parley/internal/errs"
	"github.com/parleychat/parley/internal/model"
)

// UserRepo implements UserDirectory using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user directory repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// FindByID selects a user by ID.
func (r *UserRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `
SELECT id, username, display_name, identity_key, created_at
FROM users WHERE id=$1`
	row := r.db.Pool.QueryRow(ctx, q, id)
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.IdentityKey, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
