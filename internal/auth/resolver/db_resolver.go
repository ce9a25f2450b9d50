package resolver

import (
	"context"
	"database/sql"
	"errors"

	"login-gate/internal/auth"
	"login-gate/internal/db"
)

// DBResolver resolves session identity ids against the accounts table.
// It implements auth.IdentityLoader.
type DBResolver struct {
	db *db.DB
}

func NewDBResolver(db *db.DB) *DBResolver {
	return &DBResolver{db: db}
}

// LoadIdentity returns ok=false for unknown or disabled accounts, so a
// session outlives its account by at most one request.
func (r *DBResolver) LoadIdentity(ctx context.Context, id string) (auth.Identity, bool, error) {
	if id == "" {
		return auth.Identity{}, false, nil
	}

	var login string
	err := r.db.QueryRowContext(ctx, `
		SELECT login
		FROM accounts
		WHERE LOWER(login) = LOWER($1)
		  AND status = 'active'
	`, id).Scan(&login)

	if errors.Is(err, sql.ErrNoRows) {
		return auth.Identity{}, false, nil
	}
	if err != nil {
		return auth.Identity{}, false, err
	}

	return auth.Identity{ID: login}, true, nil
}

// EnsureAccount registers login as an active account if it is missing.
func (r *DBResolver) EnsureAccount(ctx context.Context, login string) error {
	if login == "" {
		return errors.New("resolver: empty login")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (login)
		VALUES ($1)
		ON CONFLICT DO NOTHING
	`, login)
	return err
}

var _ auth.IdentityLoader = (*DBResolver)(nil)
