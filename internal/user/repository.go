// Package user implements the user-resolution collaborator used to
// decorate engine output with display names.
package user

import (
	"context"
	"database/sql"
	"fmt"

	"splitledger/internal/ledger"
)

// Repository reads user display data from postgres
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new user repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetByID retrieves a user by id. Returns nil without error when the user
// does not exist.
func (r *Repository) GetByID(ctx context.Context, userID int64) (*ledger.User, error) {
	query := `SELECT id, username FROM users WHERE id = $1`

	u := &ledger.User{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&u.ID, &u.Username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}
