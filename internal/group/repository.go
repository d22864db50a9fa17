// Package group implements the group-membership collaborator.
package group

import (
	"context"
	"database/sql"
	"fmt"

	"splitledger/internal/ledger"
)

// Repository reads group membership from postgres
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new group repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// SharedGroups returns the groups where both users are members, ordered by
// group id for stable downstream processing.
func (r *Repository) SharedGroups(ctx context.Context, userA, userB int64) ([]ledger.Group, error) {
	query := `
		SELECT g.id, g.name
		FROM groups g
		JOIN group_members a ON a.group_id = g.id AND a.user_id = $1
		JOIN group_members b ON b.group_id = g.id AND b.user_id = $2
		ORDER BY g.id
	`

	rows, err := r.db.QueryContext(ctx, query, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("failed to list shared groups: %w", err)
	}
	defer rows.Close()

	var groups []ledger.Group
	for rows.Next() {
		var g ledger.Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	return groups, nil
}
