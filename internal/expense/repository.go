// Package expense implements the ledger-reader collaborator for the
// expense record stream.
package expense

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"splitledger/internal/ledger"
)

// Repository reads expense records and their splits from postgres
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new expense repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListByUser retrieves every expense touching a user: expenses in any
// group the user belongs to, plus groupless expenses the user paid or
// participates in.
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]ledger.ExpenseRecord, error) {
	query := `
		SELECT e.id, e.group_id, e.payer_id, e.description, e.amount, e.currency_code, e.created_at
		FROM expenses e
		WHERE e.group_id IN (SELECT group_id FROM group_members WHERE user_id = $1)
		   OR (e.group_id IS NULL AND (
		       e.payer_id = $1
		       OR EXISTS (SELECT 1 FROM expense_splits s WHERE s.expense_id = e.id AND s.user_id = $1)))
		ORDER BY e.created_at, e.id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses for user: %w", err)
	}
	defer rows.Close()

	return r.collect(ctx, rows)
}

// ListByGroup retrieves every expense recorded in a group.
func (r *Repository) ListByGroup(ctx context.Context, groupID int64) ([]ledger.ExpenseRecord, error) {
	query := `
		SELECT e.id, e.group_id, e.payer_id, e.description, e.amount, e.currency_code, e.created_at
		FROM expenses e
		WHERE e.group_id = $1
		ORDER BY e.created_at, e.id
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses for group: %w", err)
	}
	defer rows.Close()

	return r.collect(ctx, rows)
}

// collect scans the expense rows and attaches splits in one extra query.
func (r *Repository) collect(ctx context.Context, rows *sql.Rows) ([]ledger.ExpenseRecord, error) {
	var expenses []ledger.ExpenseRecord
	var ids []int64
	byID := make(map[int64]int)

	for rows.Next() {
		var e ledger.ExpenseRecord
		var groupID sql.NullInt64
		err := rows.Scan(&e.ID, &groupID, &e.PayerID, &e.Description, &e.Amount, &e.Currency, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		if groupID.Valid {
			e.GroupID = &groupID.Int64
		}
		byID[e.ID] = len(expenses)
		ids = append(ids, e.ID)
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	if len(expenses) == 0 {
		return expenses, nil
	}

	splitQuery := `
		SELECT expense_id, user_id, amount
		FROM expense_splits
		WHERE expense_id = ANY($1)
		ORDER BY expense_id, user_id
	`
	splitRows, err := r.db.QueryContext(ctx, splitQuery, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list expense splits: %w", err)
	}
	defer splitRows.Close()

	for splitRows.Next() {
		var expenseID int64
		var split ledger.Split
		if err := splitRows.Scan(&expenseID, &split.UserID, &split.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan expense split: %w", err)
		}
		i, ok := byID[expenseID]
		if !ok {
			continue
		}
		expenses[i].Splits = append(expenses[i].Splits, split)
	}
	if err := splitRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expense splits: %w", err)
	}

	return expenses, nil
}
