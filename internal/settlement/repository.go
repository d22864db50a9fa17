package settlement

import (
	"context"
	"database/sql"
	"fmt"

	"splitledger/internal/ledger"
)

// Repository handles settlement data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new settlement repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a settlement record idempotently. A conflict on the
// idempotency key means the record was already written by an earlier
// attempt; the existing row is returned unchanged.
func (r *Repository) Create(ctx context.Context, record *ledger.SettlementRecord) (*ledger.SettlementRecord, error) {
	query := `
		INSERT INTO settlements (group_id, from_user_id, to_user_id, amount, currency_code, method, notes, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id, created_at
	`

	created := *record
	err := r.db.QueryRowContext(ctx, query,
		record.GroupID,
		record.FromUserID,
		record.ToUserID,
		record.Amount,
		record.Currency,
		record.Method,
		record.Notes,
		record.IdempotencyKey,
	).Scan(&created.ID, &created.CreatedAt)
	if err == nil {
		return &created, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to create settlement: %w", err)
	}

	// Conflict path: fetch the row written by the earlier attempt.
	existing, err := r.getByKey(ctx, record.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	return existing, nil
}

func (r *Repository) getByKey(ctx context.Context, key string) (*ledger.SettlementRecord, error) {
	query := `
		SELECT id, group_id, from_user_id, to_user_id, amount, currency_code, method, notes, idempotency_key, created_at
		FROM settlements
		WHERE idempotency_key = $1
	`

	record := &ledger.SettlementRecord{}
	var groupID sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, key).Scan(
		&record.ID,
		&groupID,
		&record.FromUserID,
		&record.ToUserID,
		&record.Amount,
		&record.Currency,
		&record.Method,
		&record.Notes,
		&record.IdempotencyKey,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement by idempotency key: %w", err)
	}
	if groupID.Valid {
		record.GroupID = &groupID.Int64
	}
	return record, nil
}

// CreateIntent persists an intent and its planned per-group entries in one
// transaction, before any settlement record is written.
func (r *Repository) CreateIntent(ctx context.Context, intent *Intent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin intent transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO settlement_intents (request_id, from_user_id, to_user_id, total_amount, currency_code)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (request_id) DO UPDATE SET request_id = EXCLUDED.request_id
		RETURNING id, created_at
	`
	err = tx.QueryRowContext(ctx, query,
		intent.RequestID,
		intent.FromUserID,
		intent.ToUserID,
		intent.TotalAmount,
		intent.Currency,
	).Scan(&intent.ID, &intent.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create settlement intent: %w", err)
	}

	entryQuery := `
		INSERT INTO settlement_intent_entries (intent_id, group_id, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (intent_id, group_id) DO NOTHING
	`
	for _, entry := range intent.Entries {
		if _, err := tx.ExecContext(ctx, entryQuery, intent.ID, entry.GroupID, entry.Amount); err != nil {
			return fmt.Errorf("failed to create intent entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settlement intent: %w", err)
	}
	return nil
}

// GetIntent loads an intent and its entries by request id. Returns nil
// without error when no intent exists for the id.
func (r *Repository) GetIntent(ctx context.Context, requestID string) (*Intent, error) {
	query := `
		SELECT id, request_id, from_user_id, to_user_id, total_amount, currency_code, created_at
		FROM settlement_intents
		WHERE request_id = $1
	`

	intent := &Intent{}
	err := r.db.QueryRowContext(ctx, query, requestID).Scan(
		&intent.ID,
		&intent.RequestID,
		&intent.FromUserID,
		&intent.ToUserID,
		&intent.TotalAmount,
		&intent.Currency,
		&intent.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get settlement intent: %w", err)
	}

	entryQuery := `
		SELECT group_id, amount, applied
		FROM settlement_intent_entries
		WHERE intent_id = $1
		ORDER BY group_id
	`
	rows, err := r.db.QueryContext(ctx, entryQuery, intent.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list intent entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry IntentEntry
		if err := rows.Scan(&entry.GroupID, &entry.Amount, &entry.Applied); err != nil {
			return nil, fmt.Errorf("failed to scan intent entry: %w", err)
		}
		intent.Entries = append(intent.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate intent entries: %w", err)
	}
	return intent, nil
}

// MarkApplied flags one group's intent entry as written.
func (r *Repository) MarkApplied(ctx context.Context, requestID string, groupID int64) error {
	query := `
		UPDATE settlement_intent_entries e
		SET applied = TRUE
		FROM settlement_intents i
		WHERE e.intent_id = i.id AND i.request_id = $1 AND e.group_id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, requestID, groupID); err != nil {
		return fmt.Errorf("failed to mark intent entry applied: %w", err)
	}
	return nil
}

// ListByUser retrieves every settlement in the user's scope, newest first:
// settlements in any group the user belongs to, plus groupless settlements
// the user paid or received. The scoping mirrors the expense stream so a
// settlement between two other members of a shared group still cancels
// debt in the user's net balances.
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]ledger.SettlementRecord, error) {
	query := `
		SELECT s.id, s.group_id, s.from_user_id, s.to_user_id, s.amount, s.currency_code, s.method, s.notes, s.idempotency_key, s.created_at
		FROM settlements s
		WHERE s.group_id IN (SELECT group_id FROM group_members WHERE user_id = $1)
		   OR (s.group_id IS NULL AND (s.from_user_id = $1 OR s.to_user_id = $1))
		ORDER BY s.created_at DESC, s.id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	return scanSettlements(rows)
}

// ListByGroup retrieves all settlements recorded in a group.
func (r *Repository) ListByGroup(ctx context.Context, groupID int64) ([]ledger.SettlementRecord, error) {
	query := `
		SELECT id, group_id, from_user_id, to_user_id, amount, currency_code, method, notes, idempotency_key, created_at
		FROM settlements
		WHERE group_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group settlements: %w", err)
	}
	defer rows.Close()

	return scanSettlements(rows)
}

func scanSettlements(rows *sql.Rows) ([]ledger.SettlementRecord, error) {
	var settlements []ledger.SettlementRecord
	for rows.Next() {
		var record ledger.SettlementRecord
		var groupID sql.NullInt64
		err := rows.Scan(
			&record.ID,
			&groupID,
			&record.FromUserID,
			&record.ToUserID,
			&record.Amount,
			&record.Currency,
			&record.Method,
			&record.Notes,
			&record.IdempotencyKey,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		if groupID.Valid {
			record.GroupID = &groupID.Int64
		}
		settlements = append(settlements, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return settlements, nil
}
