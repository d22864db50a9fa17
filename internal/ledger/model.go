// Package ledger defines the record types shared by the balance and
// settlement engines. All records are immutable snapshots fetched at the
// start of a computation; nothing in this package touches storage.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Epsilon is the monetary tolerance used for every comparison in the
// engine. Balances within Epsilon of zero are treated as settled.
var Epsilon = decimal.New(1, -2) // 0.01

// Negligible reports whether an amount is within Epsilon of zero.
func Negligible(amount decimal.Decimal) bool {
	return amount.Abs().LessThanOrEqual(Epsilon)
}

// ExpenseRecord is a snapshot of one expense and its splits.
// The engine trusts the creator to keep sum(splits) close to Amount;
// small rounding drift is tolerated, never rejected.
type ExpenseRecord struct {
	ID          int64           `json:"id"`
	GroupID     *int64          `json:"group_id,omitempty"`
	PayerID     int64           `json:"payer_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Splits      []Split         `json:"splits"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Split is one participant's share of an expense. A payer splitting with
// themselves is valid; their own share nets against the amount they fronted.
type Split struct {
	UserID int64           `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

// SettlementRecord is a payment that already happened, reducing what
// FromUserID owes ToUserID in the record's currency.
type SettlementRecord struct {
	ID             int64           `json:"id"`
	GroupID        *int64          `json:"group_id,omitempty"`
	FromUserID     int64           `json:"from_user_id"`
	ToUserID       int64           `json:"to_user_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Method         string          `json:"method,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	IdempotencyKey string          `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Group identifies a group a pair of users may share.
type Group struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// User carries the display information attached to engine output.
// It is never used for computation.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Balances is the derived two-level map of userID -> currency -> signed
// amount. Positive means the ledger owes the user (net creditor); negative
// means the user owes the ledger. Currencies accumulate independently and
// are never converted into one another.
type Balances map[int64]map[string]decimal.Decimal

// Add accumulates an amount with zero-default semantics for missing keys.
func (b Balances) Add(userID int64, currency string, amount decimal.Decimal) {
	byCurrency, ok := b[userID]
	if !ok {
		byCurrency = make(map[string]decimal.Decimal)
		b[userID] = byCurrency
	}
	byCurrency[currency] = byCurrency[currency].Add(amount)
}

// Prune drops entries within Epsilon of zero, removing users that end up
// with no currencies left.
func (b Balances) Prune() {
	for userID, byCurrency := range b {
		for currency, amount := range byCurrency {
			if Negligible(amount) {
				delete(byCurrency, currency)
			}
		}
		if len(byCurrency) == 0 {
			delete(b, userID)
		}
	}
}
