package balance

import (
	"github.com/shopspring/decimal"

	"splitledger/internal/balance/simplify"
)

// Direction says which way the money flows relative to the viewing user.
type Direction string

const (
	DirectionOwesYou Direction = "owes_you"
	DirectionYouOwe  Direction = "you_owe"
)

// Entry is one counterparty relationship from the viewing user's side.
type Entry struct {
	CounterpartyID   int64           `json:"counterparty_id"`
	CounterpartyName string          `json:"counterparty_name,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Direction        Direction       `json:"direction"`
}

// Summary aggregates a user's entries into headline figures.
type Summary struct {
	TotalOwed  decimal.Decimal `json:"total_owed"`  // others owe you
	TotalOwing decimal.Decimal `json:"total_owing"` // you owe others
	NetBalance decimal.Decimal `json:"net_balance"` // owed minus owing
}

// ForUser filters a scope-wide transfer plan down to the transfers touching
// one user and re-expresses each from that user's viewpoint. Pure
// projection: the transfer list is not modified.
func ForUser(transfers []simplify.Transfer, userID int64) []Entry {
	var entries []Entry
	for _, t := range transfers {
		switch userID {
		case t.FromUserID:
			entries = append(entries, Entry{
				CounterpartyID: t.ToUserID,
				Amount:         t.Amount,
				Currency:       t.Currency,
				Direction:      DirectionYouOwe,
			})
		case t.ToUserID:
			entries = append(entries, Entry{
				CounterpartyID: t.FromUserID,
				Amount:         t.Amount,
				Currency:       t.Currency,
				Direction:      DirectionOwesYou,
			})
		}
	}
	return entries
}

// Summarize totals the owed and owing sides of a set of entries,
// rounded to two decimal places.
func Summarize(entries []Entry) Summary {
	owed, owing := decimal.Zero, decimal.Zero
	for _, e := range entries {
		switch e.Direction {
		case DirectionOwesYou:
			owed = owed.Add(e.Amount)
		case DirectionYouOwe:
			owing = owing.Add(e.Amount)
		}
	}
	owed = owed.Round(2)
	owing = owing.Round(2)
	return Summary{
		TotalOwed:  owed,
		TotalOwing: owing,
		NetBalance: owed.Sub(owing).Round(2),
	}
}
