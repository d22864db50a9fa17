package balance

import (
	"github.com/shopspring/decimal"

	"splitledger/internal/ledger"
)

// NetBalances folds expenses and settlements into per-user net balances for
// one scope. The payer of an expense is credited the full amount and every
// split participant is debited their share, so a payer who also appears in
// the splits nets out to amount minus their own share. A settlement credits
// the payer and debits the receiver, cancelling prior debt rather than
// creating new expense.
//
// Expenses whose splits do not sum to the expense amount are accepted as-is;
// the residue surfaces as a small nonzero total, which is a data-quality
// signal for the caller, not an error here.
func NetBalances(expenses []ledger.ExpenseRecord, settlements []ledger.SettlementRecord) ledger.Balances {
	balances := make(ledger.Balances)

	for _, e := range expenses {
		balances.Add(e.PayerID, e.Currency, e.Amount)
		for _, s := range e.Splits {
			balances.Add(s.UserID, e.Currency, s.Amount.Neg())
		}
	}

	for _, s := range settlements {
		balances.Add(s.FromUserID, s.Currency, s.Amount)
		balances.Add(s.ToUserID, s.Currency, s.Amount.Neg())
	}

	balances.Prune()
	return balances
}

// DirectBalances replays the same records for a single user but keys the
// result by counterparty instead of netting through the whole scope. The
// returned map holds, per counterparty and currency, a signed amount:
// positive means the counterparty owes userID, negative means userID owes
// the counterparty. Self-splits net to zero and never produce an entry.
func DirectBalances(userID int64, expenses []ledger.ExpenseRecord, settlements []ledger.SettlementRecord) ledger.Balances {
	balances := make(ledger.Balances)

	for _, e := range expenses {
		if e.PayerID == userID {
			// The user fronted this expense: every other participant
			// owes them their share.
			for _, s := range e.Splits {
				if s.UserID == userID {
					continue
				}
				balances.Add(s.UserID, e.Currency, s.Amount)
			}
			continue
		}
		// Someone else paid: the user's own share is owed to the payer.
		for _, s := range e.Splits {
			if s.UserID == userID {
				balances.Add(e.PayerID, e.Currency, s.Amount.Neg())
			}
		}
	}

	for _, s := range settlements {
		switch {
		case s.FromUserID == userID:
			// The user paid the counterparty, reducing what they owe.
			balances.Add(s.ToUserID, s.Currency, s.Amount)
		case s.ToUserID == userID:
			// The counterparty paid the user, reducing their claim.
			balances.Add(s.FromUserID, s.Currency, s.Amount.Neg())
		}
	}

	balances.Prune()
	return balances
}

// OwedBetween returns how much debtorID owes creditorID in the given
// currency according to a direct-balance replay, or zero when nothing is
// owed (or the direction is reversed).
func OwedBetween(debtorID, creditorID int64, currency string, expenses []ledger.ExpenseRecord, settlements []ledger.SettlementRecord) decimal.Decimal {
	balances := DirectBalances(debtorID, expenses, settlements)
	amount := balances[creditorID][currency]
	if amount.IsNegative() {
		return amount.Neg()
	}
	return decimal.Zero
}
