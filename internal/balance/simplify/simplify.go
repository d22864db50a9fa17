// Package simplify reduces a set of net balances to a small set of
// transfers that clears them. Each currency is settled independently; a
// transfer never mixes currencies.
package simplify

import (
	"container/heap"
	"sort"

	"github.com/shopspring/decimal"

	"splitledger/internal/ledger"
)

// Transfer is a recommended payment that would resolve debt.
type Transfer struct {
	FromUserID int64           `json:"from_user_id"`
	ToUserID   int64           `json:"to_user_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
}

// Result is the simplified settlement plan for one scope.
type Result struct {
	Transfers []Transfer

	// OriginalTransferCount is n*(n-1)/2 over the distinct users holding
	// any nonzero balance: the upper bound where every pair settles
	// individually. Used for a savings figure, nothing more.
	OriginalTransferCount int
}

// party is one side of the matching: a positive amount outstanding for a
// creditor, or the positive magnitude owed for a debtor.
type party struct {
	userID int64
	amount decimal.Decimal
}

// partyHeap orders parties by amount descending, ties broken by ascending
// user id so the matching is deterministic for identical inputs.
type partyHeap []party

func (h partyHeap) Len() int { return len(h) }

func (h partyHeap) Less(i, j int) bool {
	if c := h[i].amount.Cmp(h[j].amount); c != 0 {
		return c > 0
	}
	return h[i].userID < h[j].userID
}

func (h partyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *partyHeap) Push(x any) { *h = append(*h, x.(party)) }

func (h *partyHeap) Pop() any {
	old := *h
	n := len(old)
	p := old[n-1]
	*h = old[:n-1]
	return p
}

// Simplify produces the transfer plan for the given net balances. Per
// currency it greedily matches the largest creditor against the largest
// debtor, transferring the smaller of the two outstanding amounts, until
// one side is exhausted. The greedy matching is a practical approximation
// of the minimum transfer count, not a provably optimal solver.
//
// The output is fully deterministic: currencies are processed in sorted
// order and heap ties break on user id.
func Simplify(balances ledger.Balances) Result {
	users := make(map[int64]bool)
	currencies := make(map[string]bool)
	for userID, byCurrency := range balances {
		for currency, amount := range byCurrency {
			if ledger.Negligible(amount) {
				continue
			}
			users[userID] = true
			currencies[currency] = true
		}
	}

	sorted := make([]string, 0, len(currencies))
	for currency := range currencies {
		sorted = append(sorted, currency)
	}
	sort.Strings(sorted)

	result := Result{
		OriginalTransferCount: len(users) * (len(users) - 1) / 2,
	}
	for _, currency := range sorted {
		result.Transfers = append(result.Transfers, settleCurrency(balances, currency)...)
	}
	return result
}

// settleCurrency runs the greedy matching for one currency. Loop invariant:
// while both heaps are non-empty, the heads are the largest outstanding
// creditor and debtor, and the sum of creditor amounts equals the sum of
// debtor amounts to within the accumulated rounding tolerance.
func settleCurrency(balances ledger.Balances, currency string) []Transfer {
	var creditors, debtors partyHeap
	for userID, byCurrency := range balances {
		amount := byCurrency[currency]
		switch {
		case amount.GreaterThan(ledger.Epsilon):
			creditors = append(creditors, party{userID: userID, amount: amount})
		case amount.LessThan(ledger.Epsilon.Neg()):
			debtors = append(debtors, party{userID: userID, amount: amount.Neg()})
		}
	}

	// Pre-sort so heap layout does not depend on map iteration order.
	sort.Sort(creditors)
	sort.Sort(debtors)
	heap.Init(&creditors)
	heap.Init(&debtors)

	var transfers []Transfer
	for creditors.Len() > 0 && debtors.Len() > 0 {
		creditor := &creditors[0]
		debtor := &debtors[0]

		amount := decimal.Min(creditor.amount, debtor.amount).Round(2)
		if amount.GreaterThan(ledger.Epsilon) {
			transfers = append(transfers, Transfer{
				FromUserID: debtor.userID,
				ToUserID:   creditor.userID,
				Amount:     amount,
				Currency:   currency,
			})
		}

		creditor.amount = creditor.amount.Sub(amount)
		debtor.amount = debtor.amount.Sub(amount)

		if creditor.amount.LessThanOrEqual(ledger.Epsilon) {
			heap.Pop(&creditors)
		} else {
			heap.Fix(&creditors, 0)
		}
		if debtor.amount.LessThanOrEqual(ledger.Epsilon) {
			heap.Pop(&debtors)
		} else {
			heap.Fix(&debtors, 0)
		}
	}
	return transfers
}
