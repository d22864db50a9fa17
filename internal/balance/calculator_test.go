package balance

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"splitledger/internal/ledger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func groupID(id int64) *int64 {
	return &id
}

// Three flatmates in one group: A fronts 300 split evenly, B fronts 90
// split between B and C.
func tripExpenses() []ledger.ExpenseRecord {
	return []ledger.ExpenseRecord{
		{
			ID: 1, GroupID: groupID(10), PayerID: 1, Amount: dec("300"), Currency: "TWD",
			Splits: []ledger.Split{
				{UserID: 1, Amount: dec("100")},
				{UserID: 2, Amount: dec("100")},
				{UserID: 3, Amount: dec("100")},
			},
		},
		{
			ID: 2, GroupID: groupID(10), PayerID: 2, Amount: dec("90"), Currency: "TWD",
			Splits: []ledger.Split{
				{UserID: 2, Amount: dec("45")},
				{UserID: 3, Amount: dec("45")},
			},
		},
	}
}

func TestNetBalances(t *testing.T) {
	balances := NetBalances(tripExpenses(), nil)

	want := map[int64]string{
		1: "200",  // paid 300, own share 100
		2: "-55",  // paid 90, owes 100 + 45
		3: "-145", // owes 100 + 45
	}
	for userID, amount := range want {
		got := balances[userID]["TWD"]
		if !got.Equal(dec(amount)) {
			t.Errorf("user %d balance = %s, want %s", userID, got, amount)
		}
	}

	total := decimal.Zero
	for _, byCurrency := range balances {
		total = total.Add(byCurrency["TWD"])
	}
	if !total.IsZero() {
		t.Errorf("balances sum to %s, want 0", total)
	}
}

func TestNetBalancesSettlementCancelsDebt(t *testing.T) {
	settlements := []ledger.SettlementRecord{
		{ID: 1, GroupID: groupID(10), FromUserID: 3, ToUserID: 1, Amount: dec("145"), Currency: "TWD"},
	}

	balances := NetBalances(tripExpenses(), settlements)

	if _, ok := balances[3]; ok {
		t.Errorf("user 3 should be fully settled, got %v", balances[3])
	}
	if got := balances[1]["TWD"]; !got.Equal(dec("55")) {
		t.Errorf("user 1 balance = %s, want 55", got)
	}
}

func TestNetBalancesCurrenciesAccumulateIndependently(t *testing.T) {
	expenses := []ledger.ExpenseRecord{
		{
			ID: 1, PayerID: 1, Amount: dec("100"), Currency: "TWD",
			Splits: []ledger.Split{{UserID: 2, Amount: dec("100")}},
		},
		{
			ID: 2, PayerID: 2, Amount: dec("30"), Currency: "USD",
			Splits: []ledger.Split{{UserID: 1, Amount: dec("30")}},
		},
	}

	balances := NetBalances(expenses, nil)

	if got := balances[1]["TWD"]; !got.Equal(dec("100")) {
		t.Errorf("user 1 TWD = %s, want 100", got)
	}
	if got := balances[1]["USD"]; !got.Equal(dec("-30")) {
		t.Errorf("user 1 USD = %s, want -30", got)
	}
	if got := balances[2]["TWD"]; !got.Equal(dec("-100")) {
		t.Errorf("user 2 TWD = %s, want -100", got)
	}
	if got := balances[2]["USD"]; !got.Equal(dec("30")) {
		t.Errorf("user 2 USD = %s, want 30", got)
	}
}

func TestNetBalancesDropsNearZero(t *testing.T) {
	expenses := []ledger.ExpenseRecord{
		{
			ID: 1, PayerID: 1, Amount: dec("50"), Currency: "TWD",
			Splits: []ledger.Split{
				{UserID: 1, Amount: dec("49.995")}, // within epsilon of the payment
				{UserID: 2, Amount: dec("0.005")},
			},
		},
	}

	balances := NetBalances(expenses, nil)

	if len(balances) != 0 {
		t.Errorf("expected all near-zero balances dropped, got %v", balances)
	}
}

func TestNetBalancesToleratesSplitDrift(t *testing.T) {
	// Splits under-count the expense by 0.03; the engine accepts the
	// record and the residue shows up in the totals.
	expenses := []ledger.ExpenseRecord{
		{
			ID: 1, PayerID: 1, Amount: dec("10.00"), Currency: "TWD",
			Splits: []ledger.Split{
				{UserID: 2, Amount: dec("4.99")},
				{UserID: 3, Amount: dec("4.98")},
			},
		},
	}

	balances := NetBalances(expenses, nil)

	if got := balances[1]["TWD"]; !got.Equal(dec("10.00")) {
		t.Errorf("payer balance = %s, want 10.00", got)
	}
	total := decimal.Zero
	for _, byCurrency := range balances {
		total = total.Add(byCurrency["TWD"])
	}
	if !total.Equal(dec("0.03")) {
		t.Errorf("residue = %s, want 0.03", total)
	}
}

// TestNetBalancesConservation generates random exact-split expense sets and
// checks that every currency's balances sum to zero.
func TestNetBalancesConservation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	currencies := []string{"TWD", "USD", "EUR"}

	for trial := 0; trial < 50; trial++ {
		userCount := 2 + rng.Intn(6)
		var expenses []ledger.ExpenseRecord
		var settlements []ledger.SettlementRecord

		for i := 0; i < 20; i++ {
			currency := currencies[rng.Intn(len(currencies))]
			payer := int64(1 + rng.Intn(userCount))
			participants := 1 + rng.Intn(userCount)

			var splits []ledger.Split
			total := decimal.Zero
			for p := 0; p < participants; p++ {
				share := decimal.New(int64(1+rng.Intn(10000)), -2)
				splits = append(splits, ledger.Split{UserID: int64(1 + p), Amount: share})
				total = total.Add(share)
			}
			expenses = append(expenses, ledger.ExpenseRecord{
				ID: int64(i + 1), PayerID: payer, Amount: total, Currency: currency, Splits: splits,
			})
		}
		for i := 0; i < 5; i++ {
			from := int64(1 + rng.Intn(userCount))
			to := int64(1 + rng.Intn(userCount))
			if from == to {
				continue
			}
			settlements = append(settlements, ledger.SettlementRecord{
				ID: int64(i + 1), FromUserID: from, ToUserID: to,
				Amount:   decimal.New(int64(1+rng.Intn(5000)), -2),
				Currency: currencies[rng.Intn(len(currencies))],
			})
		}

		balances := NetBalances(expenses, settlements)
		totals := make(map[string]decimal.Decimal)
		for _, byCurrency := range balances {
			for currency, amount := range byCurrency {
				totals[currency] = totals[currency].Add(amount)
			}
		}
		for currency, total := range totals {
			if !ledger.Negligible(total) {
				t.Fatalf("trial %d: %s balances sum to %s, want 0", trial, currency, total)
			}
		}
	}
}

func TestDirectBalances(t *testing.T) {
	settlements := []ledger.SettlementRecord{
		{ID: 1, GroupID: groupID(10), FromUserID: 3, ToUserID: 1, Amount: dec("40"), Currency: "TWD"},
	}

	// From user 3's side: owes 100 to user 1 (minus the 40 paid back)
	// and 45 to user 2. The group as a whole is irrelevant here.
	balances := DirectBalances(3, tripExpenses(), settlements)

	if got := balances[1]["TWD"]; !got.Equal(dec("-60")) {
		t.Errorf("balance against user 1 = %s, want -60", got)
	}
	if got := balances[2]["TWD"]; !got.Equal(dec("-45")) {
		t.Errorf("balance against user 2 = %s, want -45", got)
	}
}

func TestDirectBalancesIgnoresSelfSplits(t *testing.T) {
	// User 2 paid and has a split of their own; only user 3's share may
	// appear, keyed against user 2's counterparties.
	balances := DirectBalances(2, []ledger.ExpenseRecord{tripExpenses()[1]}, nil)

	if got := balances[3]["TWD"]; !got.Equal(dec("45")) {
		t.Errorf("balance against user 3 = %s, want 45", got)
	}
	if _, ok := balances[2]; ok {
		t.Error("self entry must never appear")
	}
}

func TestOwedBetween(t *testing.T) {
	tests := []struct {
		name     string
		debtor   int64
		creditor int64
		want     string
	}{
		{name: "C owes A", debtor: 3, creditor: 1, want: "100"},
		{name: "C owes B", debtor: 3, creditor: 2, want: "45"},
		{name: "reversed direction is zero", debtor: 1, creditor: 3, want: "0"},
		{name: "no relationship", debtor: 1, creditor: 99, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OwedBetween(tt.debtor, tt.creditor, "TWD", tripExpenses(), nil)
			if !got.Equal(dec(tt.want)) {
				t.Errorf("OwedBetween = %s, want %s", got, tt.want)
			}
		})
	}
}
