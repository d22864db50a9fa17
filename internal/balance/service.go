package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"splitledger/internal/balance/simplify"
	"splitledger/internal/ledger"
	"splitledger/pkg/metrics"
)

// Common errors
var (
	ErrInvalidUser = errors.New("user id must be positive")
)

// ExpenseReader supplies the expense stream for a scope.
type ExpenseReader interface {
	ListByUser(ctx context.Context, userID int64) ([]ledger.ExpenseRecord, error)
	ListByGroup(ctx context.Context, groupID int64) ([]ledger.ExpenseRecord, error)
}

// SettlementReader supplies the settlement stream for a scope.
type SettlementReader interface {
	ListByUser(ctx context.Context, userID int64) ([]ledger.SettlementRecord, error)
	ListByGroup(ctx context.Context, groupID int64) ([]ledger.SettlementRecord, error)
}

// UserResolver decorates output with display names. It is never consulted
// for computation.
type UserResolver interface {
	GetByID(ctx context.Context, userID int64) (*ledger.User, error)
}

// Service computes balances from a fresh ledger snapshot per request.
// It holds no state between invocations, so concurrent callers are safe.
type Service struct {
	expenses    ExpenseReader
	settlements SettlementReader
	users       UserResolver
	readTimeout time.Duration
}

// NewService creates a balance service over the given collaborators.
func NewService(expenses ExpenseReader, settlements SettlementReader, users UserResolver, readTimeout time.Duration) *Service {
	return &Service{
		expenses:    expenses,
		settlements: settlements,
		users:       users,
		readTimeout: readTimeout,
	}
}

// snapshot fetches both record streams concurrently under one deadline.
// A failure on either stream fails the whole computation: a partial
// snapshot would silently violate conservation.
func (s *Service) snapshot(ctx context.Context, userID int64, groupID *int64) ([]ledger.ExpenseRecord, []ledger.SettlementRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	var (
		expenses    []ledger.ExpenseRecord
		settlements []ledger.SettlementRecord
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if groupID != nil {
			expenses, err = s.expenses.ListByGroup(ctx, *groupID)
		} else {
			expenses, err = s.expenses.ListByUser(ctx, userID)
		}
		if err != nil {
			return fmt.Errorf("fetch expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if groupID != nil {
			settlements, err = s.settlements.ListByGroup(ctx, *groupID)
		} else {
			settlements, err = s.settlements.ListByUser(ctx, userID)
		}
		if err != nil {
			return fmt.Errorf("fetch settlements: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return expenses, settlements, nil
}

// OptimizedResult is the outcome of ComputeOptimized.
type OptimizedResult struct {
	Balances              []Entry
	Summary               Summary
	Transfers             []simplify.Transfer
	TransferCount         int
	OriginalTransferCount int
}

// ComputeOptimized folds the scope's records into net balances, runs the
// simplification engine and projects the plan from the user's viewpoint.
// GroupID nil means "all groups the user belongs to".
func (s *Service) ComputeOptimized(ctx context.Context, userID int64, groupID *int64) (*OptimizedResult, error) {
	start := time.Now()
	if userID <= 0 {
		return nil, ErrInvalidUser
	}

	expenses, settlements, err := s.snapshot(ctx, userID, groupID)
	if err != nil {
		metrics.ComputationObserved("optimized", "error", time.Since(start))
		return nil, err
	}

	net := NetBalances(expenses, settlements)
	plan := simplify.Simplify(net)

	entries := ForUser(plan.Transfers, userID)
	s.decorate(ctx, entries)

	metrics.ComputationObserved("optimized", "success", time.Since(start))
	slog.Debug("computed optimized balances",
		"user_id", userID,
		"expenses", len(expenses),
		"settlements", len(settlements),
		"transfers", len(plan.Transfers),
	)

	return &OptimizedResult{
		Balances:              entries,
		Summary:               Summarize(entries),
		Transfers:             plan.Transfers,
		TransferCount:         len(plan.Transfers),
		OriginalTransferCount: plan.OriginalTransferCount,
	}, nil
}

// DirectResult is the outcome of ComputeDirect.
type DirectResult struct {
	Balances []Entry
	Summary  Summary
}

// ComputeDirect computes literal per-counterparty balances without
// netting through the scope. This is a deliberate second view of the same
// data: it can name a different counterparty than the optimized plan and
// the two modes are never merged.
func (s *Service) ComputeDirect(ctx context.Context, userID int64, groupID *int64) (*DirectResult, error) {
	start := time.Now()
	if userID <= 0 {
		return nil, ErrInvalidUser
	}

	expenses, settlements, err := s.snapshot(ctx, userID, groupID)
	if err != nil {
		metrics.ComputationObserved("direct", "error", time.Since(start))
		return nil, err
	}

	entries := directEntries(DirectBalances(userID, expenses, settlements))
	s.decorate(ctx, entries)

	metrics.ComputationObserved("direct", "success", time.Since(start))
	slog.Debug("computed direct balances",
		"user_id", userID,
		"expenses", len(expenses),
		"settlements", len(settlements),
		"counterparties", len(entries),
	)

	return &DirectResult{
		Balances: entries,
		Summary:  Summarize(entries),
	}, nil
}

// directEntries flattens a counterparty-keyed balance map into viewpoint
// entries, ordered by counterparty id then currency for stable output.
func directEntries(balances ledger.Balances) []Entry {
	var entries []Entry
	for counterpartyID, byCurrency := range balances {
		for currency, amount := range byCurrency {
			entry := Entry{
				CounterpartyID: counterpartyID,
				Currency:       currency,
			}
			if amount.IsPositive() {
				entry.Amount = amount.Round(2)
				entry.Direction = DirectionOwesYou
			} else {
				entry.Amount = amount.Neg().Round(2)
				entry.Direction = DirectionYouOwe
			}
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CounterpartyID != entries[j].CounterpartyID {
			return entries[i].CounterpartyID < entries[j].CounterpartyID
		}
		return entries[i].Currency < entries[j].Currency
	})
	return entries
}

// decorate fills in counterparty names. Resolution failures are logged and
// ignored: names are presentation only.
func (s *Service) decorate(ctx context.Context, entries []Entry) {
	if s.users == nil {
		return
	}
	names := make(map[int64]string)
	for i, e := range entries {
		name, ok := names[e.CounterpartyID]
		if !ok {
			user, err := s.users.GetByID(ctx, e.CounterpartyID)
			if err != nil || user == nil {
				slog.Warn("failed to resolve counterparty", "user_id", e.CounterpartyID, "error", err)
				names[e.CounterpartyID] = ""
				continue
			}
			name = user.Username
			names[e.CounterpartyID] = name
		}
		entries[i].CounterpartyName = name
	}
}
