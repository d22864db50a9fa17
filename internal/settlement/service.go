package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"splitledger/internal/balance"
	"splitledger/internal/ledger"
	"splitledger/pkg/metrics"
)

// Common errors
var (
	ErrInvalidAmount     = errors.New("settlement amount must be positive")
	ErrInvalidCurrency   = errors.New("currency code is required")
	ErrCannotSettleSelf  = errors.New("cannot create settlement with yourself")
	ErrNoSharedGroups    = errors.New("users do not share any group")
	ErrNoDebtToSettle    = errors.New("no outstanding debt to settle in this currency")
	ErrPartialSettlement = errors.New("some group settlements failed; retry with the same request id")
)

// GroupReader looks up the groups two users share.
type GroupReader interface {
	SharedGroups(ctx context.Context, userA, userB int64) ([]ledger.Group, error)
}

// ExpenseReader supplies a group's expense stream.
type ExpenseReader interface {
	ListByGroup(ctx context.Context, groupID int64) ([]ledger.ExpenseRecord, error)
}

// Store is the ledger writer plus the settlement read stream. Create must
// be idempotent on the record's IdempotencyKey: re-creating an existing key
// returns the already persisted record.
type Store interface {
	ListByUser(ctx context.Context, userID int64) ([]ledger.SettlementRecord, error)
	ListByGroup(ctx context.Context, groupID int64) ([]ledger.SettlementRecord, error)
	CreateIntent(ctx context.Context, intent *Intent) error
	GetIntent(ctx context.Context, requestID string) (*Intent, error)
	Create(ctx context.Context, record *ledger.SettlementRecord) (*ledger.SettlementRecord, error)
	MarkApplied(ctx context.Context, requestID string, groupID int64) error
}

// Service allocates lump-sum payments across shared groups.
type Service struct {
	groups      GroupReader
	expenses    ExpenseReader
	store       Store
	readTimeout time.Duration

	// Lump-sum creation is serialized per unordered user pair so two
	// concurrent settlements cannot double-spend one debt snapshot. Entries
	// are dropped once the last holder releases, so the table does not grow
	// with every pair ever settled.
	mu        sync.Mutex
	pairLocks map[[2]int64]*pairLock
}

// NewService creates a settlement service over the given collaborators.
func NewService(groups GroupReader, expenses ExpenseReader, store Store, readTimeout time.Duration) *Service {
	return &Service{
		groups:      groups,
		expenses:    expenses,
		store:       store,
		readTimeout: readTimeout,
		pairLocks:   make(map[[2]int64]*pairLock),
	}
}

// pairLock is a keyed mutex entry with the count of holders and waiters.
type pairLock struct {
	sync.Mutex
	refs int
}

// lockPair blocks until the unordered pair's lock is held and returns the
// release. The last release deletes the map entry.
func (s *Service) lockPair(a, b int64) func() {
	if a > b {
		a, b = b, a
	}
	key := [2]int64{a, b}

	s.mu.Lock()
	lock, ok := s.pairLocks[key]
	if !ok {
		lock = &pairLock{}
		s.pairLocks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.Lock()
	return func() {
		lock.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.pairLocks, key)
		}
		s.mu.Unlock()
	}
}

// CreateMultiGroupRequest is the input to CreateMultiGroup.
type CreateMultiGroupRequest struct {
	FromUserID  int64
	ToUserID    int64
	TotalAmount decimal.Decimal
	Currency    string
	Method      string
	Notes       string

	// RequestID makes retries idempotent. Empty means a fresh attempt.
	RequestID string
}

// Result is the outcome of a multi-group settlement. RequestID is what a
// caller must send again to retry failed groups without reallocating.
type Result struct {
	RequestID     string
	Settlements   []ledger.SettlementRecord
	TotalDebt     decimal.Decimal
	SettledAmount decimal.Decimal
	Breakdown     []GroupBreakdown
}

// groupDebt pairs a shared group with the debt the payer owes in it.
type groupDebt struct {
	group       ledger.Group
	expenses    []ledger.ExpenseRecord
	settlements []ledger.SettlementRecord
	debt        decimal.Decimal
}

// CreateMultiGroup decomposes one lump payment from FromUserID to ToUserID
// into one settlement record per shared group, proportional to the debt
// owed in each group. All reads complete before the first write. The
// per-group writes are not transactional: each is independently idempotent
// under (from, to, group, request id), and the returned breakdown names
// exactly which groups succeeded so a retry can target the failures.
//
// A retry with a known RequestID replays the stored intent: the planned
// per-group amounts are written as persisted on the first attempt, never
// reallocated against a ledger the earlier writes already mutated.
func (s *Service) CreateMultiGroup(ctx context.Context, req CreateMultiGroupRequest) (*Result, error) {
	if !req.TotalAmount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if req.Currency == "" {
		return nil, ErrInvalidCurrency
	}
	if req.FromUserID == req.ToUserID {
		return nil, ErrCannotSettleSelf
	}

	release := s.lockPair(req.FromUserID, req.ToUserID)
	defer release()

	shared, err := s.groups.SharedGroups(ctx, req.FromUserID, req.ToUserID)
	if err != nil {
		return nil, fmt.Errorf("fetch shared groups: %w", err)
	}
	if len(shared) == 0 {
		return nil, ErrNoSharedGroups
	}

	debts, totalDebt, err := s.collectDebts(ctx, req, shared)
	if err != nil {
		return nil, err
	}

	if req.RequestID != "" {
		existing, err := s.store.GetIntent(ctx, req.RequestID)
		if err != nil {
			return nil, fmt.Errorf("load settlement intent: %w", err)
		}
		if existing != nil {
			return s.applyExisting(ctx, req, existing, shared, debts)
		}
	}

	if !totalDebt.GreaterThan(ledger.Epsilon) {
		return nil, ErrNoDebtToSettle
	}

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	shares := allocate(debts, totalDebt, req.TotalAmount)

	intent := &Intent{
		RequestID:   req.RequestID,
		FromUserID:  req.FromUserID,
		ToUserID:    req.ToUserID,
		TotalAmount: req.TotalAmount,
		Currency:    req.Currency,
	}
	for i, d := range debts {
		intent.Entries = append(intent.Entries, IntentEntry{GroupID: d.group.ID, Amount: shares[i]})
	}
	if err := s.store.CreateIntent(ctx, intent); err != nil {
		return nil, fmt.Errorf("persist settlement intent: %w", err)
	}

	return s.applyIntent(ctx, req, debts, shares, totalDebt)
}

// applyExisting replays a previously stored intent. Each entry's planned
// amount is written as-is; groups whose settlement already exists resolve
// to the original record through the idempotency key, so a retry settles
// exactly the amounts planned on the first attempt and nothing more.
func (s *Service) applyExisting(ctx context.Context, req CreateMultiGroupRequest, intent *Intent, shared []ledger.Group, debts []groupDebt) (*Result, error) {
	names := make(map[int64]string, len(shared))
	for _, g := range shared {
		names[g.ID] = g.Name
	}
	remaining := make(map[int64]decimal.Decimal, len(debts))
	for _, d := range debts {
		remaining[d.group.ID] = d.debt
	}

	planned := make([]groupDebt, 0, len(intent.Entries))
	shares := make([]decimal.Decimal, 0, len(intent.Entries))
	totalDebt := decimal.Zero
	for _, entry := range intent.Entries {
		planned = append(planned, groupDebt{
			group: ledger.Group{ID: entry.GroupID, Name: names[entry.GroupID]},
			debt:  remaining[entry.GroupID],
		})
		shares = append(shares, entry.Amount)
		totalDebt = totalDebt.Add(remaining[entry.GroupID])
	}

	slog.Info("replaying stored settlement intent",
		"request_id", req.RequestID,
		"groups", len(planned),
	)
	return s.applyIntent(ctx, req, planned, shares, totalDebt)
}

// collectDebts fetches every shared group's records under one deadline and
// computes what the payer owes the receiver in each, via the direct
// balance replay. Groups where nothing is owed (or the direction is
// reversed) are dropped.
func (s *Service) collectDebts(ctx context.Context, req CreateMultiGroupRequest, shared []ledger.Group) ([]groupDebt, decimal.Decimal, error) {
	readCtx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	all := make([]groupDebt, len(shared))
	g, readCtx := errgroup.WithContext(readCtx)
	for i, group := range shared {
		i, group := i, group
		g.Go(func() error {
			expenses, err := s.expenses.ListByGroup(readCtx, group.ID)
			if err != nil {
				return fmt.Errorf("fetch expenses for group %d: %w", group.ID, err)
			}
			settlements, err := s.store.ListByGroup(readCtx, group.ID)
			if err != nil {
				return fmt.Errorf("fetch settlements for group %d: %w", group.ID, err)
			}
			all[i] = groupDebt{group: group, expenses: expenses, settlements: settlements}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, decimal.Zero, err
	}

	var debts []groupDebt
	totalDebt := decimal.Zero
	for _, gd := range all {
		gd.debt = balance.OwedBetween(req.FromUserID, req.ToUserID, req.Currency, gd.expenses, gd.settlements)
		if gd.debt.LessThanOrEqual(ledger.Epsilon) {
			continue
		}
		debts = append(debts, gd)
		totalDebt = totalDebt.Add(gd.debt)
	}
	sort.Slice(debts, func(i, j int) bool { return debts[i].group.ID < debts[j].group.ID })
	return debts, totalDebt, nil
}

// allocate splits the lump amount proportionally to each group's debt.
// Every share is rounded to two decimals and the accumulated rounding
// difference is folded into the largest-debt group, so the shares always
// sum to the lump amount exactly.
func allocate(debts []groupDebt, totalDebt, totalAmount decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(debts))
	distributed := decimal.Zero
	largest := 0
	for i, d := range debts {
		shares[i] = totalAmount.Mul(d.debt).Div(totalDebt).Round(2)
		distributed = distributed.Add(shares[i])
		if d.debt.GreaterThan(debts[largest].debt) {
			largest = i
		}
	}
	if diff := totalAmount.Sub(distributed); !diff.IsZero() {
		shares[largest] = shares[largest].Add(diff)
	}
	return shares
}

// applyIntent writes one settlement record per group. A failed write does
// not stop the remaining groups; its breakdown entry carries the error.
func (s *Service) applyIntent(ctx context.Context, req CreateMultiGroupRequest, debts []groupDebt, shares []decimal.Decimal, totalDebt decimal.Decimal) (*Result, error) {
	result := &Result{
		RequestID:     req.RequestID,
		TotalDebt:     totalDebt.Round(2),
		SettledAmount: decimal.Zero,
	}

	var firstErr error
	failures := 0
	for i, d := range debts {
		groupID := d.group.ID

		// On an intent replay the remaining debt can be zero.
		fraction := decimal.Zero
		if totalDebt.GreaterThan(ledger.Epsilon) {
			fraction = d.debt.Div(totalDebt).Round(4)
		}
		breakdown := GroupBreakdown{
			GroupID:            groupID,
			GroupName:          d.group.Name,
			OriginalDebt:       d.debt.Round(2),
			ProportionalAmount: shares[i],
			Fraction:           fraction,
		}

		record := &ledger.SettlementRecord{
			GroupID:        &groupID,
			FromUserID:     req.FromUserID,
			ToUserID:       req.ToUserID,
			Amount:         shares[i],
			Currency:       req.Currency,
			Method:         req.Method,
			Notes:          req.Notes,
			IdempotencyKey: IdempotencyKey(req.FromUserID, req.ToUserID, groupID, req.RequestID),
		}

		created, err := s.store.Create(ctx, record)
		if err != nil {
			slog.Error("group settlement write failed",
				"group_id", groupID,
				"request_id", req.RequestID,
				"error", err,
			)
			metrics.SettlementWriteObserved("error")
			breakdown.Status = EntryStatusFailed
			breakdown.Error = err.Error()
			failures++
			if firstErr == nil {
				firstErr = err
			}
			result.Breakdown = append(result.Breakdown, breakdown)
			continue
		}

		if err := s.store.MarkApplied(ctx, req.RequestID, groupID); err != nil {
			// The settlement itself is persisted; a stale intent entry
			// only costs an extra idempotent retry.
			slog.Warn("failed to mark intent entry applied",
				"group_id", groupID,
				"request_id", req.RequestID,
				"error", err,
			)
		}

		metrics.SettlementWriteObserved("success")
		breakdown.Status = EntryStatusApplied
		result.Breakdown = append(result.Breakdown, breakdown)
		result.Settlements = append(result.Settlements, *created)
		result.SettledAmount = result.SettledAmount.Add(created.Amount)
	}

	if failures == len(debts) {
		return nil, fmt.Errorf("all group settlements failed: %w", firstErr)
	}
	if failures > 0 {
		return result, ErrPartialSettlement
	}

	slog.Info("multi-group settlement created",
		"from_user_id", req.FromUserID,
		"to_user_id", req.ToUserID,
		"request_id", req.RequestID,
		"groups", len(debts),
		"amount", req.TotalAmount,
		"currency", req.Currency,
	)
	return result, nil
}

// ListByUser returns the settlements in a user's scope, newest first.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]ledger.SettlementRecord, error) {
	return s.store.ListByUser(ctx, userID)
}
