package settlement

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus tracks one group's share through the write sequence.
type EntryStatus string

const (
	EntryStatusPlanned EntryStatus = "PLANNED"
	EntryStatusApplied EntryStatus = "APPLIED"
	EntryStatusFailed  EntryStatus = "FAILED"
)

// Intent is the durable plan for a multi-group settlement. It is persisted
// before any settlement record is written so a retry with the same request
// id can skip groups that are already applied.
type Intent struct {
	ID          int64
	RequestID   string
	FromUserID  int64
	ToUserID    int64
	TotalAmount decimal.Decimal
	Currency    string
	Entries     []IntentEntry
	CreatedAt   time.Time
}

// IntentEntry is one group's planned share of the lump sum.
type IntentEntry struct {
	GroupID int64
	Amount  decimal.Decimal
	Applied bool
}

// GroupBreakdown reports how one group's debt contributed to the
// allocation and whether its settlement write went through.
type GroupBreakdown struct {
	GroupID            int64           `json:"group_id"`
	GroupName          string          `json:"group_name"`
	OriginalDebt       decimal.Decimal `json:"original_debt"`
	ProportionalAmount decimal.Decimal `json:"proportional_amount"`
	Fraction           decimal.Decimal `json:"fraction"`
	Status             EntryStatus     `json:"status"`
	Error              string          `json:"error,omitempty"`
}

// IdempotencyKey builds the natural key under which one group's settlement
// write is retried. Two writes with the same key are the same settlement.
func IdempotencyKey(fromUserID, toUserID, groupID int64, requestID string) string {
	return fmt.Sprintf("%d:%d:%d:%s", fromUserID, toUserID, groupID, requestID)
}
