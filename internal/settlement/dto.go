package settlement

import (
	"github.com/shopspring/decimal"

	"splitledger/internal/ledger"
)

// CreateMultiGroupSettlementRequest represents the request to settle debt
// across every group two users share with a single payment.
type CreateMultiGroupSettlementRequest struct {
	ToUserID    int64           `json:"to_user_id" validate:"required"`
	TotalAmount decimal.Decimal `json:"total_amount" validate:"required"`
	Currency    string          `json:"currency" validate:"required"`
	Method      string          `json:"method,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	RequestID   string          `json:"request_id,omitempty"` // reuse to retry a partial settlement
}

// MultiGroupSettlementResponse represents the outcome of a multi-group
// settlement, including the per-group breakdown.
type MultiGroupSettlementResponse struct {
	RequestID      string                    `json:"request_id"` // send again to retry failed groups
	Settlements    []ledger.SettlementRecord `json:"settlements"`
	TotalDebt      decimal.Decimal           `json:"total_debt"`
	SettledAmount  decimal.Decimal           `json:"settled_amount"`
	GroupBreakdown []GroupBreakdown          `json:"group_breakdown"`
}

// ToResponse converts a Result to its response DTO
func (r *Result) ToResponse() *MultiGroupSettlementResponse {
	return &MultiGroupSettlementResponse{
		RequestID:      r.RequestID,
		Settlements:    r.Settlements,
		TotalDebt:      r.TotalDebt,
		SettledAmount:  r.SettledAmount,
		GroupBreakdown: r.Breakdown,
	}
}
