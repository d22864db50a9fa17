package balance

import "splitledger/internal/balance/simplify"

// OptimizedBalancesResponse is the payload for GET /balances
type OptimizedBalancesResponse struct {
	Balances              []Entry             `json:"balances"`
	Summary               Summary             `json:"summary"`
	Transfers             []simplify.Transfer `json:"transfers"`
	TransferCount         int                 `json:"transfer_count"`
	OriginalTransferCount int                 `json:"original_transfer_count"`
}

// DirectBalancesResponse is the payload for GET /balances/direct
type DirectBalancesResponse struct {
	Balances []Entry `json:"balances"`
	Summary  Summary `json:"summary"`
}

// ToResponse converts an OptimizedResult to its response DTO
func (r *OptimizedResult) ToResponse() *OptimizedBalancesResponse {
	return &OptimizedBalancesResponse{
		Balances:              r.Balances,
		Summary:               r.Summary,
		Transfers:             r.Transfers,
		TransferCount:         r.TransferCount,
		OriginalTransferCount: r.OriginalTransferCount,
	}
}

// ToResponse converts a DirectResult to its response DTO
func (r *DirectResult) ToResponse() *DirectBalancesResponse {
	return &DirectBalancesResponse{
		Balances: r.Balances,
		Summary:  r.Summary,
	}
}
