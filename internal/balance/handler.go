package balance

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"splitledger/pkg/middleware"
	"splitledger/pkg/response"
)

// Handler handles HTTP requests for balance computations
type Handler struct {
	service *Service
}

// NewHandler creates a new balance handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for balance endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.GetOptimized)
	r.Get("/direct", h.GetDirect)

	return r
}

// groupIDParam parses the optional group_id query parameter.
func groupIDParam(r *http.Request) (*int64, bool) {
	raw := r.URL.Query().Get("group_id")
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, false
	}
	return &id, true
}

// GetOptimized handles GET /balances
func (h *Handler) GetOptimized(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Caller identity required")
		return
	}

	groupID, ok := groupIDParam(r)
	if !ok {
		response.BadRequest(w, "Invalid group_id")
		return
	}

	result, err := h.service.ComputeOptimized(r.Context(), userID, groupID)
	if err != nil {
		if errors.Is(err, ErrInvalidUser) {
			response.BadRequest(w, err.Error())
			return
		}
		response.BadGateway(w, "Failed to fetch ledger records")
		return
	}

	response.JSON(w, http.StatusOK, result.ToResponse())
}

// GetDirect handles GET /balances/direct
func (h *Handler) GetDirect(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Caller identity required")
		return
	}

	groupID, ok := groupIDParam(r)
	if !ok {
		response.BadRequest(w, "Invalid group_id")
		return
	}

	result, err := h.service.ComputeDirect(r.Context(), userID, groupID)
	if err != nil {
		if errors.Is(err, ErrInvalidUser) {
			response.BadRequest(w, err.Error())
			return
		}
		response.BadGateway(w, "Failed to fetch ledger records")
		return
	}

	response.JSON(w, http.StatusOK, result.ToResponse())
}
