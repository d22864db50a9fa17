package settlement

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"splitledger/pkg/middleware"
	"splitledger/pkg/response"
)

// Handler handles HTTP requests for settlement operations
type Handler struct {
	service *Service
}

// NewHandler creates a new settlement handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for settlement endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/multi-group", h.CreateMultiGroup)
	r.Get("/", h.List)

	return r
}

// CreateMultiGroup handles POST /settlements/multi-group
func (h *Handler) CreateMultiGroup(w http.ResponseWriter, r *http.Request) {
	fromUserID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Caller identity required")
		return
	}

	var req CreateMultiGroupSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	result, err := h.service.CreateMultiGroup(r.Context(), CreateMultiGroupRequest{
		FromUserID:  fromUserID,
		ToUserID:    req.ToUserID,
		TotalAmount: req.TotalAmount,
		Currency:    req.Currency,
		Method:      req.Method,
		Notes:       req.Notes,
		RequestID:   req.RequestID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount),
			errors.Is(err, ErrInvalidCurrency),
			errors.Is(err, ErrCannotSettleSelf):
			response.BadRequest(w, err.Error())
		case errors.Is(err, ErrNoSharedGroups),
			errors.Is(err, ErrNoDebtToSettle):
			response.UnprocessableEntity(w, err.Error())
		case errors.Is(err, ErrPartialSettlement):
			// Partial success: return the breakdown so the caller can
			// retry only the failed groups with the same request id.
			response.JSON(w, http.StatusBadGateway, result.ToResponse())
		default:
			response.BadGateway(w, "Failed to create settlement")
		}
		return
	}

	response.JSON(w, http.StatusCreated, result.ToResponse())
}

// List handles GET /settlements
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Caller identity required")
		return
	}

	settlements, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		response.InternalError(w, "Failed to list settlements")
		return
	}

	response.JSON(w, http.StatusOK, settlements)
}
