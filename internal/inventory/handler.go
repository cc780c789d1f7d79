package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/sahel-erp/sahel-erp/internal/platform/httpx"
	"github.com/sahel-erp/sahel-erp/internal/shared"
)

// Handler manages inventory session endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/inventories", h.handleList)
	r.Post("/inventories", h.handleCreate)
	r.Get("/inventories/{id}", h.handleGet)
	r.Get("/inventories/{id}/items", h.handleItems)
	r.Post("/inventories/{id}/counts", h.handleSaveCounts)
	r.Post("/inventories/{id}/finalize", h.handleFinalize)
	r.Post("/inventories/{id}/cancel", h.handleCancel)
}

type createSessionRequest struct {
	EnterpriseID     int64   `json:"enterprise_id" validate:"required"`
	PosID            *int64  `json:"pos_id"`
	WarehouseID      int64   `json:"warehouse_id" validate:"required"`
	Type             string  `json:"type" validate:"required"`
	Name             string  `json:"name" validate:"required,max=255"`
	ScheduledDate    string  `json:"scheduled_date" validate:"omitempty,datetime=2006-01-02"`
	IncludeZeroStock bool    `json:"include_zero_stock"`
	ProductIDs       []int64 `json:"product_ids"`
}

type countRequest struct {
	ProductID    int64           `json:"product_id" validate:"required"`
	CountedStock decimal.Decimal `json:"counted_stock"`
	Notes        string          `json:"notes" validate:"omitempty,max=500"`
}

type saveCountsRequest struct {
	Counts []countRequest `json:"counts" validate:"required,min=1,dive"`
}

type sessionResponse struct {
	ID                 int64           `json:"id"`
	EnterpriseID       int64           `json:"enterprise_id"`
	PosID              *int64          `json:"pos_id,omitempty"`
	Reference          string          `json:"reference"`
	Name               string          `json:"name"`
	WarehouseID        int64           `json:"warehouse_id"`
	Type               string          `json:"type"`
	Status             string          `json:"status"`
	TotalItems         int             `json:"total_items"`
	CountedItems       int             `json:"counted_items"`
	TotalDiscrepancies int             `json:"total_discrepancies"`
	TotalVarianceValue decimal.Decimal `json:"total_variance_value"`
}

func toSessionResponse(s Session) sessionResponse {
	return sessionResponse{
		ID:                 s.ID,
		EnterpriseID:       s.EnterpriseID,
		PosID:              s.PosID,
		Reference:          s.Reference,
		Name:               s.Name,
		WarehouseID:        s.WarehouseID,
		Type:               string(s.Type),
		Status:             string(s.Status),
		TotalItems:         s.TotalItems,
		CountedItems:       s.CountedItems,
		TotalDiscrepancies: s.TotalDiscrepancies,
		TotalVarianceValue: s.TotalVarianceValue,
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, err.Error())
		return
	}
	sessionType, err := ParseType(req.Type)
	if err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, err.Error())
		return
	}
	var scheduled time.Time
	if req.ScheduledDate != "" {
		scheduled, _ = time.Parse("2006-01-02", req.ScheduledDate)
	}
	session, err := h.service.Create(r.Context(), CreateInput{
		EnterpriseID:     req.EnterpriseID,
		PosID:            req.PosID,
		WarehouseID:      req.WarehouseID,
		Type:             sessionType,
		Name:             req.Name,
		ScheduledDate:    scheduled,
		IncludeZeroStock: req.IncludeZeroStock,
		ProductIDs:       req.ProductIDs,
		ActorID:          shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toSessionResponse(session))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid session id")
		return
	}
	session, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	enterpriseID, _ := strconv.ParseInt(r.URL.Query().Get("enterprise_id"), 10, 64)
	if enterpriseID == 0 {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "enterprise_id is required")
		return
	}
	var status *Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := ParseStatus(raw)
		if err != nil {
			httpx.RespondType(w, httpx.TypeInvalidArgument, err.Error())
			return
		}
		status = &parsed
	}
	sessions, err := h.service.List(r.Context(), enterpriseID, status)
	if err != nil {
		h.respondError(w, err)
		return
	}
	responses := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		responses = append(responses, toSessionResponse(s))
	}
	httpx.JSON(w, http.StatusOK, responses)
}

func (h *Handler) handleItems(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid session id")
		return
	}
	items, err := h.service.Items(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleSaveCounts(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid session id")
		return
	}
	var req saveCountsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, err.Error())
		return
	}
	counts := make([]CountInput, 0, len(req.Counts))
	for _, c := range req.Counts {
		counts = append(counts, CountInput{ProductID: c.ProductID, CountedStock: c.CountedStock, Notes: c.Notes})
	}
	session, err := h.service.SaveCounts(r.Context(), id, counts)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid session id")
		return
	}
	result, err := h.service.Finalize(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"journal_id": result.JournalID,
		"warning":    result.Warning,
	})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid session id")
		return
	}
	if err := h.service.Cancel(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrItemNotFound), errors.Is(err, ErrWarehouseNotFound):
		httpx.RespondType(w, httpx.TypeNotFound, err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.RespondType(w, httpx.TypeInvalidState, err.Error())
	case errors.Is(err, ErrDuplicateReference):
		httpx.RespondType(w, httpx.TypeConflict, err.Error())
	case errors.Is(err, ErrEmptyProductList), errors.Is(err, ErrNegativeCount), errors.Is(err, ErrNameRequired):
		httpx.RespondType(w, httpx.TypeInvalidArgument, err.Error())
	default:
		h.logger.Error("inventory request failed", slog.Any("error", err))
		httpx.RespondType(w, httpx.TypeStorage, "")
	}
}

func sessionID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
