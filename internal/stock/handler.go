package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/sahel-erp/sahel-erp/internal/platform/httpx"
	"github.com/sahel-erp/sahel-erp/internal/shared"
)

// Handler manages stock ledger endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock", h.handleOverview)
	r.Get("/stock/products/{id}", h.handleProductDetail)
	r.Get("/stock/movements", h.handleMovements)
	r.Get("/stock/alerts", h.handleAlerts)
	r.Post("/stock/adjust", h.handleAdjust)
	r.Post("/stock/receive", h.handleReceive)
	r.Post("/stock/issue", h.handleIssue)
	r.Post("/stock/transfer", h.handleTransfer)
}

type adjustRequest struct {
	ProductID   int64           `json:"product_id" validate:"required"`
	WarehouseID int64           `json:"warehouse_id" validate:"required"`
	NewQuantity decimal.Decimal `json:"new_quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Reference   string          `json:"reference" validate:"omitempty,max=64"`
}

type receiveRequest struct {
	ProductID   int64           `json:"product_id" validate:"required"`
	WarehouseID int64           `json:"warehouse_id" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Reference   string          `json:"reference" validate:"omitempty,max=64"`
}

type issueRequest struct {
	ProductID   int64           `json:"product_id" validate:"required"`
	WarehouseID int64           `json:"warehouse_id" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	Reference   string          `json:"reference" validate:"omitempty,max=64"`
}

type transferRequest struct {
	ProductID     int64           `json:"product_id" validate:"required"`
	SourceID      int64           `json:"source_warehouse_id" validate:"required"`
	DestinationID int64           `json:"destination_warehouse_id" validate:"required"`
	Quantity      decimal.Decimal `json:"quantity"`
	Reference     string          `json:"reference" validate:"omitempty,max=64"`
}

type rowResponse struct {
	ProductID   int64           `json:"product_id"`
	WarehouseID int64           `json:"warehouse_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Reserved    decimal.Decimal `json:"reserved"`
	Available   decimal.Decimal `json:"available"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	MinLevel    decimal.Decimal `json:"min_level"`
	Status      string          `json:"status"`
}

func toRowResponse(row StockRow) rowResponse {
	return rowResponse{
		ProductID:   row.ProductID,
		WarehouseID: row.WarehouseID,
		Quantity:    row.Quantity,
		Reserved:    row.Reserved,
		Available:   row.Available(),
		UnitCost:    row.UnitCost,
		TotalCost:   row.TotalCost,
		MinLevel:    row.MinLevel,
		Status:      string(row.Status()),
	}
}

type movementResponse struct {
	ID                     int64           `json:"id"`
	Kind                   string          `json:"kind"`
	ProductID              int64           `json:"product_id"`
	WarehouseID            *int64          `json:"warehouse_id,omitempty"`
	DestinationWarehouseID *int64          `json:"destination_warehouse_id,omitempty"`
	Quantity               decimal.Decimal `json:"quantity"`
	UnitCost               decimal.Decimal `json:"unit_cost"`
	TotalCost              decimal.Decimal `json:"total_cost"`
	QuantityBefore         decimal.Decimal `json:"quantity_before"`
	QuantityAfter          decimal.Decimal `json:"quantity_after"`
	Reference              string          `json:"reference"`
	At                     string          `json:"at"`
}

func toMovementResponse(m Movement) movementResponse {
	return movementResponse{
		ID:                     m.ID,
		Kind:                   string(m.Kind),
		ProductID:              m.ProductID,
		WarehouseID:            m.WarehouseID,
		DestinationWarehouseID: m.DestWarehouseID,
		Quantity:               m.Quantity,
		UnitCost:               m.UnitCost,
		TotalCost:              m.TotalCost,
		QuantityBefore:         m.QuantityBefore,
		QuantityAfter:          m.QuantityAfter,
		Reference:              m.Reference,
		At:                     m.OccurredAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.Adjust(r.Context(), AdjustInput{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		NewQuantity: req.NewQuantity,
		UnitCost:    req.UnitCost,
		Reference:   req.Reference,
		ActorID:     shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"row":      toRowResponse(result.Row),
		"movement": toMovementResponse(result.Movement),
	})
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	var req receiveRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.Receive(r.Context(), ReceiveInput{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		Quantity:    req.Quantity,
		UnitCost:    req.UnitCost,
		Reference:   req.Reference,
		ActorID:     shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"row":      toRowResponse(result.Row),
		"movement": toMovementResponse(result.Movement),
	})
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.Issue(r.Context(), IssueInput{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		Quantity:    req.Quantity,
		Reference:   req.Reference,
		ActorID:     shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"row":      toRowResponse(result.Row),
		"movement": toMovementResponse(result.Movement),
	})
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.Transfer(r.Context(), TransferInput{
		ProductID:     req.ProductID,
		SourceID:      req.SourceID,
		DestinationID: req.DestinationID,
		Quantity:      req.Quantity,
		Reference:     req.Reference,
		ActorID:       shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"source":      toRowResponse(result.Source),
		"destination": toRowResponse(result.Destination),
		"outgoing":    toMovementResponse(result.Outgoing),
		"incoming":    toMovementResponse(result.Incoming),
	})
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Overview(r.Context(), queryID(r, "warehouse_id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) handleProductDetail(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid product id")
		return
	}
	detail, err := h.service.ProductDetail(r.Context(), productID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.Movements(r.Context(), MovementFilter{
		ProductID:   queryID(r, "product_id"),
		WarehouseID: queryID(r, "warehouse_id"),
		Limit:       limit,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	responses := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		responses = append(responses, toMovementResponse(m))
	}
	httpx.JSON(w, http.StatusOK, responses)
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.LowStockAlerts(r.Context(), queryID(r, "warehouse_id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, alerts)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		httpx.RespondType(w, httpx.TypeInsufficientStock, err.Error())
	case errors.Is(err, ErrStockRowNotFound), errors.Is(err, ErrWarehouseNotFound):
		httpx.RespondType(w, httpx.TypeNotFound, err.Error())
	case errors.Is(err, ErrNegativeQuantity), errors.Is(err, ErrQuantityNotPositive),
		errors.Is(err, ErrInvalidUnitCost), errors.Is(err, ErrSameWarehouse), errors.Is(err, ErrProductRequired):
		httpx.RespondType(w, httpx.TypeInvalidArgument, err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.RespondType(w, httpx.TypeConflict, err.Error())
	default:
		h.logger.Error("stock request failed", slog.Any("error", err))
		httpx.RespondType(w, httpx.TypeStorage, "")
	}
}

func queryID(r *http.Request, name string) *int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}
