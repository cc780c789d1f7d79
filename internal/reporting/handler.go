package reporting

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sahel-erp/sahel-erp/internal/platform/httpx"
	"github.com/sahel-erp/sahel-erp/internal/shared"
)

// Handler serves the read-model reports.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/reports/stock", h.handleStockByWarehouse)
	r.Get("/reports/warehouses/{id}/stock", h.handleWarehouseStock)
	r.Get("/reports/products/{id}/distribution", h.handleProductDistribution)
	r.Get("/reports/movements", h.handleMovementHistory)
	r.Get("/reports/inventories/{id}/progress", h.handleInventoryProgress)
	r.Get("/reports/inventories/open", h.handleOpenInventories)
}

func (h *Handler) handleStockByWarehouse(w http.ResponseWriter, r *http.Request) {
	enterpriseID, _ := strconv.ParseInt(r.URL.Query().Get("enterprise_id"), 10, 64)
	if enterpriseID == 0 {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "enterprise_id is required")
		return
	}
	report, err := h.service.StockByWarehouse(r.Context(), enterpriseID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleWarehouseStock(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid warehouse id")
		return
	}
	report, err := h.service.WarehouseStock(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleProductDistribution(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid product id")
		return
	}
	report, err := h.service.ProductDistribution(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleMovementHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := MovementHistoryFilter{
		ProductID:   queryID(q.Get("product_id")),
		WarehouseID: queryID(q.Get("warehouse_id")),
	}
	if kind := q.Get("kind"); kind != "" {
		filter.Kind = &kind
	}
	if from := queryTime(q.Get("from")); from != nil {
		filter.From = from
	}
	if to := queryTime(q.Get("to")); to != nil {
		filter.To = to
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	page, err := h.service.MovementHistory(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) handleInventoryProgress(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid session id")
		return
	}
	report, err := h.service.InventoryProgress(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleOpenInventories(w http.ResponseWriter, r *http.Request) {
	enterpriseID, _ := strconv.ParseInt(r.URL.Query().Get("enterprise_id"), 10, 64)
	if enterpriseID == 0 {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "enterprise_id is required")
		return
	}
	reports, err := h.service.OpenInventories(r.Context(), enterpriseID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reports)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.RespondType(w, httpx.TypeNotFound, err.Error())
		return
	}
	h.logger.Error("report request failed", slog.Any("error", err))
	httpx.RespondType(w, httpx.TypeStorage, "")
}

func queryID(raw string) *int64 {
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

func queryTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	return &t
}
