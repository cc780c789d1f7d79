package warehouse

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sahel-erp/sahel-erp/internal/platform/httpx"
	"github.com/sahel-erp/sahel-erp/internal/shared"
)

// Handler manages warehouse endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers warehouse routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/warehouses", h.handleList)
	r.Post("/warehouses", h.handleCreate)
	r.Get("/warehouses/{id}", h.handleGet)
	r.Put("/warehouses/{id}", h.handleUpdate)
	r.Post("/warehouses/{id}/default", h.handleSetDefault)
	r.Delete("/warehouses/{id}", h.handleDelete)
}

type createRequest struct {
	EnterpriseID int64  `json:"enterprise_id" validate:"required"`
	Code         string `json:"code" validate:"required,max=32"`
	Name         string `json:"name" validate:"required,max=255"`
	Type         string `json:"type" validate:"omitempty,max=32"`
	IsDefault    bool   `json:"is_default"`
}

type updateRequest struct {
	Name      string `json:"name" validate:"required,max=255"`
	Type      string `json:"type" validate:"omitempty,max=32"`
	IsActive  bool   `json:"is_active"`
	IsDefault bool   `json:"is_default"`
}

type warehouseResponse struct {
	ID           int64  `json:"id"`
	EnterpriseID int64  `json:"enterprise_id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	IsDefault    bool   `json:"is_default"`
	IsActive     bool   `json:"is_active"`
}

func toResponse(w Warehouse) warehouseResponse {
	return warehouseResponse{
		ID:           w.ID,
		EnterpriseID: w.EnterpriseID,
		Code:         w.Code,
		Name:         w.Name,
		Type:         w.Type,
		IsDefault:    w.IsDefault,
		IsActive:     w.IsActive,
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, err.Error())
		return
	}
	created, err := h.service.Create(r.Context(), CreateInput{
		EnterpriseID: req.EnterpriseID,
		Code:         req.Code,
		Name:         req.Name,
		Type:         req.Type,
		IsDefault:    req.IsDefault,
		ActorID:      shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid warehouse id")
		return
	}
	found, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(found))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	enterpriseID, _ := strconv.ParseInt(r.URL.Query().Get("enterprise_id"), 10, 64)
	if enterpriseID == 0 {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "enterprise_id is required")
		return
	}
	list, err := h.service.List(r.Context(), enterpriseID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	responses := make([]warehouseResponse, 0, len(list))
	for _, wh := range list {
		responses = append(responses, toResponse(wh))
	}
	httpx.JSON(w, http.StatusOK, responses)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid warehouse id")
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, err.Error())
		return
	}
	updated, err := h.service.Update(r.Context(), UpdateInput{
		ID:        id,
		Name:      req.Name,
		Type:      req.Type,
		IsActive:  req.IsActive,
		IsDefault: req.IsDefault,
		ActorID:   shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) handleSetDefault(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid warehouse id")
		return
	}
	if err := h.service.SetDefault(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid warehouse id")
		return
	}
	if err := h.service.Delete(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondType(w, httpx.TypeNotFound, err.Error())
	case errors.Is(err, ErrDuplicateCode):
		httpx.RespondType(w, httpx.TypeConflict, err.Error())
	case errors.Is(err, ErrHoldsStock), errors.Is(err, ErrReferencedByConfig):
		httpx.RespondType(w, httpx.TypeInvalidState, err.Error())
	case errors.Is(err, ErrCodeRequired), errors.Is(err, ErrEnterpriseRequired):
		httpx.RespondType(w, httpx.TypeInvalidArgument, err.Error())
	default:
		h.logger.Error("warehouse request failed", slog.Any("error", err))
		httpx.RespondType(w, httpx.TypeStorage, "")
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
