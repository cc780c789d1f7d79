package accounting

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sahel-erp/sahel-erp/internal/platform/httpx"
)

// Handler exposes the read side of the accounting surface. Postings happen
// through the modules that own the business events, not through HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers accounting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounting/config", h.handleGetConfig)
	r.Get("/accounting/accounts/{id}/balance", h.handleBalance)
	r.Get("/accounting/journals/{id}", h.handleGetJournal)
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	enterpriseID, _ := strconv.ParseInt(r.URL.Query().Get("enterprise_id"), 10, 64)
	if enterpriseID == 0 {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "enterprise_id is required")
		return
	}
	var posID *int64
	if raw := r.URL.Query().Get("pos_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid pos_id")
			return
		}
		posID = &id
	}
	cfg, err := h.service.GetConfig(r.Context(), enterpriseID, posID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if cfg == nil {
		httpx.RespondType(w, httpx.TypeNotFound, "no account configuration")
		return
	}
	httpx.JSON(w, http.StatusOK, cfg)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid account id")
		return
	}
	balance, err := h.service.AccountBalance(r.Context(), accountID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"account_id": accountID,
		"balance":    balance,
	})
}

func (h *Handler) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	journalID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid journal id")
		return
	}
	journal, lines, err := h.service.GetJournal(r.Context(), journalID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"journal": journal,
		"lines":   lines,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrJournalNotFound):
		httpx.RespondType(w, httpx.TypeNotFound, err.Error())
	default:
		h.logger.Error("accounting request failed", slog.Any("error", err))
		httpx.RespondType(w, httpx.TypeStorage, "")
	}
}
