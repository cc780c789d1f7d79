package treasury

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/sahel-erp/sahel-erp/internal/accounting"
	"github.com/sahel-erp/sahel-erp/internal/platform/httpx"
	"github.com/sahel-erp/sahel-erp/internal/shared"
)

// Handler manages treasury endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers treasury routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/treasury/transfers", h.handleTransfer)
}

type transferRequest struct {
	EnterpriseID  int64           `json:"enterprise_id" validate:"required"`
	FromAccountID int64           `json:"from_account_id" validate:"required"`
	ToAccountID   int64           `json:"to_account_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Label         string          `json:"label" validate:"omitempty,max=255"`
	Reference     string          `json:"reference" validate:"omitempty,max=64"`
	Date          string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondType(w, httpx.TypeInvalidArgument, err.Error())
		return
	}
	var date time.Time
	if req.Date != "" {
		date, _ = time.Parse("2006-01-02", req.Date)
	}
	result, err := h.service.Transfer(r.Context(), TransferInput{
		EnterpriseID:  req.EnterpriseID,
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		Label:         req.Label,
		Reference:     req.Reference,
		ActorID:       shared.ActorFromContext(r.Context()),
		Date:          date,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"journal_id":   result.JournalID,
		"reference":    result.Reference,
		"from_balance": result.FromBalance,
		"to_balance":   result.ToBalance,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		httpx.RespondType(w, httpx.TypeInsufficientFunds, err.Error())
	case errors.Is(err, ErrNotCashAccount), errors.Is(err, ErrSameAccount), errors.Is(err, ErrAmountNotPositive),
		errors.Is(err, accounting.ErrAmountNotPositive), errors.Is(err, accounting.ErrAccountRequired):
		httpx.RespondType(w, httpx.TypeInvalidArgument, err.Error())
	default:
		h.logger.Error("treasury request failed", slog.Any("error", err))
		httpx.RespondType(w, httpx.TypeStorage, "")
	}
}
