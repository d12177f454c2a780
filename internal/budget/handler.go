package budget

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/covenant-hq/covenant/internal/ledger"
	"github.com/covenant-hq/covenant/internal/platform/httpx"
)

// Handler wires budget endpoints under a tenant scope.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the budget handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers budget routes. Role enforcement happens in the router.
func (h *Handler) MountRoutes(read, write func(http.Handler) http.Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.With(read).Get("/", h.list)
		r.With(write).Post("/", h.create)
		r.With(read).Get("/{budgetID}", h.get)
		r.With(read).Get("/{budgetID}/variance", h.variance)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	budgets, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"budgets": budgets})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in CreateBudgetInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	in.TenantID = tenantID
	if err := in.Validate(); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	created, err := h.service.CreateBudget(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	budgetID, err := httpx.URLInt64(r, "budgetID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	b, err := h.service.Get(r.Context(), tenantID, budgetID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) variance(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	budgetID, err := httpx.URLInt64(r, "budgetID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	thresholdAmount, err := queryDecimal(r, "threshold_amount")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	thresholdPercent, err := queryDecimal(r, "threshold_percent")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.Variance(r.Context(), tenantID, budgetID, thresholdAmount, thresholdPercent)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func queryDecimal(r *http.Request, name string) (*decimal.Decimal, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a decimal", httpx.ErrValidation, name)
	}
	return &d, nil
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBudgetNotFound), errors.Is(err, ledger.ErrFundNotFound),
		errors.Is(err, ledger.ErrAccountNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, ErrBudgetExists):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrDuplicate, err))
	default:
		if h.logger != nil {
			h.logger.Error("budget request failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}
