package bank

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/covenant-hq/covenant/internal/platform/httpx"
)

// Handler wires bank account and reconciliation endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the bank handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers bank routes. Role enforcement happens in the router.
func (h *Handler) MountRoutes(read, write func(http.Handler) http.Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.With(read).Get("/", h.list)
		r.With(write).Post("/", h.create)
		r.With(read).Get("/{bankAccountID}", h.get)
		r.With(write).Post("/{bankAccountID}/statements", h.importStatement)
		r.With(read).Get("/{bankAccountID}/reconciliation", h.reconcile)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accounts, err := h.service.ListBankAccounts(r.Context(), tenantID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bank_accounts": accounts})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in CreateBankAccountInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	in.TenantID = tenantID
	if err := in.Validate(); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	account, err := h.service.CreateBankAccount(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bankAccountID, err := httpx.URLInt64(r, "bankAccountID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.GetBankAccount(r.Context(), tenantID, bankAccountID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

// importStatement ingests a CSV statement from the request body. The body is
// the raw CSV, not a multipart form, so bank exports can be piped directly.
func (h *Handler) importStatement(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bankAccountID, err := httpx.URLInt64(r, "bankAccountID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	summary, err := h.service.ImportStatement(r.Context(), tenantID, bankAccountID, r.Body)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bankAccountID, err := httpx.URLInt64(r, "bankAccountID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	now := time.Now()
	from, err := httpx.QueryDate(r, "from", now.AddDate(0, -1, 0))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.QueryDate(r, "to", now)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.Reconcile(r.Context(), tenantID, bankAccountID, from, to)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBankAccountNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, ErrBadHeader):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	default:
		if h.logger != nil {
			h.logger.Error("bank request failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}
