package violations

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/covenant-hq/covenant/internal/ar"
	"github.com/covenant-hq/covenant/internal/platform/httpx"
	"github.com/covenant-hq/covenant/internal/shared"
)

// Handler wires violation tracking endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the violations handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers violation routes. Role enforcement happens in the
// router.
func (h *Handler) MountRoutes(read, write func(http.Handler) http.Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.With(read).Get("/", h.list)
		r.With(write).Post("/", h.report)
		r.With(read).Get("/{violationID}", h.get)
		r.With(write).Post("/{violationID}/advance", h.advance)
		r.With(write).Post("/{violationID}/resolve", h.resolve)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, pageSize := shared.PageRequest(r)
	status := Status(r.URL.Query().Get("status"))
	items, total, err := h.service.List(r.Context(), tenantID, status, pageSize, shared.Offset(page, pageSize))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"violations": items,
		"pagination": shared.NewPagination(page, pageSize, total),
	})
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in ReportInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	in.TenantID = tenantID
	if err := in.Validate(); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	v, err := h.service.Report(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, v)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	violationID, err := httpx.URLInt64(r, "violationID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.Get(r.Context(), tenantID, violationID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

type advanceRequest struct {
	FineAmount *decimal.Decimal `json:"fine_amount"`
}

// advance moves the violation to its next enforcement stage. The body may
// override the fine amount charged when the step lands on FINED.
func (h *Handler) advance(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	violationID, err := httpx.URLInt64(r, "violationID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req advanceRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
			return
		}
	}
	policy := DefaultPolicy()
	if req.FineAmount != nil {
		if req.FineAmount.LessThanOrEqual(decimal.Zero) {
			httpx.RespondError(w, fmt.Errorf("%w: fine_amount must be positive", httpx.ErrValidation))
			return
		}
		policy.FineAmount = *req.FineAmount
	}
	v, err := h.service.Advance(r.Context(), tenantID, violationID, policy)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	violationID, err := httpx.URLInt64(r, "violationID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.Resolve(r.Context(), tenantID, violationID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrViolationNotFound), errors.Is(err, ar.ErrUnitNotFound),
		errors.Is(err, ar.ErrOwnerNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrAlreadyResolved):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	default:
		if h.logger != nil {
			h.logger.Error("violations request failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}
