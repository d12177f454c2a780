package workorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/covenant-hq/covenant/internal/ledger"
	"github.com/covenant-hq/covenant/internal/platform/httpx"
	"github.com/covenant-hq/covenant/internal/shared"
)

// Handler wires work order endpoints under a tenant scope.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the work order handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers work order routes. Role enforcement happens in the
// router.
func (h *Handler) MountRoutes(read, write func(http.Handler) http.Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.With(read).Get("/", h.list)
		r.With(write).Post("/", h.create)
		r.With(read).Get("/{workOrderID}", h.get)
		r.With(write).Post("/{workOrderID}/assign", h.assign)
		r.With(write).Post("/{workOrderID}/start", h.start)
		r.With(write).Post("/{workOrderID}/cancel", h.cancel)
		r.With(write).Post("/{workOrderID}/complete", h.complete)
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
	orders, total, err := h.service.List(r.Context(), tenantID, status, pageSize, shared.Offset(page, pageSize))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"work_orders": orders,
		"pagination":  shared.NewPagination(page, pageSize, total),
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	in.TenantID = tenantID
	if err := in.Validate(); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	wo, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, wo)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	workOrderID, err := httpx.URLInt64(r, "workOrderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	wo, err := h.service.Get(r.Context(), tenantID, workOrderID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, wo)
}

type assignRequest struct {
	Assignee string `json:"assignee"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	workOrderID, err := httpx.URLInt64(r, "workOrderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Assignee) == "" {
		httpx.RespondError(w, fmt.Errorf("%w: assignee required", httpx.ErrValidation))
		return
	}
	wo, err := h.service.Assign(r.Context(), tenantID, workOrderID, req.Assignee)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, wo)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Start)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Cancel)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, tenantID, workOrderID int64) (WorkOrder, error)) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	workOrderID, err := httpx.URLInt64(r, "workOrderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	wo, err := op(r.Context(), tenantID, workOrderID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, wo)
}

type completeRequest struct {
	ActualCost decimal.Decimal `json:"actual_cost"`
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	workOrderID, err := httpx.URLInt64(r, "workOrderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req completeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	wo, err := h.service.Complete(r.Context(), tenantID, workOrderID, req.ActualCost)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, wo)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrWorkOrderNotFound), errors.Is(err, ledger.ErrAccountNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, ErrInvalidTransition):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	default:
		if h.logger != nil {
			h.logger.Error("workorder request failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}
