package archreview

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/covenant-hq/covenant/internal/platform/httpx"
	"github.com/covenant-hq/covenant/internal/shared"
)

// Handler wires architectural review endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the archreview handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers architectural review routes. Decisions are reserved
// for the board, everything else follows the usual read/write split.
func (h *Handler) MountRoutes(read, write, decide func(http.Handler) http.Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.With(read).Get("/", h.list)
		r.With(write).Post("/", h.submit)
		r.With(read).Get("/{requestID}", h.get)
		r.With(write).Post("/{requestID}/start-review", h.startReview)
		r.With(decide).Post("/{requestID}/decision", h.decide)
		r.With(write).Post("/{requestID}/withdraw", h.withdraw)
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
		"requests":   items,
		"pagination": shared.NewPagination(page, pageSize, total),
	})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in SubmitInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	in.TenantID = tenantID
	if err := in.Validate(); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	request, err := h.service.Submit(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, request)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	requestID, err := httpx.URLInt64(r, "requestID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	request, err := h.service.Get(r.Context(), tenantID, requestID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, request)
}

func (h *Handler) startReview(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	requestID, err := httpx.URLInt64(r, "requestID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	request, err := h.service.StartReview(r.Context(), tenantID, requestID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, request)
}

type decisionRequest struct {
	Approved bool   `json:"approved"`
	Notes    string `json:"notes"`
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	requestID, err := httpx.URLInt64(r, "requestID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actorID := shared.ActorID(r.Context())
	if actorID == 0 {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	request, err := h.service.Decide(r.Context(), tenantID, requestID, req.Approved, req.Notes, actorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, request)
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	requestID, err := httpx.URLInt64(r, "requestID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	request, err := h.service.Withdraw(r.Context(), tenantID, requestID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, request)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRequestNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, ErrInvalidTransition):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	default:
		if h.logger != nil {
			h.logger.Error("archreview request failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}
