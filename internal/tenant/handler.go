package tenant

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/covenant-hq/covenant/internal/platform/httpx"
	"github.com/covenant-hq/covenant/internal/shared"
)

// Handler wires tenant and membership endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   func(Role) func(http.Handler) http.Handler
}

// NewHandler constructs the tenant handler. The guard produces role
// middleware for tenant-scoped routes.
func NewHandler(logger *slog.Logger, service *Service, guard func(Role) func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers the onboarding route. It sits behind the
// authenticator but needs no membership: the caller becomes the admin.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.onboard)
}

// MountTenantRoutes registers routes inside the shared /{tenantID} scope.
func (h *Handler) MountTenantRoutes(r chi.Router) {
	r.With(h.guard(RoleReadonly)).Get("/", h.get)
	r.Route("/members", func(r chi.Router) {
		r.Use(h.guard(RoleAdmin))
		r.Post("/", h.addMember)
		r.Put("/{userID}", h.changeRole)
		r.Delete("/{userID}", h.removeMember)
	})
}

func (h *Handler) onboard(w http.ResponseWriter, r *http.Request) {
	actorID := shared.ActorID(r.Context())
	if actorID == 0 {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var in OnboardInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	in.AdminUserID = actorID
	if err := in.Validate(); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	created, err := h.service.Onboard(r.Context(), in)
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
	t, err := h.service.Get(r.Context(), tenantID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in AddMemberInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	in.TenantID = tenantID
	if err := in.Validate(); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	membership, err := h.service.AddMember(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, membership)
}

type changeRoleRequest struct {
	Role Role `json:"role"`
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	userID, err := httpx.URLInt64(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req changeRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.ChangeRole(r.Context(), tenantID, userID, req.Role); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.URLInt64(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	userID, err := httpx.URLInt64(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RemoveMember(r.Context(), tenantID, userID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTenantNotFound), errors.Is(err, ErrNotMember):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, ErrSlugTaken), errors.Is(err, ErrMemberExists):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrDuplicate, err))
	case errors.Is(err, ErrInvalidRole):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	default:
		if h.logger != nil {
			h.logger.Error("tenant request failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}
