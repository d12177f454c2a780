// Package rbac enforces tenant role requirements on HTTP routes.
package rbac

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/covenant-hq/covenant/internal/auth"
	"github.com/covenant-hq/covenant/internal/platform/httpx"
	"github.com/covenant-hq/covenant/internal/tenant"
)

// Middleware wires role authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// RequireRole ensures the caller's membership in the route's tenant meets the
// required role. The tenant comes from the {tenantID} URL parameter and the
// membership from the verified token claims.
func (m Middleware) RequireRole(required tenant.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := auth.ClaimsFromContext(r.Context())
			if claims == nil {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			tenantID, err := strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64)
			if err != nil || tenantID == 0 {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid tenant id")
				return
			}
			role, ok := claims.RoleFor(tenantID)
			if !ok || !role.Allows(required) {
				if m.Logger != nil {
					m.Logger.Warn("role check failed",
						slog.Int64("tenant", tenantID),
						slog.Int64("user", claims.UserID()),
						slog.String("required", string(required)))
				}
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
