package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/covenant-hq/covenant/internal/platform/httpx"
	"github.com/covenant-hq/covenant/internal/shared"
)

type contextKey struct{}

var claimsKey contextKey

// ClaimsFromContext returns the verified claims stored by Authenticator.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

// WithClaims stores claims and the actor id on the context; exported for
// handler tests.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, claimsKey, claims)
	if claims != nil {
		ctx = shared.WithActor(ctx, claims.UserID())
	}
	return ctx
}

// Verifier abstracts token parsing for the middleware.
type Verifier interface {
	Verify(token string) (*Claims, error)
}

// Authenticator rejects requests without a valid bearer token and stores the
// claims on the request context.
func Authenticator(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			claims, err := verifier.Verify(strings.TrimSpace(token))
			if err != nil {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
