package middleware

import (
	"context"
	"errors"
	"net/http"

	"login-gate/internal/auth"
	"login-gate/internal/logger"
	"login-gate/internal/metrics"
	"login-gate/internal/session"
)

// unexported, collision-proof context key
type identityContextKeyType struct{}

var identityKey = identityContextKeyType{}

// IdentityFromContext extracts the authenticated identity from context.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(auth.Identity)
	return id, ok
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityRequirer is the part of auth.Gate the middleware needs.
type IdentityRequirer interface {
	RequireIdentity(ctx context.Context, token string) (auth.Identity, error)
}

// UnauthorizedFunc answers a request that carries no live session.
type UnauthorizedFunc func(w http.ResponseWriter, r *http.Request)

// RedirectTo sends unauthenticated browsers to the login entry point.
func RedirectTo(path string) UnauthorizedFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, path, http.StatusFound)
	}
}

// RespondUnauthorized answers with a bare 401 JSON body, for API clients.
func RespondUnauthorized(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}

type AuthMiddleware struct {
	Gate    IdentityRequirer
	Cookie  session.CookieOptions
	Metrics *metrics.Metrics
}

func NewAuthMiddleware(gate IdentityRequirer, cookie session.CookieOptions, m *metrics.Metrics) *AuthMiddleware {
	return &AuthMiddleware{
		Gate:    gate,
		Cookie:  cookie,
		Metrics: m,
	}
}

// RequireAuth resolves the session cookie through the gate before
// calling next. The identity is handed to next on the request context.
func (a *AuthMiddleware) RequireAuth(next http.Handler, onUnauthorized UnauthorizedFunc) http.Handler {
	if onUnauthorized == nil {
		onUnauthorized = RespondUnauthorized
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := session.TokenFromRequest(r, a.Cookie)

		id, err := a.Gate.RequireIdentity(r.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrUnauthorized):
			a.Metrics.Decision(metrics.DecisionUnauthorized)
			onUnauthorized(w, r)
			return
		default:
			a.Metrics.Decision(metrics.DecisionError)
			a.Metrics.StoreError("require_identity")
			logger.Error("session lookup failed", map[string]any{
				"path":  r.URL.Path,
				"error": err.Error(),
			})
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}

		a.Metrics.Decision(metrics.DecisionAllowed)
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}
