package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"login-gate/internal/auth"
)

// ContextIdentityKey holds the auth.Identity in the gin context.
const ContextIdentityKey = "auth.identity"

// GinRequireAuth adapts the net/http AuthMiddleware to Gin.
func GinRequireAuth(a *AuthMiddleware, onUnauthorized UnauthorizedFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false

		// Bridge handler to allow net/http middleware execution
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			if id, ok := IdentityFromContext(r.Context()); ok {
				c.Set(ContextIdentityKey, id)
			}
			c.Next()
		})

		a.RequireAuth(next, onUnauthorized).ServeHTTP(c.Writer, c.Request)

		// The auth middleware answered the request itself
		if !passed {
			c.Abort()
		}
	}
}

// GinIdentity returns the identity GinRequireAuth stored on c.
func GinIdentity(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(ContextIdentityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}
