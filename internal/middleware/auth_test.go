package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"login-gate/internal/auth"
	"login-gate/internal/metrics"
	"login-gate/internal/session"
)

// fakeGate accepts exactly one token.
type fakeGate struct {
	token string
	err   error
}

func (g fakeGate) RequireIdentity(_ context.Context, token string) (auth.Identity, error) {
	if g.err != nil {
		return auth.Identity{}, g.err
	}
	if token == "" || token != g.token {
		return auth.Identity{}, auth.ErrUnauthorized
	}
	return auth.Identity{ID: "scott"}, nil
}

var testCookie = session.CookieOptions{Secure: true}

func requestWithToken(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/member", nil)
	if token != "" {
		r.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	}
	return r
}

var echoIdentity = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "no identity", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write([]byte(id.ID))
})

func TestRequireAuth_Allowed(t *testing.T) {
	m := metrics.New()
	a := NewAuthMiddleware(fakeGate{token: "t1"}, testCookie, m)

	rec := httptest.NewRecorder()
	a.RequireAuth(echoIdentity, RedirectTo("/login")).ServeHTTP(rec, requestWithToken("t1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "scott", rec.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecisionsTotal.WithLabelValues(metrics.DecisionAllowed)))
}

func TestRequireAuth_RedirectsBrowser(t *testing.T) {
	a := NewAuthMiddleware(fakeGate{token: "t1"}, testCookie, nil)

	for _, token := range []string{"", "stale"} {
		rec := httptest.NewRecorder()
		a.RequireAuth(echoIdentity, RedirectTo("/login")).ServeHTTP(rec, requestWithToken(token))

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	}
}

func TestRequireAuth_DefaultsTo401(t *testing.T) {
	a := NewAuthMiddleware(fakeGate{token: "t1"}, testCookie, nil)

	rec := httptest.NewRecorder()
	a.RequireAuth(echoIdentity, nil).ServeHTTP(rec, requestWithToken(""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
}

func TestRequireAuth_StoreFailure(t *testing.T) {
	m := metrics.New()
	storeErr := errors.Join(auth.ErrStoreUnavailable, errors.New("dial tcp: refused"))
	a := NewAuthMiddleware(fakeGate{err: storeErr}, testCookie, m)

	rec := httptest.NewRecorder()
	a.RequireAuth(echoIdentity, RedirectTo("/login")).ServeHTTP(rec, requestWithToken("t1"))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"), "store failures must not look like logged out")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreErrors.WithLabelValues("require_identity")))
}

func TestGinRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	a := NewAuthMiddleware(fakeGate{token: "t1"}, testCookie, nil)

	r := gin.New()
	reached := false
	r.GET("/member", GinRequireAuth(a, RedirectTo("/login")), func(c *gin.Context) {
		reached = true
		id, ok := GinIdentity(c)
		require.True(t, ok)

		fromCtx, ok := IdentityFromContext(c.Request.Context())
		require.True(t, ok)
		assert.Equal(t, id, fromCtx)

		c.String(http.StatusOK, id.ID)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, requestWithToken("t1"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "scott", rec.Body.String())
	assert.True(t, reached)

	reached = false
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, requestWithToken("nope"))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.False(t, reached, "handler ran without a session")
}

func TestGinIdentityMissing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, ok := GinIdentity(c)
	assert.False(t, ok)

	c.Set(ContextIdentityKey, "not an identity")
	_, ok = GinIdentity(c)
	assert.False(t, ok)
}
