package handler

import (
	"net/http"

	"login-gate/internal/auth"
	"login-gate/internal/logger"
	"login-gate/internal/metrics"
	"login-gate/internal/middleware"
	"login-gate/internal/session"

	"github.com/gin-gonic/gin"
)

const (
	LoginPath  = "/login"
	LogoutPath = "/logout"
	MemberPath = "/member"
)

type Handler struct {
	gate    *auth.Gate
	cookie  session.CookieOptions
	metrics *metrics.Metrics
}

func NewHandler(
	gate *auth.Gate,
	cookie session.CookieOptions,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		gate:    gate,
		cookie:  cookie,
		metrics: m,
	}
}

// RegisterRoutes mounts the public pages. loginGuard runs before the
// login form submission (rate limiting); it may be nil.
func (h *Handler) RegisterRoutes(r *gin.Engine, loginGuard gin.HandlerFunc) {
	r.SetHTMLTemplate(templates)

	r.GET("/", h.index)
	r.GET(LoginPath, h.loginForm)
	if loginGuard != nil {
		r.POST(LoginPath, loginGuard, h.login)
	} else {
		r.POST(LoginPath, h.login)
	}
	r.GET(LogoutPath, h.Logout)
	r.POST(LogoutPath, h.Logout)
}

func (h *Handler) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexPage))
}

// Logout is idempotent: a missing or stale cookie still gets a
// cleared cookie and a success page.
func (h *Handler) Logout(c *gin.Context) {
	token := session.TokenFromRequest(c.Request, h.cookie)

	session.ClearCookie(c.Writer, h.cookie)

	if err := h.gate.Logout(c.Request.Context(), token); err != nil {
		h.metrics.StoreError("logout")
		logger.Error("logout failed", map[string]any{
			"error": err.Error(),
			"ip":    c.ClientIP(),
		})
		c.String(http.StatusServiceUnavailable, "logout failed, try again later")
		return
	}

	h.metrics.Logout()
	c.String(http.StatusOK, "logged out")
}

// Member is the login-gated page. Mount it behind GinRequireAuth.
func (h *Handler) Member(c *gin.Context) {
	id, ok := middleware.GinIdentity(c)
	if !ok {
		c.Redirect(http.StatusFound, LoginPath)
		return
	}
	c.String(http.StatusOK, "member page (%s)", id.ID)
}

// Me returns the caller's identity as JSON. Mount it behind GinRequireAuth.
func (h *Handler) Me(c *gin.Context) {
	id, ok := middleware.GinIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id.ID})
}
