package handler

import (
	"errors"
	"fmt"
	"net/http"

	"login-gate/internal/auth"
	"login-gate/internal/logger"
	"login-gate/internal/metrics"
	"login-gate/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const invalidCredentialMessage = "invalid user id or password"

type loginRequest struct {
	UserID   string `form:"user_id" binding:"required,min=3,max=20"`
	Password string `form:"password" binding:"required,min=4,max=20"`
}

var fieldLabels = map[string]string{
	"UserID":   "user id",
	"Password": "password",
}

func (h *Handler) loginForm(c *gin.Context) {
	c.HTML(http.StatusOK, loginTemplate, loginPage{})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.metrics.Login(metrics.LoginRejected)
		c.HTML(http.StatusBadRequest, loginTemplate, loginPage{
			UserID: req.UserID,
			Errors: formErrors(err),
		})
		return
	}

	ctx := c.Request.Context()

	identity, err := h.gate.Authenticate(ctx, auth.Credential{
		Identifier: req.UserID,
		Secret:     req.Password,
	})
	if errors.Is(err, auth.ErrInvalidCredential) {
		h.metrics.Login(metrics.LoginInvalid)
		logger.Info("login rejected", map[string]any{
			"ip": c.ClientIP(),
		})
		c.HTML(http.StatusUnauthorized, loginTemplate, loginPage{
			UserID: req.UserID,
			Errors: []string{invalidCredentialMessage},
		})
		return
	}
	if err != nil {
		h.failLogin(c, "authenticate", err)
		return
	}

	// Drop whatever session the browser arrived with before minting a
	// new one, so a planted token never becomes authenticated.
	if old := session.TokenFromRequest(c.Request, h.cookie); old != "" {
		if err := h.gate.Logout(ctx, old); err != nil {
			h.failLogin(c, "logout_previous", err)
			return
		}
	}

	sess, err := h.gate.Login(ctx, identity)
	if err != nil {
		h.failLogin(c, "create", err)
		return
	}

	session.SetCookie(c.Writer, sess.SessionID, sess.ExpiresAt, h.cookie)

	h.metrics.Login(metrics.LoginSuccess)
	logger.Info("login succeeded", map[string]any{
		"identity": identity.ID,
		"ip":       c.ClientIP(),
	})

	c.Redirect(http.StatusFound, MemberPath)
}

func (h *Handler) failLogin(c *gin.Context, op string, err error) {
	h.metrics.Login(metrics.LoginError)
	h.metrics.StoreError(op)
	logger.Error("login failed", map[string]any{
		"op":    op,
		"error": err.Error(),
		"ip":    c.ClientIP(),
	})
	c.String(http.StatusServiceUnavailable, "login is temporarily unavailable")
}

// formErrors turns binding failures into messages for the form.
func formErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{"invalid form submission"}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return msgs
}

func fieldMessage(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", label)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}
