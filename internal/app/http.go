package app

import (
	"context"
	"fmt"
	"net/http"

	"login-gate/internal/auth"
	"login-gate/internal/auth/handler"
	"login-gate/internal/auth/resolver"
	"login-gate/internal/config"
	"login-gate/internal/metrics"
	"login-gate/internal/middleware"
	"login-gate/internal/session"

	"github.com/gin-gonic/gin"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	gate, err := newGate(ctx, cfg, infra)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	m := metrics.New()

	cookie := session.CookieOptions{
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}

	throttle := middleware.NewLoginThrottle(cfg.LoginRatePerMinute, cfg.LoginBurst)

	router, err := newRouter(gate, cookie, m, throttle, cfg.TrustedProxies)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	return router, infra.Close, nil
}

func newGate(ctx context.Context, cfg config.Config, infra *Infra) (*auth.Gate, error) {
	verifier := auth.NewStaticVerifier(map[string]string{
		cfg.LoginUserID: cfg.LoginSecret,
	})

	opts := []auth.Option{
		auth.WithSessionTTL(cfg.SessionTTL),
		auth.WithIdleTimeout(cfg.SessionIdleTimeout),
	}

	if infra.DB != nil {
		identities := resolver.NewDBResolver(infra.DB)
		if err := identities.EnsureAccount(ctx, cfg.LoginUserID); err != nil {
			return nil, err
		}
		opts = append(opts, auth.WithIdentityLoader(identities))
	}

	return auth.NewGate(infra.Sessions, verifier, opts...), nil
}

// newRouter wires routes around an already built gate. Only
// trustedProxies may set the client IP through X-Forwarded-For; with
// none, the login throttle keys on the peer address.
func newRouter(
	gate *auth.Gate,
	cookie session.CookieOptions,
	m *metrics.Metrics,
	throttle *middleware.LoginThrottle,
	trustedProxies []string,
) (*gin.Engine, error) {
	authHandler := handler.NewHandler(gate, cookie, m)
	authMiddleware := middleware.NewAuthMiddleware(gate, cookie, m)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	if len(trustedProxies) == 0 {
		trustedProxies = nil
	}
	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog())

	// ----------------------------
	// Public Routes
	// ----------------------------

	var loginGuard gin.HandlerFunc
	if throttle != nil {
		loginGuard = throttle.Middleware(m)
	}
	authHandler.RegisterRoutes(router, loginGuard)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(m.Handler()))

	// ----------------------------
	// Protected Web Routes
	// ----------------------------

	web := router.Group("/")
	web.Use(middleware.GinRequireAuth(authMiddleware, middleware.RedirectTo(handler.LoginPath)))

	web.GET(handler.MemberPath, authHandler.Member)

	// ----------------------------
	// Protected API Routes
	// ----------------------------

	api := router.Group("/api")
	api.Use(middleware.GinRequireAuth(authMiddleware, middleware.RespondUnauthorized))

	api.GET("/me", authHandler.Me)

	return router, nil
}
