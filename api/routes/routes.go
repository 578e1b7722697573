package routes

import (
	"net/http"
	"time"

	"merchhub/api/handler"
	"merchhub/api/middleware"
	"merchhub/internal/entity"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type Router struct {
	Echo           *echo.Echo
	Auth           *handler.AuthHandler
	Profile        *handler.ProfileHandler
	Verification   *handler.VerificationHandler
	Admin          *handler.AdminHandler
	AuthMiddleware middleware.AuthMiddleware
	AuthRate       middleware.Limiter
	LoginRate      middleware.Limiter
	ResendRate     middleware.Limiter
	Metrics        *middleware.Metrics
	// StorageRoot is served under /storage when the disk asset store is used.
	StorageRoot string
}

func NewRouter(
	e *echo.Echo,
	auth *handler.AuthHandler,
	profile *handler.ProfileHandler,
	verification *handler.VerificationHandler,
	admin *handler.AdminHandler,
	authMiddleware middleware.AuthMiddleware,
) *Router {
	return &Router{
		Echo:           e,
		Auth:           auth,
		Profile:        profile,
		Verification:   verification,
		Admin:          admin,
		AuthMiddleware: authMiddleware,
		AuthRate:       middleware.NewRateLimiter(rate.Limit(5), 10, 5*time.Minute),
		LoginRate:      middleware.NewRateLimiter(rate.Limit(2), 4, 10*time.Minute),
		ResendRate:     middleware.NewRateLimiter(rate.Every(10*time.Second), 3, 10*time.Minute),
	}
}

func (r *Router) RegisterRoutes() {
	e := r.Echo

	if r.Metrics != nil {
		e.Use(r.Metrics.Middleware())
		e.GET("/metrics", r.Metrics.Handler())
	}
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if r.StorageRoot != "" {
		e.Static("/storage", r.StorageRoot)
	}

	api := e.Group("/api")
	requireAuth := r.AuthMiddleware.RequireAuth

	api.POST("/register", r.Auth.Register, r.AuthRate.Middleware())
	api.POST("/login", r.Auth.Login, r.LoginRate.Middleware())
	api.POST("/logout", r.Auth.Logout, requireAuth)
	api.GET("/me", r.Auth.Me, requireAuth)
	api.GET("/departments", r.Auth.Departments)

	api.POST("/email/verification-notification", r.Auth.ResendVerification, r.ResendRate.Middleware())
	api.GET("/email/verify", r.Verification.Verify, r.AuthRate.Middleware())

	profile := api.Group("/profile", requireAuth)
	profile.GET("", r.Profile.Show)
	profile.PUT("", r.Profile.Update)
	profile.POST("/avatar", r.Profile.UploadAvatar)
	profile.PUT("/preferences", r.Profile.UpdatePreferences)

	admin := api.Group("/admin",
		requireAuth,
		middleware.RequireVerified,
		middleware.RequireRole(entity.AccountRoleAdmin, entity.AccountRoleSuperAdmin),
	)
	admin.GET("/accounts", r.Admin.ListAccounts)
	admin.POST("/accounts/:id/revoke-tokens", r.Admin.RevokeTokens)
	admin.POST("/accounts/:id/verify", r.Admin.VerifyAccount)
}
