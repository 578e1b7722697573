package middleware

import (
	"net/http"

	"merchhub/internal/entity"

	"github.com/labstack/echo/v4"
)

// RequireRole lets the request through when the caller has any of roles.
func RequireRole(roles ...entity.AccountRole) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			currentRole, ok := RoleFromContext(c)
			if !ok {
				return echo.NewHTTPError(http.StatusForbidden, "This action is unauthorized.")
			}
			for _, role := range roles {
				if currentRole == string(role) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "This action is unauthorized.")
		}
	}
}
