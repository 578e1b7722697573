package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"merchhub/internal/entity"
	"merchhub/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Authenticator resolves a plaintext bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, plaintext string) (*entity.Account, *entity.SessionToken, error)
}

type AuthMiddleware struct {
	Auth   Authenticator
	Logger logrus.FieldLogger
}

func (m AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if m.Auth == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthenticated.")
		}
		token := extractBearerToken(c.Request())
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthenticated.")
		}
		account, session, err := m.Auth.Authenticate(c.Request().Context(), token)
		if err != nil {
			if !errors.Is(err, service.ErrUnauthenticated) && m.Logger != nil {
				m.Logger.WithError(err).Error("token lookup failed")
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthenticated.")
		}
		SetAuthContext(c, account.ID, string(account.Role), session.ID)
		setVerified(c, account.IsVerified())
		return next(c)
	}
}

// RequireVerified rejects callers whose email address is not verified. It
// must run after RequireAuth.
func RequireVerified(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !VerifiedFromContext(c) {
			return echo.NewHTTPError(http.StatusForbidden, "Your email address is not verified.")
		}
		return next(c)
	}
}

func extractBearerToken(r *http.Request) string {
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		return ""
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
