package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	contextAccountIDKey = "auth_account_id"
	contextRoleKey      = "auth_role"
	contextTokenKey     = "auth_token_id"
	contextVerifiedKey  = "auth_verified"
)

func SetAuthContext(c echo.Context, accountID uuid.UUID, role string, tokenID uuid.UUID) {
	c.Set(contextAccountIDKey, accountID)
	c.Set(contextRoleKey, role)
	c.Set(contextTokenKey, tokenID)
}

func AccountIDFromContext(c echo.Context) (uuid.UUID, bool) {
	accountID, ok := c.Get(contextAccountIDKey).(uuid.UUID)
	return accountID, ok
}

func RoleFromContext(c echo.Context) (string, bool) {
	role, ok := c.Get(contextRoleKey).(string)
	return role, ok
}

func TokenIDFromContext(c echo.Context) (uuid.UUID, bool) {
	tokenID, ok := c.Get(contextTokenKey).(uuid.UUID)
	return tokenID, ok
}

func setVerified(c echo.Context, verified bool) {
	c.Set(contextVerifiedKey, verified)
}

// VerifiedFromContext reports whether the caller's email is verified.
func VerifiedFromContext(c echo.Context) bool {
	verified, _ := c.Get(contextVerifiedKey).(bool)
	return verified
}
