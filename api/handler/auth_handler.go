package handler

import (
	"errors"
	"net/http"

	"merchhub/api/middleware"
	"merchhub/internal/dto"
	"merchhub/internal/entity"
	"merchhub/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	registeredMessage       = "Registration successful. Please check your email to verify your account."
	registeredStaffMessage  = "Registration successful."
	emailNotVerifiedMessage = "Email not verified. A new verification link has been sent to your email address."
	staffNotVerifiedMessage = "Email not verified. An administrator must verify this account before you can log in."
	resendFailedMessage     = "Email not verified. We could not send a new verification link, please try again later."
	resendMessage           = "If your account needs verification, a new link has been sent."
)

type AuthHandler struct {
	Service   *service.AuthService
	AvatarURL func(path string) string
	Logger    logrus.FieldLogger
}

func NewAuthHandler(svc *service.AuthService, avatarURL func(string) string, logger logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{Service: svc, AvatarURL: avatarURL, Logger: logger}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req dto.RegisterRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeMalformedBody(c)
	}
	result, err := h.Service.Register(c.Request().Context(), req, clientMetadata(c))
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}

	message := registeredMessage
	if !result.Account.Role.IsConsumer() {
		message = registeredStaffMessage
	}
	return c.JSON(http.StatusCreated, dto.AuthResponse{
		User:    h.sessionData(result.Account, result.Profile),
		Token:   result.Token,
		Message: message,
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeMalformedBody(c)
	}
	result, err := h.Service.Login(c.Request().Context(), req, clientMetadata(c))
	if errors.Is(err, service.ErrEmailNotVerified) {
		return c.JSON(http.StatusForbidden, dto.EmailNotVerifiedResponse{
			Message:       unverifiedMessage(result),
			EmailVerified: false,
		})
	}
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}

	verified := true
	return c.JSON(http.StatusOK, dto.AuthResponse{
		User:          h.sessionData(result.Account, result.Profile),
		Token:         result.Token,
		EmailVerified: &verified,
	})
}

// unverifiedMessage only promises a mail when one was actually sent.
func unverifiedMessage(result *service.AuthResult) string {
	switch {
	case result == nil:
		return resendFailedMessage
	case result.VerificationSent:
		return emailNotVerifiedMessage
	case result.Account != nil && !result.Account.Role.IsConsumer():
		return staffNotVerifiedMessage
	default:
		return resendFailedMessage
	}
}

func (h *AuthHandler) Logout(c echo.Context) error {
	accountID, ok := middleware.AccountIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, "Unauthenticated.")
	}
	if err := h.Service.Logout(c.Request().Context(), accountID, clientMetadata(c)); err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return writeError(c, http.StatusOK, "Logged out")
}

func (h *AuthHandler) Me(c echo.Context) error {
	accountID, ok := middleware.AccountIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, "Unauthenticated.")
	}
	account, profile, err := h.Service.CurrentAccount(c.Request().Context(), accountID)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, h.sessionData(account, profile))
}

// ResendVerification answers 202 whether or not a mail went out.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req dto.ResendVerificationRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeMalformedBody(c)
	}
	if err := h.Service.ResendVerification(c.Request().Context(), req); err != nil {
		var validation *service.ValidationError
		if errors.As(err, &validation) {
			return writeServiceError(c, h.Logger, err)
		}
		h.logger().WithError(err).Warn("resend verification failed")
	}
	return writeError(c, http.StatusAccepted, resendMessage)
}

func (h *AuthHandler) Departments(c echo.Context) error {
	departments, err := h.Service.Departments(c.Request().Context())
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, dto.DepartmentResponsesFromEntities(departments))
}

func (h *AuthHandler) sessionData(account *entity.Account, profile *entity.Profile) dto.SessionData {
	return dto.SessionDataFromEntity(account, dto.ProfileResponseFromEntity(profile, h.AvatarURL))
}

func (h *AuthHandler) logger() logrus.FieldLogger {
	if h.Logger == nil {
		return logrus.StandardLogger()
	}
	return h.Logger
}
