package handler

import (
	"net/http"

	"merchhub/api/middleware"
	"merchhub/internal/dto"
	"merchhub/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type AdminHandler struct {
	Service *service.AuthService
	Logger  logrus.FieldLogger
}

func NewAdminHandler(svc *service.AuthService, logger logrus.FieldLogger) *AdminHandler {
	return &AdminHandler{Service: svc, Logger: logger}
}

func (h *AdminHandler) ListAccounts(c echo.Context) error {
	limit, offset := parseLimitOffset(c)
	accounts, err := h.Service.ListAccounts(c.Request().Context(), limit, offset)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, dto.AccountResponsesFromEntities(accounts))
}

func (h *AdminHandler) RevokeTokens(c echo.Context) error {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return writeError(c, http.StatusBadRequest, "Invalid account id.")
	}
	if err := h.Service.RevokeAccountTokens(c.Request().Context(), accountID, clientMetadata(c)); err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) VerifyAccount(c echo.Context) error {
	actorID, ok := middleware.AccountIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, "Unauthenticated.")
	}
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return writeError(c, http.StatusBadRequest, "Invalid account id.")
	}
	account, err := h.Service.AdminVerify(c.Request().Context(), actorID, accountID, clientMetadata(c))
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, dto.AccountResponseFromEntity(account))
}
