package handler

import (
	"io"
	"net/http"

	"merchhub/api/middleware"
	"merchhub/internal/dto"
	"merchhub/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type ProfileHandler struct {
	Service *service.ProfileService
	Logger  logrus.FieldLogger
}

func NewProfileHandler(svc *service.ProfileService, logger logrus.FieldLogger) *ProfileHandler {
	return &ProfileHandler{Service: svc, Logger: logger}
}

func (h *ProfileHandler) Show(c echo.Context) error {
	accountID, ok := middleware.AccountIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, "Unauthenticated.")
	}
	profile, err := h.Service.GetProfile(c.Request().Context(), accountID)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, dto.ProfileResponseFromEntity(profile, h.Service.AvatarURL))
}

func (h *ProfileHandler) Update(c echo.Context) error {
	accountID, ok := middleware.AccountIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, "Unauthenticated.")
	}
	var req dto.UpdateProfileRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeMalformedBody(c)
	}
	profile, err := h.Service.UpdateProfile(c.Request().Context(), accountID, req)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, dto.ProfileResponseFromEntity(profile, h.Service.AvatarURL))
}

func (h *ProfileHandler) UploadAvatar(c echo.Context) error {
	accountID, ok := middleware.AccountIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, "Unauthenticated.")
	}

	var data []byte
	if file, err := c.FormFile("avatar"); err == nil {
		src, err := file.Open()
		if err != nil {
			return writeServiceError(c, h.Logger, err)
		}
		defer src.Close()
		// one byte past the limit is enough for the size check to fire
		data, err = io.ReadAll(io.LimitReader(src, service.MaxAvatarBytes+1))
		if err != nil {
			return writeServiceError(c, h.Logger, err)
		}
	}

	url, err := h.Service.UploadAvatar(c.Request().Context(), accountID, data, clientMetadata(c))
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, dto.AvatarResponse{AvatarURL: url})
}

func (h *ProfileHandler) UpdatePreferences(c echo.Context) error {
	accountID, ok := middleware.AccountIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, "Unauthenticated.")
	}
	var req dto.UpdatePreferencesRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeMalformedBody(c)
	}
	profile, err := h.Service.UpdatePreferences(c.Request().Context(), accountID, req)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, dto.ProfileResponseFromEntity(profile, h.Service.AvatarURL))
}
