package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"merchhub/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type validationResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// decodeJSON reads the request body into target. An empty body decodes as an
// empty object so that required-field errors are reported per field.
func decodeJSON(c echo.Context, target any) error {
	err := json.NewDecoder(c.Request().Body).Decode(target)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeError(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"message": message})
}

func writeMalformedBody(c echo.Context) error {
	return writeError(c, http.StatusBadRequest, "Malformed JSON body.")
}

func writeServiceError(c echo.Context, logger logrus.FieldLogger, err error) error {
	var validation *service.ValidationError
	if errors.As(err, &validation) {
		return c.JSON(http.StatusUnprocessableEntity, validationResponse{
			Message: "The given data was invalid.",
			Errors:  validation.Fields,
		})
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return writeError(c, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, service.ErrUnauthenticated):
		return writeError(c, http.StatusUnauthorized, "Unauthenticated.")
	case errors.Is(err, service.ErrEmailNotVerified):
		return writeError(c, http.StatusForbidden, "Email not verified.")
	case errors.Is(err, service.ErrInvalidVerificationLink):
		return writeError(c, http.StatusForbidden, "Invalid verification link.")
	case errors.Is(err, service.ErrForbidden):
		return writeError(c, http.StatusForbidden, "This action is unauthorized.")
	case errors.Is(err, service.ErrLinkExpired):
		return writeError(c, http.StatusGone, "Verification link has expired.")
	case errors.Is(err, service.ErrAccountNotFound):
		return writeError(c, http.StatusNotFound, "Account not found.")
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithError(err).WithFields(logrus.Fields{
		"method": c.Request().Method,
		"path":   c.Path(),
	}).Error("request failed")
	return writeError(c, http.StatusInternalServerError, "Server Error")
}

func clientMetadata(c echo.Context) service.ClientMetadata {
	var meta service.ClientMetadata
	if ip := c.RealIP(); ip != "" {
		meta.IPAddress = &ip
	}
	if ua := c.Request().UserAgent(); ua != "" {
		meta.UserAgent = &ua
	}
	return meta
}

func parseLimitOffset(c echo.Context) (int, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
