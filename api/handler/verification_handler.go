package handler

import (
	"errors"
	"html/template"
	"net/http"

	"merchhub/internal/deeplink"
	"merchhub/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type VerificationHandler struct {
	Service    *service.AuthService
	Redirector deeplink.Redirector
	AppName    string
	Logger     logrus.FieldLogger
}

type redirectPage struct {
	AppName    string
	URL        template.URL
	DelayMs    int
	FallbackMs int
}

type failedPage struct {
	AppName string
	Message string
}

func NewVerificationHandler(svc *service.AuthService, redirector deeplink.Redirector, appName string, logger logrus.FieldLogger) *VerificationHandler {
	return &VerificationHandler{Service: svc, Redirector: redirector, AppName: appName, Logger: logger}
}

// Verify confirms the link and renders the page that hands the browser back
// to the app.
func (h *VerificationHandler) Verify(c echo.Context) error {
	noCache(c)

	_, err := h.Service.ConfirmEmail(c.Request().Context(), c.QueryParam("token"), clientMetadata(c))
	if err != nil {
		status, message := http.StatusForbidden, "This verification link is invalid."
		switch {
		case errors.Is(err, service.ErrLinkExpired):
			status, message = http.StatusGone, "This verification link has expired."
		case errors.Is(err, service.ErrInvalidVerificationLink):
		default:
			if h.Logger != nil {
				h.Logger.WithError(err).Error("email confirmation failed")
			}
			status, message = http.StatusInternalServerError, "We could not verify your email right now. Please try again later."
		}
		return c.Render(status, "verify_failed.html", failedPage{AppName: h.AppName, Message: message})
	}

	// the target passed the scheme check, so it is safe to mark as a URL
	target := h.Redirector.Target(c.QueryParam("redirect"))
	return c.Render(http.StatusOK, "redirect.html", redirectPage{
		AppName:    h.AppName,
		URL:        template.URL(target),
		DelayMs:    deeplink.InitialDelay,
		FallbackMs: deeplink.FallbackTimeout,
	})
}

func noCache(c echo.Context) {
	header := c.Response().Header()
	header.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	header.Set("Pragma", "no-cache")
	header.Set("Expires", "0")
}
