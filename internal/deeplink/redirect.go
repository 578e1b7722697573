package deeplink

import (
	"net/url"
	"strings"
)

const (
	DefaultScheme   = "merchhub"
	verifiedHost    = "email-verified"
	InitialDelay    = 1000
	FallbackTimeout = 3000
)

// Redirector validates redirect targets against the app scheme.
type Redirector struct {
	Scheme string
}

func NewRedirector(scheme string) Redirector {
	scheme = strings.TrimSuffix(strings.TrimSpace(scheme), "://")
	if scheme == "" {
		scheme = DefaultScheme
	}
	return Redirector{Scheme: strings.ToLower(scheme)}
}

// Fallback is the target used when no acceptable redirect was supplied.
func (r Redirector) Fallback() string {
	return r.Scheme + "://" + verifiedHost
}

// Target returns raw when it uses the app scheme and the fallback otherwise,
// so the page can never be turned into an open redirect.
func (r Redirector) Target(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return r.Fallback()
	}
	u, err := url.Parse(raw)
	if err != nil || !strings.EqualFold(u.Scheme, r.Scheme) {
		return r.Fallback()
	}
	return u.String()
}
