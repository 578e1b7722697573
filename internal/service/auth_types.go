package service

import (
	"context"
	"time"

	"merchhub/internal/entity"

	"golang.org/x/crypto/bcrypt"
)

type AuthConfig struct {
	// VerificationURL is the absolute URL of the confirmation endpoint; the
	// signed token is appended as the "token" query parameter.
	VerificationURL string
	// RedirectURL is the app-scheme URL the confirmation page hands off to.
	RedirectURL string
	TokenName   string
}

// VerificationNotifier delivers a verification link to an account.
type VerificationNotifier interface {
	SendVerification(ctx context.Context, account *entity.Account, link string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash string, password string) bool
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

type BcryptPasswordHasher struct {
	Cost int
}

func (h BcryptPasswordHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func (h BcryptPasswordHasher) Verify(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
