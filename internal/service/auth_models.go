package service

import "merchhub/internal/entity"

// AuthResult is returned by register and login. Token holds the plaintext
// bearer secret, which is never stored.
type AuthResult struct {
	Account *entity.Account
	Profile *entity.Profile
	Token   string

	VerificationSent bool
}

type ClientMetadata struct {
	IPAddress *string
	UserAgent *string
}
