package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SecurityAction string

const (
	Register         SecurityAction = "register"
	LoginSuccess     SecurityAction = "login_success"
	LoginFailed      SecurityAction = "login_failed"
	LoginUnverified  SecurityAction = "login_unverified"
	Logout           SecurityAction = "logout"
	EmailVerified    SecurityAction = "email_verified"
	VerificationSent SecurityAction = "verification_sent"
	TokensRevoked    SecurityAction = "tokens_revoked"
	AvatarUpdated    SecurityAction = "avatar_updated"
)

type SecurityLog struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	AccountID *uuid.UUID `gorm:"type:uuid;index"`
	Account   *Account   `gorm:"constraint:OnDelete:SET NULL"`

	IPAddress *string        `gorm:"type:varchar(45)"`
	Action    SecurityAction `gorm:"type:security_action;not null"`

	Metadata datatypes.JSON

	CreatedAt time.Time
}
