package entity

import (
	"time"

	"github.com/google/uuid"
)

type SessionToken struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID uuid.UUID `gorm:"type:uuid;not null;index"`
	Account   *Account  `gorm:"constraint:OnDelete:CASCADE"`

	Name      string `gorm:"type:varchar(100);not null;default:'auth_token'"`
	TokenHash string `gorm:"type:text;not null;uniqueIndex"`

	LastUsedAt *time.Time
	CreatedAt  time.Time
}
