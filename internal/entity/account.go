package entity

import (
	"time"

	"github.com/google/uuid"
)

type AccountRole string

const (
	AccountRoleStudent    AccountRole = "student"
	AccountRoleAdmin      AccountRole = "admin"
	AccountRoleSuperAdmin AccountRole = "superadmin"
)

// IsConsumer reports whether the role is the one that receives verification mail.
func (r AccountRole) IsConsumer() bool {
	return r == AccountRoleStudent
}

func (r AccountRole) IsAdministrative() bool {
	return r == AccountRoleAdmin || r == AccountRoleSuperAdmin
}

type Account struct {
	ID           uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string      `gorm:"type:varchar(255);not null"`
	Email        string      `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string      `gorm:"type:text;not null"`
	Role         AccountRole `gorm:"type:account_role;default:'student';not null"`

	DepartmentID int64       `gorm:"not null;index"`
	Department   *Department `gorm:"constraint:OnDelete:RESTRICT"`

	EmailVerifiedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	Profile *Profile
	Tokens  []SessionToken
}

func (a *Account) IsVerified() bool {
	return a.EmailVerifiedAt != nil
}
