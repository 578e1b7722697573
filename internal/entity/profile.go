package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Profile struct {
	ID        int64     `gorm:"primaryKey"`
	AccountID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`

	AvatarPath  *string `gorm:"type:varchar(255)"`
	FullName    *string `gorm:"type:varchar(255)"`
	Email       *string `gorm:"type:varchar(255)"`
	Bio         *string `gorm:"type:varchar(500)"`
	PhoneNumber *string `gorm:"type:varchar(20)"`
	Address     *string `gorm:"type:varchar(255)"`

	Preferences datatypes.JSONMap

	BirthDate   *string `gorm:"type:varchar(10)"`
	Gender      *string `gorm:"type:varchar(32)"`
	Occupation  *string `gorm:"type:varchar(255)"`
	Interests   datatypes.JSONSlice[string]
	SocialLinks datatypes.JSONType[map[string]string]

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProfileFor returns the default profile of an account, seeded from the
// account's name and email. It is not persisted.
func NewProfileFor(account *Account) *Profile {
	name := account.Name
	email := account.Email
	return &Profile{
		AccountID: account.ID,
		FullName:  &name,
		Email:     &email,
	}
}
