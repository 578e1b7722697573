package entity

import "time"

type Department struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"type:varchar(255);not null"`
	Code string `gorm:"type:varchar(32);uniqueIndex"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
