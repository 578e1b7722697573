package repository

import (
	"context"
	"errors"

	"merchhub/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfileRepository interface {
	FindByAccountID(ctx context.Context, accountID uuid.UUID) (*entity.Profile, error)
	// FindByAccountIDForUpdate locks the row until the surrounding transaction ends.
	FindByAccountIDForUpdate(ctx context.Context, accountID uuid.UUID) (*entity.Profile, error)
	Create(ctx context.Context, profile *entity.Profile) error
	Save(ctx context.Context, profile *entity.Profile) error
}

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) FindByAccountID(ctx context.Context, accountID uuid.UUID) (*entity.Profile, error) {
	return r.find(conn(ctx, r.db), accountID)
}

func (r *profileRepository) FindByAccountIDForUpdate(ctx context.Context, accountID uuid.UUID) (*entity.Profile, error) {
	return r.find(conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), accountID)
}

func (r *profileRepository) find(db *gorm.DB, accountID uuid.UUID) (*entity.Profile, error) {
	var profile entity.Profile
	err := db.Where("account_id = ?", accountID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) Create(ctx context.Context, profile *entity.Profile) error {
	return conn(ctx, r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "account_id"}}, DoNothing: true}).
		Create(profile).Error
}

func (r *profileRepository) Save(ctx context.Context, profile *entity.Profile) error {
	return conn(ctx, r.db).Save(profile).Error
}
