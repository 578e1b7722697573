package repository

import (
	"context"
	"errors"
	"time"

	"merchhub/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TokenRepository interface {
	Create(ctx context.Context, token *entity.SessionToken) error
	FindByHash(ctx context.Context, hash string) (*entity.SessionToken, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteAllByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
}

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Create(ctx context.Context, token *entity.SessionToken) error {
	return conn(ctx, r.db).Omit("Account").Create(token).Error
}

func (r *tokenRepository) FindByHash(ctx context.Context, hash string) (*entity.SessionToken, error) {
	var token entity.SessionToken
	err := conn(ctx, r.db).
		Where("token_hash = ?", hash).
		First(&token).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *tokenRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	return conn(ctx, r.db).
		Model(&entity.SessionToken{}).
		Where("id = ?", id).
		Update("last_used_at", at).
		Error
}

func (r *tokenRepository) DeleteAllByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	result := conn(ctx, r.db).
		Where("account_id = ?", accountID).
		Delete(&entity.SessionToken{})
	return result.RowsAffected, result.Error
}
