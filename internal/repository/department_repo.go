package repository

import (
	"context"

	"merchhub/internal/entity"

	"gorm.io/gorm"
)

type DepartmentRepository interface {
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context) ([]entity.Department, error)
}

type departmentRepository struct {
	db *gorm.DB
}

func NewDepartmentRepository(db *gorm.DB) DepartmentRepository {
	return &departmentRepository{db: db}
}

func (r *departmentRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := conn(ctx, r.db).
		Model(&entity.Department{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *departmentRepository) List(ctx context.Context) ([]entity.Department, error) {
	var departments []entity.Department
	if err := conn(ctx, r.db).Order("name ASC").Find(&departments).Error; err != nil {
		return nil, err
	}
	return departments, nil
}
