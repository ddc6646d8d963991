package repository

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SuppressionRepository interface {
	IsSuppressed(ctx context.Context, address string) (bool, error)
	Suppress(ctx context.Context, address string, reason string) error
}

type GormSuppressionRepo struct {
	db *gorm.DB
}

func NewGormSuppressionRepo(db *gorm.DB) *GormSuppressionRepo {
	return &GormSuppressionRepo{db: db}
}

func (r *GormSuppressionRepo) IsSuppressed(ctx context.Context, address string) (bool, error) {
	normalized := domain.NormalizeAddress(address)
	if normalized == "" {
		return false, nil
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&SuppressionModel{}).
		Where("address = ?", normalized).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Suppress is idempotent; the first reason recorded is kept.
func (r *GormSuppressionRepo) Suppress(ctx context.Context, address string, reason string) error {
	normalized := domain.NormalizeAddress(address)
	if normalized == "" {
		return fmt.Errorf("%w: address is required", domain.ErrValidation)
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&SuppressionModel{Address: normalized, Reason: reason}).Error
}
