package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const warmupStateID = 1

type WarmupRepository interface {
	DayCount(ctx context.Context) (int, error)
	// AdvanceIfNewDay bumps the day count once per distinct day value.
	AdvanceIfNewDay(ctx context.Context, day string) (bool, error)
}

type GormWarmupRepo struct {
	db *gorm.DB
}

func NewGormWarmupRepo(db *gorm.DB) *GormWarmupRepo {
	return &GormWarmupRepo{db: db}
}

func (r *GormWarmupRepo) DayCount(ctx context.Context) (int, error) {
	var model WarmupStateModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", warmupStateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return model.DayCount, nil
}

func (r *GormWarmupRepo) AdvanceIfNewDay(ctx context.Context, day string) (bool, error) {
	advanced := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := WarmupStateModel{ID: warmupStateID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}

		result := tx.Model(&WarmupStateModel{}).
			Where("id = ? AND (last_advanced_on IS NULL OR last_advanced_on < ?)", warmupStateID, day).
			Updates(map[string]any{
				"day_count":        gorm.Expr("day_count + 1"),
				"last_advanced_on": day,
			})
		if result.Error != nil {
			return result.Error
		}
		advanced = result.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	return advanced, nil
}
