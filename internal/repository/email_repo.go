package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EmailRepository interface {
	SentOn(ctx context.Context, day string) (int, error)
	CommitSend(ctx context.Context, record *domain.EmailRecord, day string) error
	GetByTrackingID(ctx context.Context, trackingID string) (*domain.EmailRecord, error)
	LatestSentForLead(ctx context.Context, leadID string) (*domain.EmailRecord, error)
	MarkResponded(ctx context.Context, id string, at time.Time) error
}

type GormEmailRepo struct {
	db *gorm.DB
}

func NewGormEmailRepo(db *gorm.DB) *GormEmailRepo {
	return &GormEmailRepo{db: db}
}

func (r *GormEmailRepo) SentOn(ctx context.Context, day string) (int, error) {
	var model DailySendLogModel
	err := r.db.WithContext(ctx).First(&model, "day = ?", day).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return model.SentCount, nil
}

// CommitSend inserts the email record and bumps the day's counter atomically.
func (r *GormEmailRepo) CommitSend(ctx context.Context, record *domain.EmailRecord, day string) error {
	model := emailRecordModelFromDomain(record)
	if model == nil {
		return domain.ErrValidation
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}

		entry := DailySendLogModel{Day: day, SentCount: 1}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "day"}},
			DoUpdates: clause.Assignments(map[string]any{
				"sent_count": gorm.Expr("daily_send_log.sent_count + 1"),
				"updated_at": time.Now().UTC(),
			}),
		}).Create(&entry).Error
	})
	if err != nil {
		return err
	}

	*record = *emailRecordModelToDomain(model)
	return nil
}

func (r *GormEmailRepo) GetByTrackingID(ctx context.Context, trackingID string) (*domain.EmailRecord, error) {
	var model EmailRecordModel
	err := r.db.WithContext(ctx).First(&model, "tracking_id = ?", trackingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return emailRecordModelToDomain(&model), nil
}

func (r *GormEmailRepo) LatestSentForLead(ctx context.Context, leadID string) (*domain.EmailRecord, error) {
	var model EmailRecordModel
	err := r.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("sent_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return emailRecordModelToDomain(&model), nil
}

// MarkResponded stamps the first response time; later replies keep it.
func (r *GormEmailRepo) MarkResponded(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&EmailRecordModel{}).
		Where("id = ? AND responded_at IS NULL", id).
		Update("responded_at", at)
	if result.Error != nil {
		return result.Error
	}
	return nil
}
