package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"gorm.io/gorm"
)

type LeadRepository interface {
	Create(ctx context.Context, l *domain.Lead) error
	GetByID(ctx context.Context, id string) (*domain.Lead, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Lead, error)
	// TransitionStatus moves the lead to status only while its stored status
	// is one of from. It reports whether the row changed.
	TransitionStatus(ctx context.Context, id string, from []domain.LeadStatus, to domain.LeadStatus, lastContactedAt *time.Time) (bool, error)
}

type GormLeadRepo struct {
	db *gorm.DB
}

func NewGormLeadRepo(db *gorm.DB) *GormLeadRepo {
	return &GormLeadRepo{db: db}
}

func (r *GormLeadRepo) Create(ctx context.Context, l *domain.Lead) error {
	model := leadModelFromDomain(l)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if l != nil {
		*l = *leadModelToDomain(model)
	}
	return nil
}

func (r *GormLeadRepo) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	var model LeadModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return leadModelToDomain(&model), nil
}

// GetByIDs returns the leads in the order of ids; unknown IDs are skipped.
func (r *GormLeadRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Lead, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var models []LeadModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}

	byID := make(map[string]*LeadModel, len(models))
	for i := range models {
		byID[models[i].ID] = &models[i]
	}

	leads := make([]domain.Lead, 0, len(models))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			leads = append(leads, *leadModelToDomain(m))
		}
	}
	return leads, nil
}

func (r *GormLeadRepo) TransitionStatus(
	ctx context.Context,
	id string,
	from []domain.LeadStatus,
	to domain.LeadStatus,
	lastContactedAt *time.Time,
) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}

	updates := map[string]any{"status": to}
	if lastContactedAt != nil {
		updates["last_contacted_at"] = *lastContactedAt
	}

	result := r.db.WithContext(ctx).
		Model(&LeadModel{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
