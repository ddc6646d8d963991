package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CampaignRepository interface {
	Create(ctx context.Context, c *domain.Campaign) error
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)
	ListActive(ctx context.Context) ([]domain.Campaign, error)
	// SetPaused pauses or resumes a campaign under the same row lock as
	// SetMemberStatus, so completion is never overwritten.
	SetPaused(ctx context.Context, id string, paused bool) (*domain.Campaign, error)
	// SetMemberStatus writes one member's status and re-evaluates the
	// campaign's aggregate status in the same transaction.
	SetMemberStatus(ctx context.Context, campaignID string, leadID string, status domain.EmailStatus) (*domain.Campaign, error)
}

type GormCampaignRepo struct {
	db *gorm.DB
}

func NewGormCampaignRepo(db *gorm.DB) *GormCampaignRepo {
	return &GormCampaignRepo{db: db}
}

func (r *GormCampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	model := campaignModelFromDomain(c)
	if model == nil {
		return domain.ErrValidation
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		members := model.Members
		model.Members = nil
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		if len(members) > 0 {
			if err := tx.CreateInBatches(&members, 100).Error; err != nil {
				return err
			}
		}
		model.Members = members
		return nil
	})
	if err != nil {
		return err
	}

	*c = *campaignModelToDomain(model)
	return nil
}

func (r *GormCampaignRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	var model CampaignModel
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return campaignModelToDomain(&model), nil
}

func (r *GormCampaignRepo) ListActive(ctx context.Context) ([]domain.Campaign, error) {
	var models []CampaignModel
	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("status = ?", domain.CampaignStatusActive).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	campaigns := make([]domain.Campaign, 0, len(models))
	for i := range models {
		campaigns = append(campaigns, *campaignModelToDomain(&models[i]))
	}
	return campaigns, nil
}

func (r *GormCampaignRepo) SetPaused(ctx context.Context, id string, paused bool) (*domain.Campaign, error) {
	var updated *domain.Campaign

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		campaign, err := lockCampaign(tx, id)
		if err != nil {
			return err
		}

		if err := saveStatus(tx, campaign, campaign.PausedStatus(paused)); err != nil {
			return err
		}
		updated = campaign
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *GormCampaignRepo) SetMemberStatus(
	ctx context.Context,
	campaignID string,
	leadID string,
	status domain.EmailStatus,
) (*domain.Campaign, error) {
	var updated *domain.Campaign

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockCampaign(tx, campaignID); err != nil {
			return err
		}

		result := tx.Model(&CampaignMemberModel{}).
			Where("campaign_id = ? AND lead_id = ?", campaignID, leadID).
			Update("email_status", status)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}

		campaign, err := loadCampaign(tx, campaignID)
		if err != nil {
			return err
		}
		if err := saveStatus(tx, campaign, campaign.EvaluateStatus()); err != nil {
			return err
		}
		updated = campaign
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// lockCampaign takes the campaign row lock and returns the campaign with its
// members.
func lockCampaign(tx *gorm.DB, id string) (*domain.Campaign, error) {
	var model CampaignModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Where("campaign_id = ?", id).
		Order("position ASC").
		Find(&model.Members).Error; err != nil {
		return nil, err
	}
	return campaignModelToDomain(&model), nil
}

func loadCampaign(tx *gorm.DB, id string) (*domain.Campaign, error) {
	var model CampaignModel
	err := tx.Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return campaignModelToDomain(&model), nil
}

func saveStatus(tx *gorm.DB, campaign *domain.Campaign, next domain.CampaignStatus) error {
	if next == campaign.Status {
		return nil
	}
	if err := tx.Model(&CampaignModel{}).
		Where("id = ?", campaign.ID).
		Update("status", next).Error; err != nil {
		return err
	}
	campaign.Status = next
	return nil
}
