package repository

import (
	"time"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
)

// LeadModel is the persistence model for the leads table.
type LeadModel struct {
	ID              string            `gorm:"type:uuid;primaryKey"`
	BusinessName    string            `gorm:"type:varchar(255);not null"`
	ContactName     string            `gorm:"type:varchar(255)"`
	Email           *string           `gorm:"type:varchar(320)"`
	Status          domain.LeadStatus `gorm:"type:varchar(20);not null"`
	Score           int               `gorm:"not null;default:0"`
	Tags            []string          `gorm:"type:jsonb;serializer:json"`
	LastContactedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (LeadModel) TableName() string {
	return "leads"
}

// CampaignModel is the persistence model for the campaigns table.
type CampaignModel struct {
	ID        string                `gorm:"type:uuid;primaryKey"`
	Name      string                `gorm:"type:varchar(255);not null"`
	Status    domain.CampaignStatus `gorm:"type:varchar(20);not null"`
	Members   []CampaignMemberModel `gorm:"foreignKey:CampaignID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CampaignModel) TableName() string {
	return "campaigns"
}

// CampaignMemberModel is the persistence model for campaign_members.
type CampaignMemberModel struct {
	CampaignID  string             `gorm:"type:uuid;primaryKey"`
	LeadID      string             `gorm:"type:uuid;primaryKey"`
	EmailStatus domain.EmailStatus `gorm:"type:varchar(20);not null"`
	Position    int                `gorm:"not null"`
	UpdatedAt   time.Time
}

func (CampaignMemberModel) TableName() string {
	return "campaign_members"
}

// EmailRecordModel is the persistence model for email_records.
type EmailRecordModel struct {
	ID          string                   `gorm:"type:uuid;primaryKey"`
	CampaignID  *string                  `gorm:"type:uuid"`
	LeadID      string                   `gorm:"type:uuid;not null"`
	FromAddress string                   `gorm:"type:varchar(320);not null"`
	ToAddress   string                   `gorm:"type:varchar(320);not null"`
	Subject     string                   `gorm:"type:text;not null"`
	Body        string                   `gorm:"type:text;not null"`
	Variation   domain.TemplateVariation `gorm:"type:varchar(10);not null"`
	ABGroup     domain.ABGroup           `gorm:"column:ab_group;type:varchar(1);not null"`
	TrackingID  string                   `gorm:"type:uuid;not null;uniqueIndex"`
	CreatedAt   time.Time
	SentAt      time.Time `gorm:"not null"`
	OpenedAt    *time.Time
	ClickedAt   *time.Time
	RespondedAt *time.Time
	BouncedAt   *time.Time
}

func (EmailRecordModel) TableName() string {
	return "email_records"
}

// DailySendLogModel counts confirmed sends per UTC day.
type DailySendLogModel struct {
	Day       string `gorm:"type:char(10);primaryKey"`
	SentCount int    `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (DailySendLogModel) TableName() string {
	return "daily_send_log"
}

// SuppressionModel is a permanently unsubscribed address.
type SuppressionModel struct {
	Address   string `gorm:"type:varchar(320);primaryKey"`
	Reason    string `gorm:"type:varchar(255)"`
	CreatedAt time.Time
}

func (SuppressionModel) TableName() string {
	return "suppressions"
}

// WarmupStateModel is the single-row warmup counter.
type WarmupStateModel struct {
	ID             int    `gorm:"primaryKey"`
	DayCount       int    `gorm:"not null;default:0"`
	LastAdvancedOn string `gorm:"type:char(10)"`
	UpdatedAt      time.Time
}

func (WarmupStateModel) TableName() string {
	return "warmup_state"
}

func leadModelFromDomain(l *domain.Lead) *LeadModel {
	if l == nil {
		return nil
	}

	return &LeadModel{
		ID:              l.ID,
		BusinessName:    l.BusinessName,
		ContactName:     l.ContactName,
		Email:           l.Email,
		Status:          l.Status,
		Score:           l.Score,
		Tags:            l.Tags,
		LastContactedAt: l.LastContactedAt,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

func leadModelToDomain(m *LeadModel) *domain.Lead {
	if m == nil {
		return nil
	}

	return &domain.Lead{
		ID:              m.ID,
		BusinessName:    m.BusinessName,
		ContactName:     m.ContactName,
		Email:           m.Email,
		Status:          m.Status,
		Score:           m.Score,
		Tags:            m.Tags,
		LastContactedAt: m.LastContactedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func campaignModelFromDomain(c *domain.Campaign) *CampaignModel {
	if c == nil {
		return nil
	}

	members := make([]CampaignMemberModel, 0, len(c.Members))
	for _, m := range c.Members {
		members = append(members, CampaignMemberModel{
			CampaignID:  c.ID,
			LeadID:      m.LeadID,
			EmailStatus: m.EmailStatus,
			Position:    m.Position,
		})
	}

	return &CampaignModel{
		ID:        c.ID,
		Name:      c.Name,
		Status:    c.Status,
		Members:   members,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func campaignModelToDomain(m *CampaignModel) *domain.Campaign {
	if m == nil {
		return nil
	}

	members := make([]domain.CampaignMember, 0, len(m.Members))
	for _, member := range m.Members {
		members = append(members, domain.CampaignMember{
			LeadID:      member.LeadID,
			EmailStatus: member.EmailStatus,
			Position:    member.Position,
		})
	}

	return &domain.Campaign{
		ID:        m.ID,
		Name:      m.Name,
		Status:    m.Status,
		Members:   members,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func emailRecordModelFromDomain(r *domain.EmailRecord) *EmailRecordModel {
	if r == nil {
		return nil
	}

	return &EmailRecordModel{
		ID:          r.ID,
		CampaignID:  r.CampaignID,
		LeadID:      r.LeadID,
		FromAddress: r.From,
		ToAddress:   r.To,
		Subject:     r.Subject,
		Body:        r.Body,
		Variation:   r.Variation,
		ABGroup:     r.Group,
		TrackingID:  r.TrackingID,
		CreatedAt:   r.CreatedAt,
		SentAt:      r.SentAt,
		OpenedAt:    r.OpenedAt,
		ClickedAt:   r.ClickedAt,
		RespondedAt: r.RespondedAt,
		BouncedAt:   r.BouncedAt,
	}
}

func emailRecordModelToDomain(m *EmailRecordModel) *domain.EmailRecord {
	if m == nil {
		return nil
	}

	return &domain.EmailRecord{
		ID:          m.ID,
		CampaignID:  m.CampaignID,
		LeadID:      m.LeadID,
		From:        m.FromAddress,
		To:          m.ToAddress,
		Subject:     m.Subject,
		Body:        m.Body,
		Variation:   m.Variation,
		Group:       m.ABGroup,
		TrackingID:  m.TrackingID,
		CreatedAt:   m.CreatedAt,
		SentAt:      m.SentAt,
		OpenedAt:    m.OpenedAt,
		ClickedAt:   m.ClickedAt,
		RespondedAt: m.RespondedAt,
		BouncedAt:   m.BouncedAt,
	}
}
