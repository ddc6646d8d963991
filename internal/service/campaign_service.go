package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/outreach-engine/internal/dedup"
	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/repository"
	"go.uber.org/zap"
)

const maxCampaignSize = 1000

// ConflictError lists leads already being worked by another active campaign.
type ConflictError struct {
	LeadIDs []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%d lead(s) are already in an active campaign", len(e.LeadIDs))
}

func (e *ConflictError) Unwrap() error {
	return domain.ErrConflict
}

type CreateCampaignInput struct {
	Name    string
	LeadIDs []string
	// Force creates the campaign even when some leads are in conflict.
	Force bool
}

type CampaignService struct {
	campaigns repository.CampaignRepository
	leads     repository.LeadRepository
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

func NewCampaignService(
	campaigns repository.CampaignRepository,
	leads repository.LeadRepository,
	logger *zap.Logger,
) (*CampaignService, error) {
	if campaigns == nil || leads == nil {
		return nil, fmt.Errorf("campaign and lead repositories are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CampaignService{
		campaigns: campaigns,
		leads:     leads,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// CheckConflicts returns the sorted IDs of leads that another active campaign
// is still working.
func (s *CampaignService) CheckConflicts(ctx context.Context, leadIDs []string) ([]string, error) {
	active, err := s.campaigns.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active campaigns: %w", err)
	}

	conflicts := dedup.FindConflicts(uniqueIDs(leadIDs), active, "")
	ids := make([]string, 0, len(conflicts))
	for id := range conflicts {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids, nil
}

func (s *CampaignService) CreateCampaign(ctx context.Context, input CreateCampaignInput) (*domain.Campaign, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}

	leadIDs := uniqueIDs(input.LeadIDs)
	if len(leadIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one lead is required", domain.ErrValidation)
	}
	if len(leadIDs) > maxCampaignSize {
		return nil, fmt.Errorf("%w: campaign size exceeds %d", domain.ErrValidation, maxCampaignSize)
	}

	leads, err := s.leads.GetByIDs(ctx, leadIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load leads: %w", err)
	}
	if missing := missingIDs(leadIDs, leads); len(missing) > 0 {
		return nil, fmt.Errorf("%w: unknown lead ids %s", domain.ErrValidation, strings.Join(missing, ","))
	}

	conflicts, err := s.CheckConflicts(ctx, leadIDs)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		if !input.Force {
			return nil, &ConflictError{LeadIDs: conflicts}
		}
		s.logger.Warn("creating campaign despite conflicts",
			zap.String("name", name),
			zap.Strings("conflictingLeadIds", conflicts),
		)
	}

	now := s.now().UTC()
	campaign := &domain.Campaign{
		ID:        s.newID(),
		Name:      name,
		Status:    domain.CampaignStatusActive,
		Members:   make([]domain.CampaignMember, 0, len(leadIDs)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, id := range leadIDs {
		campaign.Members = append(campaign.Members, domain.CampaignMember{
			LeadID:      id,
			EmailStatus: domain.EmailStatusDrafted,
			Position:    i,
		})
	}

	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, err
	}

	return campaign, nil
}

func (s *CampaignService) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.campaigns.GetByID(ctx, id)
}

// SetPaused pauses or resumes a campaign. A campaign whose members are all
// done stays completed.
func (s *CampaignService) SetPaused(ctx context.Context, id string, paused bool) (*domain.Campaign, error) {
	campaign, err := s.campaigns.SetPaused(ctx, id, paused)
	if err != nil {
		return nil, err
	}

	s.logger.Info("campaign pause state changed",
		zap.String("campaignId", id),
		zap.Bool("paused", paused),
		zap.String("status", campaign.Status.String()),
	)
	return campaign, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingIDs(want []string, leads []domain.Lead) []string {
	found := make(map[string]struct{}, len(leads))
	for _, l := range leads {
		found[l.ID] = struct{}{}
	}

	var missing []string
	for _, id := range want {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
