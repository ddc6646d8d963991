package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/repository"
	"go.uber.org/zap"
)

// ReplyEvent is an inbound response to a previously sent email.
type ReplyEvent struct {
	TrackingID string
	LeadID     string
	CampaignID string
	ReceivedAt time.Time
}

// StatusPropagator moves lead and campaign lifecycle state after sends and
// replies. Every member write re-evaluates campaign completion.
type StatusPropagator struct {
	leads     repository.LeadRepository
	campaigns repository.CampaignRepository
	emails    repository.EmailRepository
	logger    *zap.Logger
	now       func() time.Time
}

func NewStatusPropagator(
	leads repository.LeadRepository,
	campaigns repository.CampaignRepository,
	emails repository.EmailRepository,
	logger *zap.Logger,
) (*StatusPropagator, error) {
	if leads == nil || campaigns == nil || emails == nil {
		return nil, fmt.Errorf("lead, campaign and email repositories are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StatusPropagator{
		leads:     leads,
		campaigns: campaigns,
		emails:    emails,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (p *StatusPropagator) OnSent(ctx context.Context, lead domain.Lead, campaignID *string, sentAt time.Time) error {
	// The lead may have been closed or rejected since the batch loaded it, so
	// the transition is decided against the stored status.
	from, to := domain.SendTransition()
	contactedAt := sentAt.UTC()
	if _, err := p.leads.TransitionStatus(ctx, lead.ID, from, to, &contactedAt); err != nil {
		return fmt.Errorf("failed to advance lead status: %w", err)
	}

	if campaignID == nil || *campaignID == "" {
		return nil
	}

	campaign, err := p.campaigns.GetByID(ctx, *campaignID)
	if err != nil {
		return fmt.Errorf("failed to load campaign: %w", err)
	}

	member, ok := campaign.Member(lead.ID)
	if !ok {
		p.logger.Warn("sent lead is not a campaign member",
			zap.String("campaignId", *campaignID),
			zap.String("leadId", lead.ID),
		)
		return nil
	}
	// A reply may already have arrived for this member.
	if member.EmailStatus != domain.EmailStatusDrafted {
		return nil
	}

	updated, err := p.campaigns.SetMemberStatus(ctx, *campaignID, lead.ID, domain.EmailStatusSent)
	if err != nil {
		return fmt.Errorf("failed to mark campaign member sent: %w", err)
	}
	if updated.Status == domain.CampaignStatusCompleted {
		p.logger.Info("campaign completed", zap.String("campaignId", updated.ID))
	}

	return nil
}

// OnResponded resolves the email a reply belongs to, stamps it and advances
// the lead and campaign member. It returns the resolved email record.
func (p *StatusPropagator) OnResponded(ctx context.Context, event ReplyEvent) (*domain.EmailRecord, error) {
	record, err := p.resolveRecord(ctx, event)
	if err != nil {
		return nil, err
	}

	receivedAt := event.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = p.now()
	}
	receivedAt = receivedAt.UTC()

	if err := p.emails.MarkResponded(ctx, record.ID, receivedAt); err != nil {
		return nil, fmt.Errorf("failed to stamp response: %w", err)
	}
	if record.RespondedAt == nil {
		record.RespondedAt = &receivedAt
	}

	from, to := domain.ResponseTransition()
	if _, err := p.leads.TransitionStatus(ctx, record.LeadID, from, to, nil); err != nil {
		return nil, fmt.Errorf("failed to advance lead status: %w", err)
	}

	campaignID := strings.TrimSpace(event.CampaignID)
	if campaignID == "" && record.CampaignID != nil {
		campaignID = *record.CampaignID
	}
	if campaignID == "" {
		return record, nil
	}

	if _, err := p.campaigns.SetMemberStatus(ctx, campaignID, record.LeadID, domain.EmailStatusResponded); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			p.logger.Warn("reply for lead outside campaign",
				zap.String("campaignId", campaignID),
				zap.String("leadId", record.LeadID),
			)
			return record, nil
		}
		return nil, fmt.Errorf("failed to mark campaign member responded: %w", err)
	}

	return record, nil
}

func (p *StatusPropagator) resolveRecord(ctx context.Context, event ReplyEvent) (*domain.EmailRecord, error) {
	trackingID := strings.TrimSpace(event.TrackingID)
	leadID := strings.TrimSpace(event.LeadID)

	if trackingID != "" {
		record, err := p.emails.GetByTrackingID(ctx, trackingID)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, domain.ErrNotFound) || leadID == "" {
			return nil, fmt.Errorf("failed to resolve email by tracking id: %w", err)
		}
	}

	if leadID == "" {
		return nil, fmt.Errorf("%w: reply carries no tracking id or lead id", domain.ErrValidation)
	}

	record, err := p.emails.LatestSentForLead(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve latest email for lead: %w", err)
	}
	return record, nil
}
