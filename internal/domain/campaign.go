package domain

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// CampaignStatus is the aggregate state of a campaign.
type CampaignStatus string

const (
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusPaused    CampaignStatus = "paused"
)

func (s CampaignStatus) String() string { return string(s) }

func (s CampaignStatus) IsValid() bool {
	switch s {
	case CampaignStatusActive, CampaignStatusCompleted, CampaignStatusPaused:
		return true
	}
	return false
}

func ParseCampaignStatusFromString(s string) (CampaignStatus, error) {
	st := CampaignStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid campaign status %q", ErrValidation, s)
	}
	return st, nil
}

// EmailStatus is the per-lead outreach state inside one campaign.
type EmailStatus string

const (
	EmailStatusDrafted   EmailStatus = "drafted"
	EmailStatusSent      EmailStatus = "sent"
	EmailStatusResponded EmailStatus = "responded"
)

func (s EmailStatus) String() string { return string(s) }

func (s EmailStatus) IsValid() bool {
	switch s {
	case EmailStatusDrafted, EmailStatusSent, EmailStatusResponded:
		return true
	}
	return false
}

// Done reports whether the member no longer needs an outbound email.
func (s EmailStatus) Done() bool {
	return s == EmailStatusSent || s == EmailStatusResponded
}

// CampaignMember links a lead to a campaign.
type CampaignMember struct {
	LeadID      string
	EmailStatus EmailStatus
	Position    int
}

// Campaign groups leads worked together.
type Campaign struct {
	ID        string
	Name      string
	Status    CampaignStatus
	Members   []CampaignMember
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Member returns the membership entry for leadID.
func (c *Campaign) Member(leadID string) (CampaignMember, bool) {
	for _, m := range c.Members {
		if m.LeadID == leadID {
			return m, true
		}
	}
	return CampaignMember{}, false
}

// AllDone reports whether every member was sent or responded.
// An empty campaign is never done.
func (c *Campaign) AllDone() bool {
	if len(c.Members) == 0 {
		return false
	}
	for _, m := range c.Members {
		if !m.EmailStatus.Done() {
			return false
		}
	}
	return true
}

// EvaluateStatus returns the aggregate status implied by the members.
func (c *Campaign) EvaluateStatus() CampaignStatus {
	if c.AllDone() {
		return CampaignStatusCompleted
	}
	if c.Status == CampaignStatusCompleted {
		return CampaignStatusActive
	}
	return c.Status
}

// PausedStatus returns the status after an operator pause or resume. A
// campaign whose members are all done stays completed either way.
func (c *Campaign) PausedStatus(paused bool) CampaignStatus {
	switch {
	case c.AllDone():
		return CampaignStatusCompleted
	case paused:
		return CampaignStatusPaused
	default:
		return CampaignStatusActive
	}
}

// PendingLeadIDs returns drafted members in position order.
func (c *Campaign) PendingLeadIDs() []string {
	ids := make([]string, 0, len(c.Members))
	for _, m := range sortedMembers(c.Members) {
		if m.EmailStatus == EmailStatusDrafted {
			ids = append(ids, m.LeadID)
		}
	}
	return ids
}

func sortedMembers(members []CampaignMember) []CampaignMember {
	sorted := slices.Clone(members)
	slices.SortStableFunc(sorted, func(a, b CampaignMember) int {
		return cmp.Compare(a.Position, b.Position)
	})
	return sorted
}
