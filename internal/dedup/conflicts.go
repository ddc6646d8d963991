// Package dedup detects leads already being worked by another active campaign.
package dedup

import "github.com/kursadbilgin/outreach-engine/internal/domain"

// FindConflicts returns the candidate lead IDs that are mid-outreach in an
// active campaign other than excludeCampaignID. Pass "" when the campaign
// being created has no ID yet.
func FindConflicts(candidateLeadIDs []string, campaigns []domain.Campaign, excludeCampaignID string) map[string]struct{} {
	conflicts := make(map[string]struct{})
	if len(candidateLeadIDs) == 0 {
		return conflicts
	}

	candidates := make(map[string]struct{}, len(candidateLeadIDs))
	for _, id := range candidateLeadIDs {
		candidates[id] = struct{}{}
	}

	for i := range campaigns {
		c := &campaigns[i]
		if c.ID == excludeCampaignID || c.Status != domain.CampaignStatusActive {
			continue
		}
		for _, m := range c.Members {
			if _, ok := candidates[m.LeadID]; !ok {
				continue
			}
			if m.EmailStatus == domain.EmailStatusDrafted || m.EmailStatus == domain.EmailStatusSent {
				conflicts[m.LeadID] = struct{}{}
			}
		}
	}

	return conflicts
}
