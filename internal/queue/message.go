package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/outreach-engine/internal/envelope"
)

// ReplyMessage is the broker payload for an inbound reply. The sent email
// is resolved by tracking ID, by the Ref line in the body, or by lead.
type ReplyMessage struct {
	TrackingID    string     `json:"trackingId,omitempty"`
	LeadID        string     `json:"leadId,omitempty"`
	CampaignID    string     `json:"campaignId,omitempty"`
	Body          string     `json:"body,omitempty"`
	ReceivedAt    *time.Time `json:"receivedAt,omitempty"`
	CorrelationID string     `json:"correlationId,omitempty"`
}

func (m ReplyMessage) Validate() error {
	if m.ResolvedTrackingID() == "" && strings.TrimSpace(m.LeadID) == "" {
		return fmt.Errorf("trackingId, leadId or a body reference is required")
	}
	return nil
}

// ResolvedTrackingID returns the explicit tracking ID or the one quoted in
// the reply body.
func (m ReplyMessage) ResolvedTrackingID() string {
	if id := strings.TrimSpace(m.TrackingID); id != "" {
		return id
	}
	if id, ok := envelope.ExtractTrackingID(m.Body); ok {
		return id
	}
	return ""
}
