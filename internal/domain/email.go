package domain

import "time"

// ABGroup labels the cohort a send belongs to.
type ABGroup string

const (
	GroupA ABGroup = "A"
	GroupB ABGroup = "B"
)

func (g ABGroup) String() string { return string(g) }

// TemplateVariation selects the length of the rendered template.
type TemplateVariation string

const (
	VariationShort  TemplateVariation = "short"
	VariationMedium TemplateVariation = "medium"
)

func (v TemplateVariation) String() string { return string(v) }

// EmailRecord is one transmitted message. It is written once at confirmed
// delivery; only the engagement timestamps change afterwards.
type EmailRecord struct {
	ID          string
	CampaignID  *string
	LeadID      string
	From        string
	To          string
	Subject     string
	Body        string
	Variation   TemplateVariation
	Group       ABGroup
	TrackingID  string
	CreatedAt   time.Time
	SentAt      time.Time
	OpenedAt    *time.Time
	ClickedAt   *time.Time
	RespondedAt *time.Time
	BouncedAt   *time.Time
}
