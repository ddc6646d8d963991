// Package envelope composes outbound messages: template variant, compliance
// footer and tracking reference.
package envelope

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/kursadbilgin/outreach-engine/internal/domain"
)

const (
	footerSeparator           = "\n\n--\n"
	defaultUnsubscribeMessage = `Not interested? Reply "unsubscribe" and we will not contact you again.`
	trackingReferencePrefix   = "Ref: "
)

var trackingReferencePattern = regexp.MustCompile(`Ref:\s*([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})`)

// Envelope is the final message handed to the delivery provider.
type Envelope struct {
	Subject    string
	Body       string
	Variant    Variant
	TrackingID string
}

// Builder is pure: equal inputs always produce byte-identical envelopes.
type Builder struct {
	renderer Renderer
	profile  domain.BusinessProfile
}

func NewBuilder(renderer Renderer, profile domain.BusinessProfile) (*Builder, error) {
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	return &Builder{renderer: renderer, profile: profile}, nil
}

func (b *Builder) Build(lead domain.Lead, variant Variant, trackingID string) (Envelope, error) {
	trackingID = strings.TrimSpace(trackingID)
	if trackingID == "" {
		return Envelope{}, fmt.Errorf("%w: tracking id is required", domain.ErrValidation)
	}

	rendered, err := b.renderer.Render(lead, b.profile, variant.Variation)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{
		Subject:    rendered.Subject,
		Body:       strings.TrimRight(rendered.Body, "\n") + ComplianceFooter(b.profile, trackingID),
		Variant:    variant,
		TrackingID: trackingID,
	}, nil
}

// ComplianceFooter is the unsubscribe notice, postal address and tracking
// reference appended to every outbound body.
func ComplianceFooter(profile domain.BusinessProfile, trackingID string) string {
	message := strings.TrimSpace(profile.UnsubscribeMessage)
	if message == "" {
		message = defaultUnsubscribeMessage
	}

	lines := []string{message}
	identity := make([]string, 0, 2)
	if name := strings.TrimSpace(profile.Name); name != "" {
		identity = append(identity, name)
	}
	if address := strings.TrimSpace(profile.PostalAddress); address != "" {
		identity = append(identity, address)
	}
	if len(identity) > 0 {
		lines = append(lines, strings.Join(identity, ", "))
	}
	lines = append(lines, trackingReferencePrefix+trackingID)

	return footerSeparator + strings.Join(lines, "\n")
}

// ExtractTrackingID finds the tracking reference quoted in reply text.
func ExtractTrackingID(text string) (string, bool) {
	match := trackingReferencePattern.FindStringSubmatch(text)
	if len(match) < 2 {
		return "", false
	}
	id, err := uuid.Parse(match[1])
	if err != nil {
		return "", false
	}
	return id.String(), true
}
