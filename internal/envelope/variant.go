package envelope

import "github.com/kursadbilgin/outreach-engine/internal/domain"

// Variant is the A/B assignment for one send.
type Variant struct {
	Group     domain.ABGroup
	Variation domain.TemplateVariation
}

// SelectVariant alternates groups by the number of successful sends so far
// in the batch: even positions get A (short), odd positions get B (medium).
func SelectVariant(sentSoFar int) Variant {
	if sentSoFar%2 == 0 {
		return Variant{Group: domain.GroupA, Variation: domain.VariationShort}
	}
	return Variant{Group: domain.GroupB, Variation: domain.VariationMedium}
}
