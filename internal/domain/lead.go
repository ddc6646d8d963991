package domain

import (
	"fmt"
	"strings"
	"time"
)

// LeadStatus represents where a lead sits in the outreach lifecycle.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusResponded LeadStatus = "responded"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusClosed    LeadStatus = "closed"
	LeadStatusRejected  LeadStatus = "rejected"
)

func (s LeadStatus) String() string { return string(s) }

func (s LeadStatus) IsValid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusResponded,
		LeadStatusQualified, LeadStatusClosed, LeadStatusRejected:
		return true
	}
	return false
}

func ParseLeadStatusFromString(s string) (LeadStatus, error) {
	st := LeadStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid lead status %q", ErrValidation, s)
	}
	return st, nil
}

// Lead is a prospect business the engine may contact.
type Lead struct {
	ID              string
	BusinessName    string
	ContactName     string
	Email           *string
	Status          LeadStatus
	Score           int
	Tags            []string
	LastContactedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Address returns the normalized contact address, or "" when the lead has none.
func (l Lead) Address() string {
	if l.Email == nil {
		return ""
	}
	return NormalizeAddress(*l.Email)
}

// NormalizeAddress trims and lower-cases an email address for comparisons.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// SendTransition returns the statuses a successful send moves a lead out of
// and the status it moves it to.
func SendTransition() (from []LeadStatus, to LeadStatus) {
	return []LeadStatus{LeadStatusNew}, LeadStatusContacted
}

// ResponseTransition is SendTransition for an inbound reply.
func ResponseTransition() (from []LeadStatus, to LeadStatus) {
	return []LeadStatus{LeadStatusNew, LeadStatusContacted}, LeadStatusResponded
}
