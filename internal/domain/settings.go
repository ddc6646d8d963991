package domain

import (
	"fmt"
	"strings"
	"time"
)

// DayFormat is the layout of daily send log keys.
const DayFormat = "2006-01-02"

// DayKey returns the UTC calendar day of t.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayFormat)
}

// SenderAccount identifies the mailbox outreach is sent from.
type SenderAccount struct {
	Email string
	Name  string
}

// Validate fails with ErrNoCredentials when no sender mailbox is configured.
func (a SenderAccount) Validate() error {
	if strings.TrimSpace(a.Email) == "" {
		return fmt.Errorf("%w: sender email is empty", ErrNoCredentials)
	}
	return nil
}

// BusinessProfile carries the sender identity used in templates and footers.
type BusinessProfile struct {
	Name               string
	PostalAddress      string
	UnsubscribeMessage string
}

// Warmup is the ramp state of the sending identity.
type Warmup struct {
	Enabled  bool
	DayCount int
}

// SendSettings is everything the dispatcher needs to know before a batch.
type SendSettings struct {
	DailyLimit int
	Warmup     Warmup
	Sender     SenderAccount
	Profile    BusinessProfile
}
