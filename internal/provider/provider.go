package provider

import (
	"context"
	"fmt"
	"strings"
)

// Sender is the outbound email delivery port.
type Sender interface {
	Send(ctx context.Context, msg Message) (*Response, error)
}

// Message is a fully composed outbound email.
type Message struct {
	From       string
	FromName   string
	To         string
	Subject    string
	Body       string
	TrackingID string
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.From) == "" {
		return fmt.Errorf("sender address is required")
	}
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("recipient address is required")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("subject is required")
	}
	if strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("body is required")
	}
	return nil
}

// Response stores provider call metadata for logging.
type Response struct {
	StatusCode int
	MessageID  string
}
