package provider

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"strings"

	"gopkg.in/gomail.v2"
)

// SMTPConfig holds the mailbox credentials for SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

func (c SMTPConfig) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("smtp host is required")
	}
	if c.Port <= 0 {
		return fmt.Errorf("smtp port must be positive")
	}
	return nil
}

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender delivers messages through an SMTP relay.
type SMTPSender struct {
	dialer mailDialer
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

// Send dials per message. gomail has no context support, so cancellation is
// only honoured before the dial starts.
func (s *SMTPSender) Send(ctx context.Context, msg Message) (*Response, error) {
	if s == nil || s.dialer == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, &ProviderError{Provider: "smtp", Message: "send canceled", Cause: err}
	}

	m := gomail.NewMessage()
	if msg.FromName != "" {
		m.SetAddressHeader("From", msg.From, msg.FromName)
	} else {
		m.SetHeader("From", msg.From)
	}
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("X-Tracking-ID", msg.TrackingID)
	m.SetBody("text/plain", msg.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return nil, &ProviderError{
			Provider:   "smtp",
			StatusCode: smtpStatusCode(err),
			Message:    "smtp send failed",
			Transient:  isTransientSMTPError(err),
			Cause:      err,
		}
	}

	return &Response{MessageID: msg.TrackingID}, nil
}

func smtpStatusCode(err error) int {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return protoErr.Code
	}
	return 0
}

// 4xx replies are temporary in SMTP; 5xx are permanent. Dial errors count as transient.
func isTransientSMTPError(err error) bool {
	code := smtpStatusCode(err)
	if code == 0 {
		return true
	}
	return code >= 400 && code < 500
}
