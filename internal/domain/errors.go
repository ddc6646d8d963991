package domain

import "errors"

var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrNoCredentials    = errors.New("delivery credentials are not configured")
	ErrSuppressed       = errors.New("recipient is suppressed")
	ErrLimitReached     = errors.New("paused: daily limit reached")
	ErrQuotaUnavailable = errors.New("daily send log unavailable")
	ErrDeliveryFailed   = errors.New("delivery failed")
)
