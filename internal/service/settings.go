package service

import (
	"context"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/repository"
	"go.uber.org/zap"
)

// SendSettingsLoader resolves the settings in force for the next batch.
type SendSettingsLoader interface {
	Load(ctx context.Context) (domain.SendSettings, error)
}

// SettingsLoader combines static configuration with the persisted warmup
// day count.
type SettingsLoader struct {
	base   domain.SendSettings
	warmup repository.WarmupRepository
	logger *zap.Logger
}

func NewSettingsLoader(
	base domain.SendSettings,
	warmup repository.WarmupRepository,
	logger *zap.Logger,
) (*SettingsLoader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SettingsLoader{
		base:   base,
		warmup: warmup,
		logger: logger,
	}, nil
}

// Load never fails on an unreadable warmup state; it falls back to day one,
// the smallest step of the ramp.
func (l *SettingsLoader) Load(ctx context.Context) (domain.SendSettings, error) {
	settings := l.base
	if !settings.Warmup.Enabled || l.warmup == nil {
		return settings, nil
	}

	dayCount, err := l.warmup.DayCount(ctx)
	if err != nil {
		l.logger.Warn("warmup state unavailable, using first ramp step", zap.Error(err))
		dayCount = 1
	}
	settings.Warmup.DayCount = dayCount

	return settings, nil
}
