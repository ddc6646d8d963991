package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/observability"
	"github.com/kursadbilgin/outreach-engine/internal/quota"
	"github.com/kursadbilgin/outreach-engine/internal/repository"
	"go.uber.org/zap"
)

const defaultWarmupCheckInterval = 5 * time.Minute

// WarmupScheduler advances the warmup day count once per UTC day and keeps
// the remaining-quota gauge fresh.
type WarmupScheduler struct {
	warmup   repository.WarmupRepository
	settings SendSettingsLoader
	tracker  *quota.Tracker
	metrics  *observability.Metrics
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time
}

func NewWarmupScheduler(
	warmup repository.WarmupRepository,
	settings SendSettingsLoader,
	tracker *quota.Tracker,
	interval time.Duration,
	logger *zap.Logger,
) (*WarmupScheduler, error) {
	if warmup == nil {
		return nil, fmt.Errorf("warmup repository is required")
	}
	if interval <= 0 {
		interval = defaultWarmupCheckInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WarmupScheduler{
		warmup:   warmup,
		settings: settings,
		tracker:  tracker,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}, nil
}

func (s *WarmupScheduler) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *WarmupScheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.tick(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("warmup initial check failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("warmup check failed", zap.Error(err))
			}
		}
	}
}

func (s *WarmupScheduler) tick(ctx context.Context) error {
	day := domain.DayKey(s.now())

	advanced, err := s.warmup.AdvanceIfNewDay(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to advance warmup day: %w", err)
	}
	if advanced {
		s.logger.Info("warmup day advanced", zap.String("day", day))
	}

	s.refreshQuotaGauge(ctx)
	return nil
}

func (s *WarmupScheduler) refreshQuotaGauge(ctx context.Context) {
	if s.metrics == nil || s.settings == nil || s.tracker == nil {
		return
	}

	settings, err := s.settings.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to load send settings for quota gauge", zap.Error(err))
		return
	}
	limit := quota.EffectiveLimit(settings.DailyLimit, settings.Warmup)
	s.metrics.SetQuotaRemaining(s.tracker.Remaining(ctx, limit))
}
