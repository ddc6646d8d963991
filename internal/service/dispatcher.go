package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/envelope"
	"github.com/kursadbilgin/outreach-engine/internal/observability"
	"github.com/kursadbilgin/outreach-engine/internal/provider"
	"github.com/kursadbilgin/outreach-engine/internal/quota"
	"github.com/kursadbilgin/outreach-engine/internal/repository"
	"go.uber.org/zap"
)

const defaultSendDelay = 2 * time.Second

// SentNotifier is told about every committed send.
type SentNotifier interface {
	OnSent(ctx context.Context, lead domain.Lead, campaignID *string, sentAt time.Time) error
}

// Progress is published after every processed candidate.
type Progress struct {
	Completed      int `json:"completed"`
	Total          int `json:"total"`
	RemainingQuota int `json:"remainingQuota"`
}

// BatchRequest is an ordered list of candidates. CampaignID is nil for
// sends outside a campaign.
type BatchRequest struct {
	CampaignID *string
	Leads      []domain.Lead
	OnProgress func(Progress)
}

// SendFailure describes a candidate whose delivery failed.
type SendFailure struct {
	LeadID string `json:"leadId"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

type BatchResult struct {
	Sent              int           `json:"sent"`
	SkippedSuppressed int           `json:"skippedSuppressed"`
	SkippedNoAddress  int           `json:"skippedNoAddress"`
	Failed            int           `json:"failed"`
	LimitReached      bool          `json:"limitReached"`
	Aborted           bool          `json:"aborted"`
	Failures          []SendFailure `json:"failures,omitempty"`
}

// Outcome is the batch metrics label.
func (r *BatchResult) Outcome() string {
	switch {
	case r.Aborted:
		return "aborted"
	case r.LimitReached:
		return "limit_reached"
	default:
		return "completed"
	}
}

// Dispatcher runs send batches: one goroutine per batch, candidates in
// order, quota admission through the shared tracker.
type Dispatcher struct {
	settings     SendSettingsLoader
	tracker      *quota.Tracker
	suppressions repository.SuppressionRepository
	renderer     envelope.Renderer
	sender       provider.Sender
	notifier     SentNotifier
	leads        repository.LeadRepository
	campaigns    repository.CampaignRepository
	logger       *zap.Logger
	metrics      *observability.Metrics
	delay        time.Duration
	now          func() time.Time
	newID        func() string
	sleep        func(ctx context.Context, d time.Duration) error
}

type DispatcherDeps struct {
	Settings     SendSettingsLoader
	Tracker      *quota.Tracker
	Suppressions repository.SuppressionRepository
	Renderer     envelope.Renderer
	// Sender may be nil when no delivery credentials are configured; every
	// batch then fails with domain.ErrNoCredentials.
	Sender    provider.Sender
	Notifier  SentNotifier
	Leads     repository.LeadRepository
	Campaigns repository.CampaignRepository
}

func NewDispatcher(deps DispatcherDeps, delay time.Duration, logger *zap.Logger) (*Dispatcher, error) {
	if deps.Settings == nil {
		return nil, fmt.Errorf("settings loader is required")
	}
	if deps.Tracker == nil {
		return nil, fmt.Errorf("quota tracker is required")
	}
	if deps.Suppressions == nil {
		return nil, fmt.Errorf("suppression registry is required")
	}
	if deps.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if deps.Notifier == nil {
		return nil, fmt.Errorf("status propagator is required")
	}
	if delay < 0 {
		delay = defaultSendDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		settings:     deps.Settings,
		tracker:      deps.Tracker,
		suppressions: deps.Suppressions,
		renderer:     deps.Renderer,
		sender:       deps.Sender,
		notifier:     deps.Notifier,
		leads:        deps.Leads,
		campaigns:    deps.Campaigns,
		logger:       logger,
		delay:        delay,
		now:          time.Now,
		newID:        uuid.NewString,
		sleep:        sleepWithContext,
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// Run processes req in a single pass. Configuration errors are returned
// before any candidate is touched. A non-nil result is returned together
// with an error only when the send log became unusable mid-batch.
func (d *Dispatcher) Run(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	settings, err := d.prepare(ctx)
	if err != nil {
		return nil, err
	}
	return d.dispatch(ctx, settings, req)
}

// SendOne sends to a single lead. Unlike a batch it reports skip conditions
// as errors: domain.ErrValidation without an address, domain.ErrSuppressed,
// domain.ErrLimitReached, and domain.ErrDeliveryFailed on transport errors.
// With a campaign, the campaign must not be paused and the lead must be a
// member that has not been mailed yet (domain.ErrConflict otherwise).
func (d *Dispatcher) SendOne(ctx context.Context, leadID string, campaignID *string) (*BatchResult, error) {
	if d.leads == nil {
		return nil, fmt.Errorf("lead repository is not configured")
	}

	settings, err := d.prepare(ctx)
	if err != nil {
		return nil, err
	}

	lead, err := d.leads.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if campaignID != nil && *campaignID != "" {
		if err := d.checkCampaignMember(ctx, *campaignID, lead.ID); err != nil {
			return nil, err
		}
	}
	if lead.Address() == "" {
		return nil, fmt.Errorf("%w: lead has no email address", domain.ErrValidation)
	}

	suppressed, err := d.suppressions.IsSuppressed(ctx, lead.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to check suppression list: %w", err)
	}
	if suppressed {
		return nil, domain.ErrSuppressed
	}

	limit := quota.EffectiveLimit(settings.DailyLimit, settings.Warmup)
	if d.tracker.Remaining(ctx, limit) == 0 {
		return nil, domain.ErrLimitReached
	}

	result, err := d.dispatch(ctx, settings, BatchRequest{
		CampaignID: campaignID,
		Leads:      []domain.Lead{*lead},
	})
	if err != nil {
		return result, err
	}

	switch {
	case result.LimitReached:
		return result, domain.ErrLimitReached
	case result.SkippedSuppressed > 0:
		return result, domain.ErrSuppressed
	case result.Aborted:
		return result, context.Cause(ctx)
	case result.Failed > 0:
		return result, fmt.Errorf("%w: %s", domain.ErrDeliveryFailed, result.Failures[0].Error)
	}
	return result, nil
}

func (d *Dispatcher) checkCampaignMember(ctx context.Context, campaignID string, leadID string) error {
	if d.campaigns == nil {
		return fmt.Errorf("campaign repository is not configured")
	}

	campaign, err := d.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign.Status == domain.CampaignStatusPaused {
		return fmt.Errorf("%w: campaign %s is paused", domain.ErrConflict, campaignID)
	}

	member, ok := campaign.Member(leadID)
	if !ok {
		return fmt.Errorf("%w: lead %s is not a member of campaign %s", domain.ErrNotFound, leadID, campaignID)
	}
	if member.EmailStatus != domain.EmailStatusDrafted {
		return fmt.Errorf("%w: lead %s was already mailed in campaign %s", domain.ErrConflict, leadID, campaignID)
	}
	return nil
}

// SendCampaign sends to every drafted member of a campaign in position
// order. Paused campaigns are refused.
func (d *Dispatcher) SendCampaign(ctx context.Context, campaignID string, onProgress func(Progress)) (*BatchResult, error) {
	if d.leads == nil || d.campaigns == nil {
		return nil, fmt.Errorf("lead and campaign repositories are not configured")
	}

	campaign, err := d.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status == domain.CampaignStatusPaused {
		return nil, fmt.Errorf("%w: campaign %s is paused", domain.ErrConflict, campaignID)
	}

	leads, err := d.leads.GetByIDs(ctx, campaign.PendingLeadIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign leads: %w", err)
	}

	return d.Run(ctx, BatchRequest{
		CampaignID: &campaign.ID,
		Leads:      leads,
		OnProgress: onProgress,
	})
}

func (d *Dispatcher) prepare(ctx context.Context) (domain.SendSettings, error) {
	settings, err := d.settings.Load(ctx)
	if err != nil {
		return domain.SendSettings{}, fmt.Errorf("failed to load send settings: %w", err)
	}
	if d.sender == nil {
		return domain.SendSettings{}, fmt.Errorf("%w: no delivery provider", domain.ErrNoCredentials)
	}
	if err := settings.Sender.Validate(); err != nil {
		return domain.SendSettings{}, err
	}
	return settings, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, settings domain.SendSettings, req BatchRequest) (*BatchResult, error) {
	logger := observability.WithContextLogger(d.logger, ctx)
	limit := quota.EffectiveLimit(settings.DailyLimit, settings.Warmup)

	builder, err := envelope.NewBuilder(d.renderer, settings.Profile)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{}
	total := len(req.Leads)
	defer func() {
		d.metrics.IncBatchFinished(result.Outcome())
		d.metrics.SetQuotaRemaining(d.tracker.Remaining(context.WithoutCancel(ctx), limit))
	}()

	logger.Info("batch started",
		zap.Int("candidates", total),
		zap.Int("effectiveLimit", limit),
	)

	for i, lead := range req.Leads {
		if ctx.Err() != nil {
			result.Aborted = true
			break
		}

		outcome, err := d.processCandidate(ctx, logger, builder, settings.Sender, req.CampaignID, lead, limit, result)
		if err != nil {
			logger.Error("batch halted", zap.String("leadId", lead.ID), zap.Error(err))
			d.publishProgress(ctx, req.OnProgress, i, total, limit)
			return result, err
		}
		if outcome == outcomeHalted {
			result.LimitReached = true
			logger.Info("batch paused: daily limit reached", zap.Int("remainingCandidates", total-i))
			d.publishProgress(ctx, req.OnProgress, i, total, limit)
			break
		}
		if outcome == outcomeAborted {
			result.Aborted = true
			d.publishProgress(ctx, req.OnProgress, i, total, limit)
			break
		}

		d.publishProgress(ctx, req.OnProgress, i+1, total, limit)

		if outcome == outcomeSent && i < total-1 && d.delay > 0 {
			if err := d.sleep(ctx, d.delay); err != nil {
				result.Aborted = true
				break
			}
		}
	}

	logger.Info("batch finished",
		zap.Int("sent", result.Sent),
		zap.Int("skippedSuppressed", result.SkippedSuppressed),
		zap.Int("skippedNoAddress", result.SkippedNoAddress),
		zap.Int("failed", result.Failed),
		zap.Bool("limitReached", result.LimitReached),
		zap.Bool("aborted", result.Aborted),
	)

	return result, nil
}

type candidateOutcome int

const (
	outcomeSkipped candidateOutcome = iota
	outcomeSent
	outcomeFailed
	outcomeHalted
	outcomeAborted
)

func (d *Dispatcher) processCandidate(
	ctx context.Context,
	logger *zap.Logger,
	builder *envelope.Builder,
	sender domain.SenderAccount,
	campaignID *string,
	lead domain.Lead,
	limit int,
	result *BatchResult,
) (candidateOutcome, error) {
	address := lead.Address()
	if address == "" {
		result.SkippedNoAddress++
		d.metrics.IncEmailSkipped("no_address")
		return outcomeSkipped, nil
	}

	suppressed, err := d.suppressions.IsSuppressed(ctx, address)
	if err != nil {
		d.recordFailure(logger, result, lead.ID, "suppression_lookup", err)
		return outcomeFailed, nil
	}
	if suppressed {
		result.SkippedSuppressed++
		d.metrics.IncEmailSkipped("suppressed")
		logger.Debug("candidate suppressed", zap.String("leadId", lead.ID))
		return outcomeSkipped, nil
	}

	reservation, err := d.tracker.Reserve(ctx, limit)
	if errors.Is(err, domain.ErrLimitReached) {
		return outcomeHalted, nil
	}
	if err != nil {
		return outcomeHalted, err
	}

	variant := envelope.SelectVariant(result.Sent)
	trackingID := d.newID()
	env, err := builder.Build(lead, variant, trackingID)
	if err != nil {
		reservation.Release()
		d.recordFailure(logger, result, lead.ID, "render", err)
		return outcomeFailed, nil
	}

	msg := provider.Message{
		From:       sender.Email,
		FromName:   sender.Name,
		To:         address,
		Subject:    env.Subject,
		Body:       env.Body,
		TrackingID: env.TrackingID,
	}

	start := d.now()
	resp, err := d.sender.Send(ctx, msg)
	d.metrics.ObserveDeliveryDuration(d.now().Sub(start))
	if err != nil {
		reservation.Release()
		if ctx.Err() != nil {
			logger.Info("delivery interrupted by abort", zap.String("leadId", lead.ID))
			return outcomeAborted, nil
		}
		d.recordFailure(logger, result, lead.ID, provider.FailureReason(err), err)
		return outcomeFailed, nil
	}

	sentAt := d.now().UTC()
	record := &domain.EmailRecord{
		ID:         d.newID(),
		CampaignID: campaignID,
		LeadID:     lead.ID,
		From:       sender.Email,
		To:         address,
		Subject:    env.Subject,
		Body:       env.Body,
		Variation:  env.Variant.Variation,
		Group:      env.Variant.Group,
		TrackingID: env.TrackingID,
		CreatedAt:  sentAt,
		SentAt:     sentAt,
	}
	if err := reservation.Commit(ctx, record); err != nil {
		return outcomeHalted, fmt.Errorf("delivered email to lead %s could not be recorded: %w", lead.ID, err)
	}

	result.Sent++
	d.metrics.IncEmailSent()

	fields := []zap.Field{
		zap.String("leadId", lead.ID),
		zap.String("trackingId", record.TrackingID),
		zap.String("group", record.Group.String()),
	}
	if resp != nil && resp.MessageID != "" {
		fields = append(fields, zap.String("providerMessageId", resp.MessageID))
	}
	logger.Info("email sent", fields...)

	// Committed state stands even if the batch is aborted from here on.
	if err := d.notifier.OnSent(context.WithoutCancel(ctx), lead, campaignID, sentAt); err != nil {
		logger.Error("status propagation failed after send",
			zap.String("leadId", lead.ID),
			zap.Error(err),
		)
	}

	return outcomeSent, nil
}

func (d *Dispatcher) recordFailure(logger *zap.Logger, result *BatchResult, leadID string, reason string, err error) {
	result.Failed++
	result.Failures = append(result.Failures, SendFailure{
		LeadID: leadID,
		Reason: reason,
		Error:  err.Error(),
	})
	d.metrics.IncEmailFailed(reason)
	logger.Warn("candidate failed",
		zap.String("leadId", leadID),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

func (d *Dispatcher) publishProgress(ctx context.Context, onProgress func(Progress), completed, total, limit int) {
	if onProgress == nil {
		return
	}
	onProgress(Progress{
		Completed:      completed,
		Total:          total,
		RemainingQuota: d.tracker.Remaining(context.WithoutCancel(ctx), limit),
	})
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type QuotaStatus struct {
	Day           string `json:"day"`
	Sent          int    `json:"sent"`
	Limit         int    `json:"limit"`
	Remaining     int    `json:"remaining"`
	WarmupEnabled bool   `json:"warmupEnabled"`
	WarmupDay     int    `json:"warmupDay,omitempty"`
}

// Quota reports today's usage against the effective limit.
func (d *Dispatcher) Quota(ctx context.Context) (QuotaStatus, error) {
	settings, err := d.settings.Load(ctx)
	if err != nil {
		return QuotaStatus{}, fmt.Errorf("failed to load send settings: %w", err)
	}

	sent, err := d.tracker.TodaySendCount(ctx)
	if err != nil {
		return QuotaStatus{}, err
	}

	limit := quota.EffectiveLimit(settings.DailyLimit, settings.Warmup)
	status := QuotaStatus{
		Day:           d.tracker.Today(),
		Sent:          sent,
		Limit:         limit,
		Remaining:     d.tracker.Remaining(ctx, limit),
		WarmupEnabled: settings.Warmup.Enabled,
	}
	if settings.Warmup.Enabled {
		status.WarmupDay = settings.Warmup.DayCount
	}
	return status, nil
}
