package service

import (
	"context"
	"sync"
	"time"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/provider"
	"github.com/kursadbilgin/outreach-engine/internal/queue"
	"github.com/kursadbilgin/outreach-engine/internal/repository"
)

var (
	_ repository.LeadRepository        = (*fakeLeadRepo)(nil)
	_ repository.CampaignRepository    = (*fakeCampaignRepo)(nil)
	_ repository.EmailRepository       = (*fakeEmailRepo)(nil)
	_ repository.SuppressionRepository = (*fakeSuppressionRepo)(nil)
	_ repository.WarmupRepository      = (*fakeWarmupRepo)(nil)
	_ provider.Sender                  = (*fakeSender)(nil)
	_ queue.Consumer                   = (*fakeConsumer)(nil)
	_ queue.Publisher                  = (*fakePublisher)(nil)
)

type fakeLeadRepo struct {
	createFn     func(ctx context.Context, l *domain.Lead) error
	getByIDFn    func(ctx context.Context, id string) (*domain.Lead, error)
	getByIDsFn   func(ctx context.Context, ids []string) ([]domain.Lead, error)
	transitionFn func(ctx context.Context, id string, from []domain.LeadStatus, to domain.LeadStatus, lastContactedAt *time.Time) (bool, error)
}

func (f *fakeLeadRepo) Create(ctx context.Context, l *domain.Lead) error {
	if f.createFn != nil {
		return f.createFn(ctx, l)
	}
	return nil
}

func (f *fakeLeadRepo) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLeadRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Lead, error) {
	if f.getByIDsFn != nil {
		return f.getByIDsFn(ctx, ids)
	}
	return nil, nil
}

func (f *fakeLeadRepo) TransitionStatus(
	ctx context.Context,
	id string,
	from []domain.LeadStatus,
	to domain.LeadStatus,
	lastContactedAt *time.Time,
) (bool, error) {
	if f.transitionFn != nil {
		return f.transitionFn(ctx, id, from, to, lastContactedAt)
	}
	return false, nil
}

// leadsByID serves GetByID and GetByIDs from a fixed set.
func leadsByID(leads ...domain.Lead) *fakeLeadRepo {
	index := make(map[string]domain.Lead, len(leads))
	for _, l := range leads {
		index[l.ID] = l
	}

	return &fakeLeadRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Lead, error) {
			l, ok := index[id]
			if !ok {
				return nil, domain.ErrNotFound
			}
			return &l, nil
		},
		getByIDsFn: func(ctx context.Context, ids []string) ([]domain.Lead, error) {
			out := make([]domain.Lead, 0, len(ids))
			for _, id := range ids {
				if l, ok := index[id]; ok {
					out = append(out, l)
				}
			}
			return out, nil
		},
	}
}

type fakeCampaignRepo struct {
	createFn          func(ctx context.Context, c *domain.Campaign) error
	getByIDFn         func(ctx context.Context, id string) (*domain.Campaign, error)
	listActiveFn      func(ctx context.Context) ([]domain.Campaign, error)
	setPausedFn       func(ctx context.Context, id string, paused bool) (*domain.Campaign, error)
	setMemberStatusFn func(ctx context.Context, campaignID, leadID string, status domain.EmailStatus) (*domain.Campaign, error)
}

func (f *fakeCampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	if f.createFn != nil {
		return f.createFn(ctx, c)
	}
	return nil
}

func (f *fakeCampaignRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCampaignRepo) ListActive(ctx context.Context) ([]domain.Campaign, error) {
	if f.listActiveFn != nil {
		return f.listActiveFn(ctx)
	}
	return nil, nil
}

func (f *fakeCampaignRepo) SetPaused(ctx context.Context, id string, paused bool) (*domain.Campaign, error) {
	if f.setPausedFn != nil {
		return f.setPausedFn(ctx, id, paused)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCampaignRepo) SetMemberStatus(ctx context.Context, campaignID, leadID string, status domain.EmailStatus) (*domain.Campaign, error) {
	if f.setMemberStatusFn != nil {
		return f.setMemberStatusFn(ctx, campaignID, leadID, status)
	}
	return &domain.Campaign{ID: campaignID, Status: domain.CampaignStatusActive}, nil
}

type fakeEmailRepo struct {
	sentOnFn            func(ctx context.Context, day string) (int, error)
	commitSendFn        func(ctx context.Context, record *domain.EmailRecord, day string) error
	getByTrackingIDFn   func(ctx context.Context, trackingID string) (*domain.EmailRecord, error)
	latestSentForLeadFn func(ctx context.Context, leadID string) (*domain.EmailRecord, error)
	markRespondedFn     func(ctx context.Context, id string, at time.Time) error
}

func (f *fakeEmailRepo) SentOn(ctx context.Context, day string) (int, error) {
	if f.sentOnFn != nil {
		return f.sentOnFn(ctx, day)
	}
	return 0, nil
}

func (f *fakeEmailRepo) CommitSend(ctx context.Context, record *domain.EmailRecord, day string) error {
	if f.commitSendFn != nil {
		return f.commitSendFn(ctx, record, day)
	}
	return nil
}

func (f *fakeEmailRepo) GetByTrackingID(ctx context.Context, trackingID string) (*domain.EmailRecord, error) {
	if f.getByTrackingIDFn != nil {
		return f.getByTrackingIDFn(ctx, trackingID)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeEmailRepo) LatestSentForLead(ctx context.Context, leadID string) (*domain.EmailRecord, error) {
	if f.latestSentForLeadFn != nil {
		return f.latestSentForLeadFn(ctx, leadID)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeEmailRepo) MarkResponded(ctx context.Context, id string, at time.Time) error {
	if f.markRespondedFn != nil {
		return f.markRespondedFn(ctx, id, at)
	}
	return nil
}

type fakeSuppressionRepo struct {
	isSuppressedFn func(ctx context.Context, address string) (bool, error)
	suppressFn     func(ctx context.Context, address string, reason string) error
}

func (f *fakeSuppressionRepo) IsSuppressed(ctx context.Context, address string) (bool, error) {
	if f.isSuppressedFn != nil {
		return f.isSuppressedFn(ctx, address)
	}
	return false, nil
}

func (f *fakeSuppressionRepo) Suppress(ctx context.Context, address string, reason string) error {
	if f.suppressFn != nil {
		return f.suppressFn(ctx, address, reason)
	}
	return nil
}

func suppressing(addresses ...string) *fakeSuppressionRepo {
	set := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		set[domain.NormalizeAddress(a)] = struct{}{}
	}
	return &fakeSuppressionRepo{
		isSuppressedFn: func(ctx context.Context, address string) (bool, error) {
			_, ok := set[domain.NormalizeAddress(address)]
			return ok, nil
		},
	}
}

type fakeWarmupRepo struct {
	dayCountFn        func(ctx context.Context) (int, error)
	advanceIfNewDayFn func(ctx context.Context, day string) (bool, error)
}

func (f *fakeWarmupRepo) DayCount(ctx context.Context) (int, error) {
	if f.dayCountFn != nil {
		return f.dayCountFn(ctx)
	}
	return 0, nil
}

func (f *fakeWarmupRepo) AdvanceIfNewDay(ctx context.Context, day string) (bool, error) {
	if f.advanceIfNewDayFn != nil {
		return f.advanceIfNewDayFn(ctx, day)
	}
	return false, nil
}

type fakeSender struct {
	sendFn func(ctx context.Context, msg provider.Message) (*provider.Response, error)
}

func (f *fakeSender) Send(ctx context.Context, msg provider.Message) (*provider.Response, error) {
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return &provider.Response{StatusCode: 250}, nil
}

type fakeNotifier struct {
	onSentFn func(ctx context.Context, lead domain.Lead, campaignID *string, sentAt time.Time) error
}

func (f *fakeNotifier) OnSent(ctx context.Context, lead domain.Lead, campaignID *string, sentAt time.Time) error {
	if f.onSentFn != nil {
		return f.onSentFn(ctx, lead, campaignID, sentAt)
	}
	return nil
}

type fakeSettings struct {
	settings domain.SendSettings
	err      error
}

func (f *fakeSettings) Load(context.Context) (domain.SendSettings, error) {
	return f.settings, f.err
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queue string, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	return nil
}

func (f *fakeConsumer) Close() error {
	return nil
}

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, msg queue.ReplyMessage) error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.ReplyMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	return nil
}

// memoryLedger is an in-memory send log with optional injected failures.
type memoryLedger struct {
	mu        sync.Mutex
	counts    map[string]int
	records   []domain.EmailRecord
	readErr   error
	commitErr error
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{counts: make(map[string]int)}
}

func (l *memoryLedger) SentOn(_ context.Context, day string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return 0, l.readErr
	}
	return l.counts[day], nil
}

func (l *memoryLedger) CommitSend(_ context.Context, record *domain.EmailRecord, day string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.commitErr != nil {
		return l.commitErr
	}
	l.records = append(l.records, *record)
	l.counts[day]++
	return nil
}

func (l *memoryLedger) snapshot() ([]domain.EmailRecord, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for _, c := range l.counts {
		total += c
	}
	return append([]domain.EmailRecord(nil), l.records...), total
}

func strPtr(s string) *string {
	return &s
}
