package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/envelope"
	"github.com/kursadbilgin/outreach-engine/internal/provider"
	"github.com/kursadbilgin/outreach-engine/internal/quota"
)

func testSettings(limit int) domain.SendSettings {
	return domain.SendSettings{
		DailyLimit: limit,
		Sender:     domain.SenderAccount{Email: "hello@agency.example", Name: "Dana"},
		Profile: domain.BusinessProfile{
			Name:          "Northwind Web",
			PostalAddress: "1 Main St, Springfield",
		},
	}
}

func testLeads(n int) []domain.Lead {
	leads := make([]domain.Lead, 0, n)
	for i := 1; i <= n; i++ {
		leads = append(leads, domain.Lead{
			ID:           fmt.Sprintf("lead-%d", i),
			BusinessName: fmt.Sprintf("Shop %d", i),
			Email:        strPtr(fmt.Sprintf("owner%d@shop.example", i)),
			Status:       domain.LeadStatusNew,
		})
	}
	return leads
}

type dispatchFixture struct {
	ledger     *memoryLedger
	tracker    *quota.Tracker
	dispatcher *Dispatcher

	mu       sync.Mutex
	messages []provider.Message
	notified []string
	sleeps   int
}

type fixtureOptions struct {
	settings     domain.SendSettings
	suppressions *fakeSuppressionRepo
	sendFn       func(ctx context.Context, msg provider.Message) (*provider.Response, error)
	sleepFn      func(ctx context.Context, d time.Duration) error
	leads        *fakeLeadRepo
	campaigns    *fakeCampaignRepo
	tracker      *quota.Tracker
	noSender     bool
}

func newDispatchFixture(t *testing.T, opts fixtureOptions) *dispatchFixture {
	t.Helper()

	f := &dispatchFixture{ledger: newMemoryLedger()}

	f.tracker = opts.tracker
	if f.tracker == nil {
		tracker, err := quota.NewTracker(f.ledger)
		if err != nil {
			t.Fatalf("quota.NewTracker() error = %v", err)
		}
		f.tracker = tracker
	}

	renderer, err := envelope.NewTextRenderer()
	if err != nil {
		t.Fatalf("NewTextRenderer() error = %v", err)
	}

	suppressions := opts.suppressions
	if suppressions == nil {
		suppressions = &fakeSuppressionRepo{}
	}

	var sender provider.Sender
	if !opts.noSender {
		sender = &fakeSender{sendFn: func(ctx context.Context, msg provider.Message) (*provider.Response, error) {
			if opts.sendFn != nil {
				if resp, err := opts.sendFn(ctx, msg); err != nil {
					return resp, err
				}
			}
			f.mu.Lock()
			f.messages = append(f.messages, msg)
			f.mu.Unlock()
			return &provider.Response{StatusCode: 250}, nil
		}}
	}

	notifier := &fakeNotifier{onSentFn: func(ctx context.Context, lead domain.Lead, campaignID *string, sentAt time.Time) error {
		f.mu.Lock()
		f.notified = append(f.notified, lead.ID)
		f.mu.Unlock()
		return nil
	}}

	dispatcher, err := NewDispatcher(DispatcherDeps{
		Settings:     &fakeSettings{settings: opts.settings},
		Tracker:      f.tracker,
		Suppressions: suppressions,
		Renderer:     renderer,
		Sender:       sender,
		Notifier:     notifier,
		Leads:        opts.leads,
		Campaigns:    opts.campaigns,
	}, time.Second, nil)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}

	dispatcher.sleep = func(ctx context.Context, d time.Duration) error {
		f.mu.Lock()
		f.sleeps++
		f.mu.Unlock()
		if opts.sleepFn != nil {
			return opts.sleepFn(ctx, d)
		}
		return nil
	}

	f.dispatcher = dispatcher
	return f
}

func TestDispatcherWarmupHaltsAtRampLimit(t *testing.T) {
	t.Parallel()

	settings := testSettings(50)
	settings.Warmup = domain.Warmup{Enabled: true, DayCount: 1}
	f := newDispatchFixture(t, fixtureOptions{settings: settings})

	result, err := f.dispatcher.Run(context.Background(), BatchRequest{Leads: testLeads(11)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Sent != 10 {
		t.Fatalf("sent = %d, want 10", result.Sent)
	}
	if !result.LimitReached {
		t.Fatal("expected limitReached")
	}
	if result.Failed != 0 || result.Aborted {
		t.Fatalf("unexpected result: %+v", result)
	}

	records, total := f.ledger.snapshot()
	if total != 10 || len(records) != 10 {
		t.Fatalf("ledger count = %d records = %d, want 10", total, len(records))
	}
	for _, r := range records {
		if r.LeadID == "lead-11" {
			t.Fatal("lead-11 should be left untouched")
		}
	}
	if len(f.messages) != 10 {
		t.Fatalf("deliveries = %d, want 10", len(f.messages))
	}
	if got := result.Outcome(); got != "limit_reached" {
		t.Fatalf("Outcome() = %s, want limit_reached", got)
	}
}

func TestDispatcherSkipsSuppressedLead(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture(t, fixtureOptions{
		settings:     testSettings(50),
		suppressions: suppressing("  OWNER3@shop.example "),
	})

	result, err := f.dispatcher.Run(context.Background(), BatchRequest{Leads: testLeads(5)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Sent != 4 || result.SkippedSuppressed != 1 || result.Failed != 0 {
		t.Fatalf("result = %+v, want 4 sent, 1 suppressed, 0 failed", result)
	}
	for _, msg := range f.messages {
		if msg.To == "owner3@shop.example" {
			t.Fatal("suppressed recipient must never be contacted")
		}
	}
	records, _ := f.ledger.snapshot()
	for _, r := range records {
		if r.LeadID == "lead-3" {
			t.Fatal("no email record may exist for a suppressed recipient")
		}
	}
}

func TestDispatcherDeliveryFailureContinues(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture(t, fixtureOptions{
		settings: testSettings(50),
		sendFn: func(ctx context.Context, msg provider.Message) (*provider.Response, error) {
			if msg.To == "owner2@shop.example" {
				return nil, &provider.ProviderError{Provider: "smtp", StatusCode: 550, Message: "mailbox unavailable"}
			}
			return nil, nil
		},
	})

	result, err := f.dispatcher.Run(context.Background(), BatchRequest{Leads: testLeads(4)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Sent != 3 || result.Failed != 1 || result.LimitReached || result.Aborted {
		t.Fatalf("result = %+v, want 3 sent, 1 failed, not halted", result)
	}
	if len(result.Failures) != 1 || result.Failures[0].LeadID != "lead-2" || result.Failures[0].Reason != "permanent" {
		t.Fatalf("failures = %+v", result.Failures)
	}

	records, total := f.ledger.snapshot()
	if total != 3 {
		t.Fatalf("ledger count = %d, want 3", total)
	}
	for _, r := range records {
		if r.LeadID == "lead-2" {
			t.Fatal("failed delivery must not create an email record")
		}
	}
	if got := f.tracker.Remaining(context.Background(), 50); got != 47 {
		t.Fatalf("Remaining() = %d, want 47", got)
	}
}

func TestDispatcherAlternatesVariantsOverSuccessfulSends(t *testing.T) {
	t.Parallel()

	leads := testLeads(6)
	leads[1].Email = nil
	f := newDispatchFixture(t, fixtureOptions{
		settings:     testSettings(50),
		suppressions: suppressing("owner3@shop.example"),
		sendFn: func(ctx context.Context, msg provider.Message) (*provider.Response, error) {
			if msg.To == "owner5@shop.example" {
				return nil, errors.New("connection reset")
			}
			return nil, nil
		},
	})

	result, err := f.dispatcher.Run(context.Background(), BatchRequest{Leads: leads})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Sent != 3 || result.SkippedNoAddress != 1 || result.SkippedSuppressed != 1 || result.Failed != 1 {
		t.Fatalf("result = %+v", result)
	}

	records, _ := f.ledger.snapshot()
	wantGroups := []domain.ABGroup{domain.GroupA, domain.GroupB, domain.GroupA}
	wantLeads := []string{"lead-1", "lead-4", "lead-6"}
	for i, r := range records {
		if r.Group != wantGroups[i] || r.LeadID != wantLeads[i] {
			t.Fatalf("record[%d] = %s/%s, want %s/%s", i, r.LeadID, r.Group, wantLeads[i], wantGroups[i])
		}
	}
	if records[1].Variation != domain.VariationMedium {
		t.Fatalf("group B variation = %s, want medium", records[1].Variation)
	}
}

func TestDispatcherRecordCarriesEnvelope(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture(t, fixtureOptions{settings: testSettings(50)})

	if _, err := f.dispatcher.Run(context.Background(), BatchRequest{
		CampaignID: strPtr("camp-1"),
		Leads:      testLeads(1),
	}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	records, _ := f.ledger.snapshot()
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	r := records[0]
	if r.CampaignID == nil || *r.CampaignID != "camp-1" {
		t.Fatalf("CampaignID = %v, want camp-1", r.CampaignID)
	}
	if r.From != "hello@agency.example" || r.To != "owner1@shop.example" {
		t.Fatalf("from/to = %s/%s", r.From, r.To)
	}
	if r.TrackingID == "" || !strings.Contains(r.Body, "Ref: "+r.TrackingID) {
		t.Fatalf("body should embed tracking id %q:\n%s", r.TrackingID, r.Body)
	}
	if r.Body != f.messages[0].Body || r.Subject != f.messages[0].Subject {
		t.Fatal("record must store exactly what was delivered")
	}
	if r.SentAt.IsZero() {
		t.Fatal("SentAt should be stamped")
	}
	if len(f.notified) != 1 || f.notified[0] != "lead-1" {
		t.Fatalf("notified = %v, want [lead-1]", f.notified)
	}
}

func TestDispatcherNoCredentials(t *testing.T) {
	t.Parallel()

	t.Run("empty sender address", func(t *testing.T) {
		t.Parallel()

		settings := testSettings(50)
		settings.Sender.Email = ""
		f := newDispatchFixture(t, fixtureOptions{settings: settings})

		_, err := f.dispatcher.Run(context.Background(), BatchRequest{Leads: testLeads(3)})
		if !errors.Is(err, domain.ErrNoCredentials) {
			t.Fatalf("Run() error = %v, want ErrNoCredentials", err)
		}
		if len(f.messages) != 0 {
			t.Fatal("no candidate may be touched on configuration error")
		}
	})

	t.Run("no delivery provider", func(t *testing.T) {
		t.Parallel()

		f := newDispatchFixture(t, fixtureOptions{settings: testSettings(50), noSender: true})

		_, err := f.dispatcher.Run(context.Background(), BatchRequest{Leads: testLeads(3)})
		if !errors.Is(err, domain.ErrNoCredentials) {
			t.Fatalf("Run() error = %v, want ErrNoCredentials", err)
		}
	})
}

func TestDispatcherPacesBetweenSends(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture(t, fixtureOptions{settings: testSettings(50)})

	if _, err := f.dispatcher.Run(context.Background(), BatchRequest{Leads: testLeads(3)}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if f.sleeps != 2 {
		t.Fatalf("sleeps = %d, want 2 (none after the last candidate)", f.sleeps)
	}
}

func TestDispatcherAbortDuringPacing(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newDispatchFixture(t, fixtureOptions{
		settings: testSettings(50),
		sleepFn: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	})

	result, err := f.dispatcher.Run(ctx, BatchRequest{Leads: testLeads(4)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Aborted || result.Sent != 1 {
		t.Fatalf("result = %+v, want aborted after 1 send", result)
	}

	_, total := f.ledger.snapshot()
	if total != 1 {
		t.Fatalf("committed sends = %d, want 1", total)
	}
	if len(f.notified) != 1 {
		t.Fatal("status propagation of a committed send must survive the abort")
	}
}

func TestDispatcherAbortDuringDelivery(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newDispatchFixture(t, fixtureOptions{
		settings: testSettings(50),
		sendFn: func(ctx context.Context, msg provider.Message) (*provider.Response, error) {
			cancel()
			return nil, &provider.ProviderError{Provider: "smtp", Message: "send canceled", Cause: ctx.Err()}
		},
	})

	result, err := f.dispatcher.Run(ctx, BatchRequest{Leads: testLeads(3)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Aborted || result.Sent != 0 || result.Failed != 0 {
		t.Fatalf("result = %+v, want aborted with nothing sent or failed", result)
	}
	if got := f.tracker.Remaining(context.Background(), 50); got != 50 {
		t.Fatalf("Remaining() = %d, want 50 after released reservation", got)
	}
}

func TestDispatcherPublishesProgress(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture(t, fixtureOptions{
		settings:     testSettings(10),
		suppressions: suppressing("owner2@shop.example"),
	})

	var progress []Progress
	_, err := f.dispatcher.Run(context.Background(), BatchRequest{
		Leads:      testLeads(3),
		OnProgress: func(p Progress) { progress = append(progress, p) },
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []Progress{
		{Completed: 1, Total: 3, RemainingQuota: 9},
		{Completed: 2, Total: 3, RemainingQuota: 9},
		{Completed: 3, Total: 3, RemainingQuota: 8},
	}
	if len(progress) != len(want) {
		t.Fatalf("progress = %+v", progress)
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Fatalf("progress[%d] = %+v, want %+v", i, progress[i], want[i])
		}
	}
}

func TestDispatcherPublishesProgressWhenStopping(t *testing.T) {
	t.Parallel()

	t.Run("limit reached", func(t *testing.T) {
		t.Parallel()

		f := newDispatchFixture(t, fixtureOptions{settings: testSettings(2)})

		var progress []Progress
		result, err := f.dispatcher.Run(context.Background(), BatchRequest{
			Leads:      testLeads(4),
			OnProgress: func(p Progress) { progress = append(progress, p) },
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !result.LimitReached {
			t.Fatalf("result = %+v, want limit reached", result)
		}

		want := Progress{Completed: 2, Total: 4, RemainingQuota: 0}
		if len(progress) != 3 || progress[2] != want {
			t.Fatalf("progress = %+v, want final %+v", progress, want)
		}
	})

	t.Run("aborted during delivery", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		calls := 0
		f := newDispatchFixture(t, fixtureOptions{
			settings: testSettings(10),
			sendFn: func(ctx context.Context, msg provider.Message) (*provider.Response, error) {
				calls++
				if calls == 2 {
					cancel()
					return nil, ctx.Err()
				}
				return nil, nil
			},
		})

		var progress []Progress
		result, err := f.dispatcher.Run(ctx, BatchRequest{
			Leads:      testLeads(3),
			OnProgress: func(p Progress) { progress = append(progress, p) },
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !result.Aborted || result.Sent != 1 {
			t.Fatalf("result = %+v, want aborted after 1 send", result)
		}

		want := []Progress{
			{Completed: 1, Total: 3, RemainingQuota: 9},
			{Completed: 1, Total: 3, RemainingQuota: 9},
		}
		if len(progress) != len(want) || progress[0] != want[0] || progress[1] != want[1] {
			t.Fatalf("progress = %+v, want %+v", progress, want)
		}
	})
}

func TestDispatcherConcurrentBatchesNeverExceedLimit(t *testing.T) {
	t.Parallel()

	ledger := newMemoryLedger()
	tracker, err := quota.NewTracker(ledger)
	if err != nil {
		t.Fatalf("quota.NewTracker() error = %v", err)
	}

	const limit = 7
	var delivered atomic.Int32
	var wg sync.WaitGroup
	results := make([]*BatchResult, 3)

	for b := 0; b < 3; b++ {
		f := newDispatchFixture(t, fixtureOptions{
			settings: testSettings(limit),
			tracker:  tracker,
			sendFn: func(ctx context.Context, msg provider.Message) (*provider.Response, error) {
				delivered.Add(1)
				return nil, nil
			},
		})
		f.ledger = ledger

		wg.Add(1)
		go func(i int, d *Dispatcher) {
			defer wg.Done()
			res, err := d.Run(context.Background(), BatchRequest{Leads: testLeads(10)})
			if err != nil {
				t.Errorf("Run() error = %v", err)
				return
			}
			results[i] = res
		}(b, f.dispatcher)
	}
	wg.Wait()

	sent := 0
	for _, r := range results {
		if r != nil {
			sent += r.Sent
		}
	}
	_, total := ledger.snapshot()
	if sent != limit || total != limit || int(delivered.Load()) != limit {
		t.Fatalf("sent = %d ledger = %d delivered = %d, want %d", sent, total, delivered.Load(), limit)
	}
}

func TestDispatcherFailsClosedWhenLogUnreadable(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture(t, fixtureOptions{settings: testSettings(50)})
	f.ledger.readErr = errors.New("connection refused")

	result, err := f.dispatcher.Run(context.Background(), BatchRequest{Leads: testLeads(2)})
	if !errors.Is(err, domain.ErrQuotaUnavailable) {
		t.Fatalf("Run() error = %v, want ErrQuotaUnavailable", err)
	}
	if result == nil || result.Sent != 0 {
		t.Fatalf("result = %+v, want partial result with no sends", result)
	}
	if len(f.messages) != 0 {
		t.Fatal("nothing may be delivered without a readable send log")
	}
}

func TestDispatcherHaltsWhenCommitFails(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture(t, fixtureOptions{settings: testSettings(50)})
	f.ledger.commitErr = errors.New("disk full")

	result, err := f.dispatcher.Run(context.Background(), BatchRequest{Leads: testLeads(3)})
	if err == nil {
		t.Fatal("expected error when a delivered email cannot be recorded")
	}
	if len(f.messages) != 1 {
		t.Fatalf("deliveries = %d, want 1 before halting", len(f.messages))
	}
	if result.Sent != 0 {
		t.Fatalf("sent = %d, want 0", result.Sent)
	}
	if got := f.tracker.Remaining(context.Background(), 50); got != 50 {
		t.Fatalf("Remaining() = %d, want reservation released", got)
	}
}

func TestDispatcherSendOne(t *testing.T) {
	t.Parallel()

	noAddress := domain.Lead{ID: "lead-x", BusinessName: "Nowhere", Status: domain.LeadStatusNew}
	leads := append(testLeads(3), noAddress)

	tests := []struct {
		name         string
		leadID       string
		limit        int
		suppressions *fakeSuppressionRepo
		sendFn       func(ctx context.Context, msg provider.Message) (*provider.Response, error)
		wantErr      error
		wantSent     int
	}{
		{name: "sends", leadID: "lead-1", limit: 5, wantSent: 1},
		{name: "unknown lead", leadID: "missing", limit: 5, wantErr: domain.ErrNotFound},
		{name: "no address", leadID: "lead-x", limit: 5, wantErr: domain.ErrValidation},
		{name: "suppressed", leadID: "lead-2", limit: 5, suppressions: suppressing("owner2@shop.example"), wantErr: domain.ErrSuppressed},
		{name: "limit reached", leadID: "lead-1", limit: 0, wantErr: domain.ErrLimitReached},
		{
			name:   "delivery failure",
			leadID: "lead-3",
			limit:  5,
			sendFn: func(ctx context.Context, msg provider.Message) (*provider.Response, error) {
				return nil, errors.New("connection reset")
			},
			wantErr: domain.ErrDeliveryFailed,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newDispatchFixture(t, fixtureOptions{
				settings:     testSettings(tt.limit),
				suppressions: tt.suppressions,
				sendFn:       tt.sendFn,
				leads:        leadsByID(leads...),
			})

			result, err := f.dispatcher.SendOne(context.Background(), tt.leadID, nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SendOne() error = %v, want %v", err, tt.wantErr)
				}
				_, total := f.ledger.snapshot()
				if total != 0 {
					t.Fatalf("ledger count = %d, want 0", total)
				}
				return
			}
			if err != nil {
				t.Fatalf("SendOne() error = %v", err)
			}
			if result.Sent != tt.wantSent {
				t.Fatalf("sent = %d, want %d", result.Sent, tt.wantSent)
			}
		})
	}
}

func TestDispatcherSendOneWithinCampaign(t *testing.T) {
	t.Parallel()

	members := []domain.CampaignMember{
		{LeadID: "lead-1", EmailStatus: domain.EmailStatusDrafted, Position: 0},
		{LeadID: "lead-2", EmailStatus: domain.EmailStatusSent, Position: 1},
		{LeadID: "lead-3", EmailStatus: domain.EmailStatusResponded, Position: 2},
	}

	tests := []struct {
		name     string
		status   domain.CampaignStatus
		leadID   string
		wantErr  error
		wantSent int
	}{
		{name: "drafted member sends", status: domain.CampaignStatusActive, leadID: "lead-1", wantSent: 1},
		{name: "already sent member", status: domain.CampaignStatusActive, leadID: "lead-2", wantErr: domain.ErrConflict},
		{name: "responded member", status: domain.CampaignStatusActive, leadID: "lead-3", wantErr: domain.ErrConflict},
		{name: "paused campaign", status: domain.CampaignStatusPaused, leadID: "lead-1", wantErr: domain.ErrConflict},
		{name: "lead outside campaign", status: domain.CampaignStatusActive, leadID: "lead-4", wantErr: domain.ErrNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newDispatchFixture(t, fixtureOptions{
				settings: testSettings(50),
				leads:    leadsByID(testLeads(4)...),
				campaigns: &fakeCampaignRepo{
					getByIDFn: func(ctx context.Context, id string) (*domain.Campaign, error) {
						return &domain.Campaign{ID: id, Status: tt.status, Members: members}, nil
					},
				},
			})

			result, err := f.dispatcher.SendOne(context.Background(), tt.leadID, strPtr("camp-1"))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SendOne() error = %v, want %v", err, tt.wantErr)
				}
				if len(f.messages) != 0 {
					t.Fatalf("messages = %d, want none", len(f.messages))
				}
				return
			}
			if err != nil {
				t.Fatalf("SendOne() error = %v", err)
			}
			if result.Sent != tt.wantSent {
				t.Fatalf("sent = %d, want %d", result.Sent, tt.wantSent)
			}
		})
	}
}

func TestDispatcherSendCampaign(t *testing.T) {
	t.Parallel()

	leads := testLeads(3)
	campaign := &domain.Campaign{
		ID:     "camp-1",
		Status: domain.CampaignStatusActive,
		Members: []domain.CampaignMember{
			{LeadID: "lead-3", EmailStatus: domain.EmailStatusDrafted, Position: 0},
			{LeadID: "lead-1", EmailStatus: domain.EmailStatusSent, Position: 1},
			{LeadID: "lead-2", EmailStatus: domain.EmailStatusDrafted, Position: 2},
		},
	}

	f := newDispatchFixture(t, fixtureOptions{
		settings: testSettings(50),
		leads:    leadsByID(leads...),
		campaigns: &fakeCampaignRepo{
			getByIDFn: func(ctx context.Context, id string) (*domain.Campaign, error) {
				return campaign, nil
			},
		},
	})

	result, err := f.dispatcher.SendCampaign(context.Background(), "camp-1", nil)
	if err != nil {
		t.Fatalf("SendCampaign() error = %v", err)
	}
	if result.Sent != 2 {
		t.Fatalf("sent = %d, want 2", result.Sent)
	}

	records, _ := f.ledger.snapshot()
	if records[0].LeadID != "lead-3" || records[1].LeadID != "lead-2" {
		t.Fatalf("send order = %s,%s, want lead-3,lead-2", records[0].LeadID, records[1].LeadID)
	}
	for _, r := range records {
		if r.CampaignID == nil || *r.CampaignID != "camp-1" {
			t.Fatalf("record campaign = %v, want camp-1", r.CampaignID)
		}
	}
}

func TestDispatcherSendCampaignRefusesPaused(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture(t, fixtureOptions{
		settings: testSettings(50),
		leads:    leadsByID(testLeads(1)...),
		campaigns: &fakeCampaignRepo{
			getByIDFn: func(ctx context.Context, id string) (*domain.Campaign, error) {
				return &domain.Campaign{
					ID:      id,
					Status:  domain.CampaignStatusPaused,
					Members: []domain.CampaignMember{{LeadID: "lead-1", EmailStatus: domain.EmailStatusDrafted}},
				}, nil
			},
		},
	})

	if _, err := f.dispatcher.SendCampaign(context.Background(), "camp-1", nil); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("SendCampaign() error = %v, want ErrConflict", err)
	}
	if len(f.messages) != 0 {
		t.Fatal("paused campaign must not send")
	}
}

func TestDispatcherQuota(t *testing.T) {
	t.Parallel()

	settings := testSettings(50)
	settings.Warmup = domain.Warmup{Enabled: true, DayCount: 5}
	f := newDispatchFixture(t, fixtureOptions{settings: settings})

	if _, err := f.dispatcher.Run(context.Background(), BatchRequest{Leads: testLeads(3)}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	status, err := f.dispatcher.Quota(context.Background())
	if err != nil {
		t.Fatalf("Quota() error = %v", err)
	}
	if status.Sent != 3 || status.Limit != 20 || status.Remaining != 17 || status.WarmupDay != 5 {
		t.Fatalf("Quota() = %+v", status)
	}
	if status.Day != f.tracker.Today() {
		t.Fatalf("Day = %s, want %s", status.Day, f.tracker.Today())
	}

	f.ledger.readErr = errors.New("down")
	if _, err := f.dispatcher.Quota(context.Background()); !errors.Is(err, domain.ErrQuotaUnavailable) {
		t.Fatalf("Quota() error = %v, want ErrQuotaUnavailable", err)
	}
}
