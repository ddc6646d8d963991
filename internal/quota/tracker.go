package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
)

// Ledger persists the daily send log together with email records.
type Ledger interface {
	SentOn(ctx context.Context, day string) (int, error)
	// CommitSend stores record and increments the counter for day in one transaction.
	CommitSend(ctx context.Context, record *domain.EmailRecord, day string) error
}

// Tracker is the process-wide owner of the daily counter. Admission checks
// and reservations are serialized so concurrent batches cannot overrun the cap.
type Tracker struct {
	ledger Ledger
	now    func() time.Time

	mu       sync.Mutex
	inflight map[string]int
}

func NewTracker(ledger Ledger) (*Tracker, error) {
	if ledger == nil {
		return nil, fmt.Errorf("send ledger is required")
	}
	return &Tracker{
		ledger:   ledger,
		now:      time.Now,
		inflight: make(map[string]int),
	}, nil
}

// Today returns the current UTC day key.
func (t *Tracker) Today() string {
	return domain.DayKey(t.now())
}

// TodaySendCount returns committed sends for the current UTC day.
func (t *Tracker) TodaySendCount(ctx context.Context) (int, error) {
	count, err := t.ledger.SentOn(ctx, t.Today())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrQuotaUnavailable, err)
	}
	return count, nil
}

// Remaining is the number of sends still admissible today. It is for display
// only: an unreadable log counts as zero sent here, never in Reserve.
func (t *Tracker) Remaining(ctx context.Context, limit int) int {
	day := t.Today()
	sent, err := t.ledger.SentOn(ctx, day)
	if err != nil {
		sent = 0
	}

	t.mu.Lock()
	used := sent + t.inflight[day]
	t.mu.Unlock()

	return max(limit-used, 0)
}

// Reserve claims one send slot for today. It returns domain.ErrLimitReached
// when the cap is used up and domain.ErrQuotaUnavailable when the log cannot
// be read.
func (t *Tracker) Reserve(ctx context.Context, limit int) (*Reservation, error) {
	day := t.Today()

	t.mu.Lock()
	defer t.mu.Unlock()

	sent, err := t.ledger.SentOn(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrQuotaUnavailable, err)
	}
	if sent+t.inflight[day] >= limit {
		return nil, domain.ErrLimitReached
	}

	t.inflight[day]++
	return &Reservation{tracker: t, day: day}, nil
}

func (t *Tracker) release(day string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.inflight[day]--
	if t.inflight[day] <= 0 {
		delete(t.inflight, day)
	}
}

// Reservation is a single admitted send slot. It must end in exactly one
// Commit or Release; further calls are no-ops.
type Reservation struct {
	tracker *Tracker
	day     string

	mu   sync.Mutex
	done bool
}

// Day is the UTC day the slot was taken from.
func (r *Reservation) Day() string {
	return r.day
}

// Commit persists the email record and the counter increment. The write is
// detached from ctx cancellation so an abort cannot split the pair.
func (r *Reservation) Commit(ctx context.Context, record *domain.EmailRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return fmt.Errorf("reservation already settled")
	}
	r.done = true
	defer r.tracker.release(r.day)

	if err := r.tracker.ledger.CommitSend(context.WithoutCancel(ctx), record, r.day); err != nil {
		return fmt.Errorf("failed to commit send: %w", err)
	}
	return nil
}

// Release returns the slot without recording a send.
func (r *Reservation) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	r.tracker.release(r.day)
}
