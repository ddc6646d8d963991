package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/observability"
	"go.uber.org/zap"
)

type BatchState string

const (
	BatchStateRunning  BatchState = "running"
	BatchStateFinished BatchState = "finished"
	BatchStateFailed   BatchState = "failed"
)

// CampaignSender runs a campaign batch to completion.
type CampaignSender interface {
	SendCampaign(ctx context.Context, campaignID string, onProgress func(Progress)) (*BatchResult, error)
}

// BatchStatus is a point-in-time snapshot of an asynchronous batch.
type BatchStatus struct {
	ID         string       `json:"batchId"`
	CampaignID string       `json:"campaignId"`
	State      BatchState   `json:"state"`
	Progress   Progress     `json:"progress"`
	Result     *BatchResult `json:"result,omitempty"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt *time.Time   `json:"finishedAt,omitempty"`
}

type batchEntry struct {
	status BatchStatus
	cancel context.CancelFunc
}

// BatchRunner starts campaign batches in the background and lets operators
// follow or abort them. At most one batch runs per campaign.
type BatchRunner struct {
	sender CampaignSender
	base   context.Context
	logger *zap.Logger
	now    func() time.Time
	newID  func() string

	mu       sync.Mutex
	batches  map[string]*batchEntry
	running  map[string]string
	inflight sync.WaitGroup
}

// NewBatchRunner derives every batch context from base, so cancelling base
// aborts all running batches.
func NewBatchRunner(base context.Context, sender CampaignSender, logger *zap.Logger) (*BatchRunner, error) {
	if sender == nil {
		return nil, fmt.Errorf("campaign sender is required")
	}
	if base == nil {
		base = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchRunner{
		sender:  sender,
		base:    base,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
		batches: make(map[string]*batchEntry),
		running: make(map[string]string),
	}, nil
}

// Start launches a batch for campaignID and returns its ID.
func (r *BatchRunner) Start(campaignID string) (string, error) {
	if campaignID == "" {
		return "", fmt.Errorf("%w: campaign id is required", domain.ErrValidation)
	}

	r.mu.Lock()
	if existing, ok := r.running[campaignID]; ok {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: batch %s is already running for campaign %s", domain.ErrConflict, existing, campaignID)
	}

	batchID := r.newID()
	ctx, cancel := context.WithCancel(observability.WithBatchID(r.base, batchID))
	r.batches[batchID] = &batchEntry{
		status: BatchStatus{
			ID:         batchID,
			CampaignID: campaignID,
			State:      BatchStateRunning,
			StartedAt:  r.now().UTC(),
		},
		cancel: cancel,
	}
	r.running[campaignID] = batchID
	r.inflight.Add(1)
	r.mu.Unlock()

	go r.run(ctx, cancel, batchID, campaignID)

	return batchID, nil
}

func (r *BatchRunner) run(ctx context.Context, cancel context.CancelFunc, batchID, campaignID string) {
	defer r.inflight.Done()
	defer cancel()

	result, err := r.sender.SendCampaign(ctx, campaignID, func(p Progress) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if entry, ok := r.batches[batchID]; ok {
			entry.status.Progress = p
		}
	})

	finishedAt := r.now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.running, campaignID)
	entry, ok := r.batches[batchID]
	if !ok {
		return
	}
	entry.status.Result = result
	entry.status.FinishedAt = &finishedAt
	entry.status.State = BatchStateFinished
	if err != nil {
		entry.status.State = BatchStateFailed
		entry.status.Error = err.Error()
		r.logger.Error("batch failed",
			zap.String("batchId", batchID),
			zap.String("campaignId", campaignID),
			zap.Error(err),
		)
	}
}

// Get returns a snapshot of the batch.
func (r *BatchRunner) Get(batchID string) (BatchStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.batches[batchID]
	if !ok {
		return BatchStatus{}, fmt.Errorf("%w: batch %s", domain.ErrNotFound, batchID)
	}

	status := entry.status
	if status.Result != nil {
		result := *status.Result
		status.Result = &result
	}
	return status, nil
}

// Abort cancels a running batch. Sends already committed stay committed.
func (r *BatchRunner) Abort(batchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.batches[batchID]
	if !ok {
		return fmt.Errorf("%w: batch %s", domain.ErrNotFound, batchID)
	}
	if entry.status.State != BatchStateRunning {
		return fmt.Errorf("%w: batch %s is not running", domain.ErrConflict, batchID)
	}

	entry.cancel()
	return nil
}

// Wait blocks until every started batch has returned or ctx is done.
func (r *BatchRunner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(fmt.Errorf("batches still running"), ctx.Err())
	}
}
