package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/observability"
	"github.com/kursadbilgin/outreach-engine/internal/queue"
	"github.com/kursadbilgin/outreach-engine/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

var unsubscribePattern = regexp.MustCompile(`(?i)\b(unsubscribe|remove me|stop emailing)\b`)

// ResponseRecorder applies an inbound reply to lead and campaign state.
type ResponseRecorder interface {
	OnResponded(ctx context.Context, event ReplyEvent) (*domain.EmailRecord, error)
}

// ReplyWorker consumes reply events and propagates responses. Replies asking
// to unsubscribe also add the recipient to the suppression list.
type ReplyWorker struct {
	consumer     queue.Consumer
	recorder     ResponseRecorder
	suppressions repository.SuppressionRepository
	logger       *zap.Logger
	metrics      *observability.Metrics
	concurrency  int
	now          func() time.Time
}

func NewReplyWorker(
	consumer queue.Consumer,
	recorder ResponseRecorder,
	suppressions repository.SuppressionRepository,
	concurrency int,
	logger *zap.Logger,
) (*ReplyWorker, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("response recorder is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReplyWorker{
		consumer:     consumer,
		recorder:     recorder,
		suppressions: suppressions,
		logger:       logger,
		concurrency:  concurrency,
		now:          time.Now,
	}, nil
}

func (w *ReplyWorker) SetMetrics(metrics *observability.Metrics) {
	if w == nil {
		return
	}
	w.metrics = metrics
}

// Start consumes the reply queue until context cancellation.
func (w *ReplyWorker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			w.logger.Info("reply worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.ReplyQueueName),
			)

			if err := w.consumer.Consume(groupCtx, queue.ReplyQueueName, w.processMessage); err != nil {
				w.logger.Error("reply worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			w.logger.Info("reply worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (w *ReplyWorker) processMessage(ctx context.Context, msg queue.ReplyMessage) error {
	if msg.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	}
	logger := observability.WithContextLogger(w.logger, ctx)

	event := ReplyEvent{
		TrackingID: msg.ResolvedTrackingID(),
		LeadID:     msg.LeadID,
		CampaignID: msg.CampaignID,
		ReceivedAt: w.now().UTC(),
	}
	if msg.ReceivedAt != nil {
		event.ReceivedAt = msg.ReceivedAt.UTC()
	}

	record, err := w.recorder.OnResponded(ctx, event)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
			logger.Warn("reply could not be matched to a sent email",
				zap.String("trackingId", event.TrackingID),
				zap.String("leadId", event.LeadID),
				zap.Error(err),
			)
		}
		return err
	}
	w.metrics.IncReplyResolved()

	logger.Info("reply recorded",
		zap.String("emailId", record.ID),
		zap.String("leadId", record.LeadID),
	)

	if w.suppressions != nil && IsUnsubscribeRequest(msg.Body) {
		if err := w.suppressions.Suppress(ctx, record.To, "unsubscribe reply"); err != nil {
			return fmt.Errorf("failed to suppress unsubscribed recipient: %w", err)
		}
		logger.Info("recipient unsubscribed", zap.String("leadId", record.LeadID))
	}

	return nil
}

// IsUnsubscribeRequest reports whether reply text asks to stop outreach.
// Quoted lines and anything after a "--" separator are ignored so the
// footer of the original email never counts.
func IsUnsubscribeRequest(body string) bool {
	var own []string
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "--" {
			break
		}
		if strings.HasPrefix(trimmed, ">") {
			continue
		}
		own = append(own, line)
	}
	return unsubscribePattern.MatchString(strings.Join(own, "\n"))
}
