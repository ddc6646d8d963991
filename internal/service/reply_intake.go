package service

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/observability"
	"github.com/kursadbilgin/outreach-engine/internal/queue"
	"go.uber.org/zap"
)

// ReplyIntake accepts reply events from the API and enqueues them for the
// reply worker.
type ReplyIntake struct {
	publisher queue.Publisher
	logger    *zap.Logger
}

func NewReplyIntake(publisher queue.Publisher, logger *zap.Logger) (*ReplyIntake, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplyIntake{publisher: publisher, logger: logger}, nil
}

func (s *ReplyIntake) Submit(ctx context.Context, msg queue.ReplyMessage) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if msg.CorrelationID == "" {
		if id, ok := observability.CorrelationIDFromContext(ctx); ok {
			msg.CorrelationID = id
		}
	}

	if err := s.publisher.Publish(ctx, queue.ReplyQueueName, msg); err != nil {
		s.logger.Error("failed to enqueue reply",
			zap.String("correlationId", msg.CorrelationID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to enqueue reply: %w", err)
	}
	return nil
}
