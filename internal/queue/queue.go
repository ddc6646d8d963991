package queue

import (
	"context"
)

// Publisher publishes reply events to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg ReplyMessage) error
	Close() error
}

// MessageHandler handles a consumed reply event.
type MessageHandler func(ctx context.Context, msg ReplyMessage) error

// Consumer consumes reply events from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const (
	// ReplyQueueName carries inbound replies to sent outreach emails.
	ReplyQueueName  = "outreach.replies"
	replyRoutingKey = "replies"
)

// DLQName returns the dead-letter queue name for a work queue.
func DLQName(queue string) string {
	return "dlq." + queue
}
