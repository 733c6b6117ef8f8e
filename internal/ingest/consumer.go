package ingest

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/casafindr/casafindr-sync/pkg/idempotency"
	"github.com/casafindr/casafindr-sync/pkg/logger"
)

const backgroundConsumerName = "background-ingest"

// handler is the slice of BackgroundHandler the consumer needs.
type handler interface {
	Handle(ctx context.Context, raw []byte) error
}

// Consumer pulls push deliveries off the platform subscription and feeds them
// to the background handler. With a delivery guard configured, a redelivered
// message id is acked without touching the store.
type Consumer struct {
	handler      handler
	subscription *pubsub.Subscriber
	guard        *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the background push consumer. The guard is optional.
func NewConsumer(h handler, subscription *pubsub.Subscriber, guard *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if h == nil {
		return nil, fmt.Errorf("background handler required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("push subscription required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		handler:      h,
		subscription: subscription,
		guard:        guard,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg.ID, msg.Data)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msgID string, data []byte) processResult {
	logCtx := c.logg.WithMessageID(ctx, msgID)

	if c.guard != nil {
		already, err := c.guard.CheckAndMarkProcessed(ctx, backgroundConsumerName, msgID)
		if err != nil {
			c.logg.Error(logCtx, "delivery guard check failed", err)
			return processResult{nack: true}
		}
		if already {
			c.logg.Info(logCtx, "message already processed")
			return processResult{ack: true}
		}
	}

	if err := c.handler.Handle(ctx, data); err != nil {
		// Only storage-class failures reach here; unmark so the
		// redelivery can retry the append.
		c.logg.Error(logCtx, "background ingest failed", err)
		if c.guard != nil {
			_ = c.guard.Delete(ctx, backgroundConsumerName, msgID)
		}
		return processResult{nack: true}
	}

	return processResult{ack: true}
}
