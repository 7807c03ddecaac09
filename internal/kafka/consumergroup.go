package kafka

import (
	"fmt"
	"sync/atomic"

	"github.com/BRO3886/restaurant-search/internal/queue"
	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type ConsumerGroupHandler struct {
	handler queue.MessageHandler
	log     *zap.Logger
	failed  atomic.Bool
}

func NewConsumerGroupHandler(handler queue.MessageHandler, log *zap.Logger) sarama.ConsumerGroupHandler {
	return newConsumerGroupHandler(handler, log)
}

func newConsumerGroupHandler(handler queue.MessageHandler, log *zap.Logger) *ConsumerGroupHandler {
	return &ConsumerGroupHandler{
		handler: handler,
		log:     log,
	}
}

// takeFailure reports whether a claim ended with a handler error since the
// last call.
func (c *ConsumerGroupHandler) takeFailure() bool {
	return c.failed.Swap(false)
}

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *ConsumerGroupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim implements sarama.ConsumerGroupHandler.
func (c *ConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) (err error) {
	c.log.Info("consuming claim", zap.String("topic", claim.Topic()), zap.Int32("partition", claim.Partition()))
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic while handling message", zap.Any("panic", r))
			err = fmt.Errorf("panic: %v", r)
			c.failed.Store(true)
		}
	}()

	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.handler(session.Context(), message.Value); err != nil {
				c.log.Error("error handling message",
					zap.String("topic", message.Topic),
					zap.Int64("offset", message.Offset),
					zap.Error(err),
				)
				c.failed.Store(true)
				return err
			}
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *ConsumerGroupHandler) Setup(session sarama.ConsumerGroupSession) error {
	return nil
}
