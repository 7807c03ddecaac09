package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BRO3886/restaurant-search/internal/queue"
	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

const retryBackoff = time.Second

type KafkaDequeuer struct {
	consumerGroups map[string]sarama.ConsumerGroup
	cfg            *Config
	log            *zap.Logger
	backoff        time.Duration
	m              sync.Mutex
}

func NewDequeuer(ctx context.Context, c *Config, log *zap.Logger) (queue.Dequeuer, error) {
	d := &KafkaDequeuer{
		consumerGroups: make(map[string]sarama.ConsumerGroup),
		cfg:            c,
		log:            log.Named("kafka"),
		backoff:        retryBackoff,
	}
	for _, topic := range c.GetTopics() {
		if _, err := d.group(topic); err != nil {
			_ = d.Close()
			return nil, err
		}
	}
	return d, nil
}

func (k *KafkaDequeuer) group(topic string) (sarama.ConsumerGroup, error) {
	k.m.Lock()
	defer k.m.Unlock()
	if consumerGroup, ok := k.consumerGroups[topic]; ok {
		return consumerGroup, nil
	}
	consumerGroup, err := sarama.NewConsumerGroup(k.cfg.GetBrokers(), k.cfg.GetGroupID(topic), k.cfg.GetConfig())
	if err != nil {
		return nil, err
	}
	k.consumerGroups[topic] = consumerGroup
	go k.logErrors(topic, consumerGroup)
	return consumerGroup, nil
}

func (k *KafkaDequeuer) logErrors(topic string, consumerGroup sarama.ConsumerGroup) {
	for err := range consumerGroup.Errors() {
		k.log.Error("consumer group error", zap.String("topic", topic), zap.Error(err))
	}
}

// Dequeue consumes topic until ctx is done. A handler error ends the current
// session without marking the message, so it is redelivered on the next one
// after a backoff.
func (k *KafkaDequeuer) Dequeue(ctx context.Context, topic string, handler queue.MessageHandler) error {
	consumerGroup, err := k.group(topic)
	if err != nil {
		return err
	}

	h := newConsumerGroupHandler(handler, k.log)
	for {
		err := consumerGroup.Consume(ctx, []string{topic}, h)
		if errors.Is(err, sarama.ErrClosedConsumerGroup) || ctx.Err() != nil {
			return nil
		}
		failed := h.takeFailure()
		if err == nil && !failed {
			continue
		}
		if err != nil {
			k.log.Error("consume session ended", zap.String("topic", topic), zap.Error(err))
		} else {
			k.log.Warn("consume session ended by handler error", zap.String("topic", topic), zap.Duration("backoff", k.backoff))
		}
		select {
		case <-time.After(k.backoff):
		case <-ctx.Done():
			return nil
		}
	}
}

func (k *KafkaDequeuer) Close() error {
	k.m.Lock()
	defer k.m.Unlock()
	var errs []error
	for topic, consumerGroup := range k.consumerGroups {
		if err := consumerGroup.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(k.consumerGroups, topic)
	}
	return errors.Join(errs...)
}
