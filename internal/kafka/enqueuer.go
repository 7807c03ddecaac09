package kafka

import (
	"context"

	"github.com/BRO3886/restaurant-search/internal/queue"
	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type KafkaEnqueuer struct {
	syncProducer  sarama.SyncProducer
	asyncProducer sarama.AsyncProducer
	cfg           *Config
	log           *zap.Logger
	done          chan struct{}
}

// NewEnqueuer starts a sync or an async producer depending on c.
func NewEnqueuer(ctx context.Context, c *Config, log *zap.Logger) (queue.Enqueuer, error) {
	if c.IsSync() {
		syncProducer, err := sarama.NewSyncProducer(c.GetBrokers(), c.GetConfig())
		if err != nil {
			return nil, err
		}
		return newEnqueuer(c, syncProducer, nil, log), nil
	}

	asyncProducer, err := sarama.NewAsyncProducer(c.GetBrokers(), c.GetConfig())
	if err != nil {
		return nil, err
	}
	return newEnqueuer(c, nil, asyncProducer, log), nil
}

func newEnqueuer(c *Config, sp sarama.SyncProducer, ap sarama.AsyncProducer, log *zap.Logger) *KafkaEnqueuer {
	k := &KafkaEnqueuer{
		syncProducer:  sp,
		asyncProducer: ap,
		cfg:           c,
		log:           log.Named("kafka"),
		done:          make(chan struct{}),
	}
	if ap != nil {
		go k.drain()
	} else {
		close(k.done)
	}
	return k
}

func (k *KafkaEnqueuer) Enqueue(ctx context.Context, topic string, key string, data []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(data),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	if k.syncProducer != nil {
		return k.enqueueSync(msg)
	}
	return k.enqueueAsync(ctx, msg)
}

func (k *KafkaEnqueuer) enqueueSync(msg *sarama.ProducerMessage) error {
	partition, offset, err := k.syncProducer.SendMessage(msg)
	if err != nil {
		return err
	}
	k.log.Debug("message sent",
		zap.String("topic", msg.Topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

// enqueueAsync hands msg to the producer; delivery failures surface in the
// log through drain.
func (k *KafkaEnqueuer) enqueueAsync(ctx context.Context, msg *sarama.ProducerMessage) error {
	select {
	case k.asyncProducer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (k *KafkaEnqueuer) drain() {
	defer close(k.done)
	errs := k.asyncProducer.Errors()
	successes := k.asyncProducer.Successes()
	for errs != nil || successes != nil {
		select {
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			k.log.Error("failed to deliver message", zap.String("topic", err.Msg.Topic), zap.Error(err.Err))
		case msg, ok := <-successes:
			if !ok {
				successes = nil
				continue
			}
			k.log.Debug("message sent",
				zap.String("topic", msg.Topic),
				zap.Int32("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
		}
	}
}

func (k *KafkaEnqueuer) Close() error {
	if k.syncProducer != nil {
		return k.syncProducer.Close()
	}
	// AsyncClose flushes buffered messages, then closes Errors and Successes
	k.asyncProducer.AsyncClose()
	<-k.done
	return nil
}
