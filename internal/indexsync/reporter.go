package indexsync

import (
	"context"
	"encoding/json"

	"github.com/BRO3886/restaurant-search/internal/queue"
	"github.com/BRO3886/restaurant-search/internal/types"
	"go.uber.org/zap"
)

// Reporter receives degraded sync events. Implementations must not fail the
// mutation that produced the event; they log their own errors.
type Reporter interface {
	Report(ctx context.Context, ev types.DriftEvent)
}

// Reporters fans an event out to every reporter in order.
type Reporters []Reporter

func (rs Reporters) Report(ctx context.Context, ev types.DriftEvent) {
	for _, r := range rs {
		r.Report(ctx, ev)
	}
}

type logReporter struct {
	log *zap.Logger
}

func NewLogReporter(log *zap.Logger) Reporter {
	return &logReporter{log: log.Named("drift")}
}

func (r *logReporter) Report(_ context.Context, ev types.DriftEvent) {
	r.log.Warn("index sync degraded",
		zap.String("event_id", ev.ID),
		zap.String("record_id", ev.RecordID),
		zap.String("op", string(ev.Op)),
		zap.Int64("version", ev.Version),
		zap.String("error", ev.Error),
	)
}

type queueReporter struct {
	enqueuer queue.Enqueuer
	topic    string
	log      *zap.Logger
}

// NewQueueReporter publishes drift events to topic, keyed by record id so
// events for one record stay ordered.
func NewQueueReporter(enqueuer queue.Enqueuer, topic string, log *zap.Logger) Reporter {
	return &queueReporter{enqueuer: enqueuer, topic: topic, log: log.Named("drift")}
}

func (r *queueReporter) Report(ctx context.Context, ev types.DriftEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		r.log.Error("failed to marshal drift event", zap.String("event_id", ev.ID), zap.Error(err))
		return
	}
	if err := r.enqueuer.Enqueue(ctx, r.topic, ev.RecordID, data); err != nil {
		r.log.Error("failed to publish drift event",
			zap.String("event_id", ev.ID),
			zap.String("record_id", ev.RecordID),
			zap.Error(err),
		)
	}
}
