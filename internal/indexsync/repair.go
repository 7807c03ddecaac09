package indexsync

import (
	"context"
	"encoding/json"

	"github.com/BRO3886/restaurant-search/internal/queue"
	"github.com/BRO3886/restaurant-search/internal/types"
	"go.uber.org/zap"
)

// RepairHandler consumes drift events and resyncs the record each one names.
// Malformed events are dropped; a failed resync is returned so the message is
// redelivered.
func (c *Coordinator) RepairHandler() queue.MessageHandler {
	log := c.log.Named("repair")
	return func(ctx context.Context, data []byte) error {
		var ev types.DriftEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Warn("skipping malformed drift event", zap.Error(err))
			return nil
		}
		if ev.RecordID == "" {
			log.Warn("skipping drift event without record id", zap.String("event_id", ev.ID))
			return nil
		}

		if err := c.Resync(ctx, ev.RecordID); err != nil {
			log.Error("resync failed", zap.String("record_id", ev.RecordID), zap.Error(err))
			return err
		}
		log.Debug("resynced record", zap.String("record_id", ev.RecordID), zap.String("op", string(ev.Op)))
		return nil
	}
}
