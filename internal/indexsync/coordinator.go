// Package indexsync keeps the search index in step with the primary store.
//
// Every mutation commits to the primary store first and is then projected
// into the index. Index failures never fail or roll back a committed
// mutation; they are reported as drift events instead. Index writes carry the
// primary version of the record, so the index itself discards a write that
// arrives after a newer one for the same id.
package indexsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BRO3886/restaurant-search/internal/metrics"
	"github.com/BRO3886/restaurant-search/internal/search"
	"github.com/BRO3886/restaurant-search/internal/store"
	"github.com/BRO3886/restaurant-search/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultBatchSize = 500

type Coordinator struct {
	store     store.Store
	index     search.Indexer
	reporter  Reporter
	metrics   *metrics.Metrics
	log       *zap.Logger
	batchSize int
}

type Opts func(*Coordinator)

func WithReporter(r Reporter) Opts {
	return func(c *Coordinator) {
		c.reporter = r
	}
}

func WithMetrics(m *metrics.Metrics) Opts {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func WithBatchSize(n int) Opts {
	return func(c *Coordinator) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

func New(st store.Store, index search.Indexer, log *zap.Logger, opts ...Opts) *Coordinator {
	c := &Coordinator{
		store:     st,
		index:     index,
		log:       log.Named("sync"),
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.reporter == nil {
		c.reporter = NewLogReporter(log)
	}
	return c
}

// Create stores a new record and indexes its projection. The record is
// returned even if indexing fails.
func (c *Coordinator) Create(ctx context.Context, in types.RestaurantInput) (types.Restaurant, error) {
	r, err := c.store.Create(ctx, in)
	if err != nil {
		return types.Restaurant{}, primaryError("create", err)
	}

	c.upsert(ctx, types.OpCreate, r)
	return r, nil
}

// Update applies patch and replaces the indexed projection wholesale.
func (c *Coordinator) Update(ctx context.Context, id string, patch types.RestaurantPatch) (types.Restaurant, error) {
	r, err := c.store.Update(ctx, id, patch)
	if err != nil {
		return types.Restaurant{}, primaryError("update", err)
	}

	c.upsert(ctx, types.OpUpdate, r)
	return r, nil
}

// Remove deletes the record, then makes a best-effort index delete.
func (c *Coordinator) Remove(ctx context.Context, id string) error {
	r, err := c.store.Delete(ctx, id)
	if err != nil {
		return primaryError("delete", err)
	}

	// one past the last upsert, so a late upsert of r is refused
	version := r.Version + 1
	if err := c.index.DeIndex(ctx, id, version); err != nil {
		c.indexFailed(ctx, types.OpRemove, id, version, err)
	}
	return nil
}

func (c *Coordinator) Get(ctx context.Context, id string) (types.Restaurant, error) {
	return c.store.Get(ctx, id)
}

func (c *Coordinator) List(ctx context.Context) ([]types.Restaurant, error) {
	return c.store.List(ctx)
}

// Resync re-projects one record from the primary store. A record that no
// longer exists is removed from the index. Index failures are reported as
// resync drift and also returned, so the caller decides whether to retry.
func (c *Coordinator) Resync(ctx context.Context, id string) error {
	r, err := c.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		if err := c.index.DeIndex(ctx, id, 0); err != nil {
			c.indexFailed(ctx, types.OpResync, id, 0, err)
			return fmt.Errorf("failed to remove ghost document %s: %w", id, err)
		}
		c.log.Info("ghost document removed", zap.String("id", id))
		return nil
	}
	if err != nil {
		return err
	}

	err = c.index.Index(ctx, types.GetIndexableDoc(r))
	if errors.Is(err, search.ErrStaleVersion) {
		// index already holds this version or a newer one
		return nil
	}
	if err != nil {
		c.indexFailed(ctx, types.OpResync, id, r.Version, err)
		return fmt.Errorf("failed to resync %s: %w", id, err)
	}
	c.log.Info("document resynced", zap.String("id", id), zap.Int64("version", r.Version))
	return nil
}

// Reindex projects every stored record into the index in bulk batches, then
// removes index documents whose record no longer exists. It returns the
// number of records written.
func (c *Coordinator) Reindex(ctx context.Context) (int, error) {
	total := 0
	batch := make([]types.IndexableDocument, 0, c.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.index.BulkIndex(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		c.log.Info("reindex progress", zap.Int("indexed", total))
		batch = batch[:0]
		return nil
	}

	err := c.store.Each(ctx, func(r types.Restaurant) error {
		batch = append(batch, types.GetIndexableDoc(r))
		if len(batch) < c.batchSize {
			return nil
		}
		return flush()
	})
	if err != nil {
		return total, fmt.Errorf("reindex failed after %d documents: %w", total, err)
	}
	if err := flush(); err != nil {
		return total, fmt.Errorf("reindex failed after %d documents: %w", total, err)
	}

	removed, err := c.removeGhosts(ctx)
	if err != nil {
		return total, fmt.Errorf("reindex failed removing ghost documents after %d removed: %w", removed, err)
	}
	if removed > 0 {
		c.log.Info("reindex removed ghost documents", zap.Int("removed", removed))
	}
	return total, nil
}

// removeGhosts deletes every indexed document whose record is missing from
// the primary store. Records are created in the primary store before they
// are indexed, so a missing record means a failed or lost delete.
func (c *Coordinator) removeGhosts(ctx context.Context) (int, error) {
	removed := 0
	err := c.index.EachID(ctx, c.batchSize, func(ids []string) error {
		for _, id := range ids {
			_, err := c.store.Get(ctx, id)
			if err == nil {
				continue
			}
			if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			if err := c.index.DeIndex(ctx, id, 0); err != nil {
				return fmt.Errorf("failed to remove ghost document %s: %w", id, err)
			}
			removed++
			c.log.Info("ghost document removed", zap.String("id", id))
		}
		return nil
	})
	return removed, err
}

func (c *Coordinator) upsert(ctx context.Context, op types.SyncOp, r types.Restaurant) {
	if err := c.index.Index(ctx, types.GetIndexableDoc(r)); err != nil {
		c.indexFailed(ctx, op, r.ID, r.Version, err)
	}
}

func (c *Coordinator) indexFailed(ctx context.Context, op types.SyncOp, id string, version int64, err error) {
	if errors.Is(err, search.ErrStaleVersion) {
		c.metrics.IndexStale(op)
		c.log.Info("stale index write skipped",
			zap.String("op", string(op)),
			zap.String("id", id),
			zap.Int64("version", version),
		)
		return
	}

	ev := types.DriftEvent{
		ID:        uuid.NewString(),
		RecordID:  id,
		Op:        op,
		Version:   version,
		Error:     err.Error(),
		TimeStamp: time.Now().UnixMilli(),
	}
	// the request may already be cancelled; the event must still go out
	c.reporter.Report(context.WithoutCancel(ctx), ev)
}

func primaryError(op string, err error) error {
	var pwe *store.PrimaryWriteError
	if errors.Is(err, store.ErrNotFound) || errors.As(err, &pwe) {
		return err
	}
	return &store.PrimaryWriteError{Op: op, Err: err}
}
