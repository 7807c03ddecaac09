package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/BRO3886/restaurant-search/internal/types"
)

// ErrNotFound is returned when no record exists for an id.
var ErrNotFound = errors.New("restaurant not found")

// PrimaryWriteError wraps a failed write against the primary store. No index
// write follows it.
type PrimaryWriteError struct {
	Op  string
	Err error
}

func (e *PrimaryWriteError) Error() string {
	return fmt.Sprintf("primary store %s failed: %v", e.Op, e.Err)
}

func (e *PrimaryWriteError) Unwrap() error {
	return e.Err
}

// Store is the durable source of truth for restaurants. Every successful
// mutation returns the record as committed, with its new version.
type Store interface {
	Create(ctx context.Context, in types.RestaurantInput) (types.Restaurant, error)
	Update(ctx context.Context, id string, patch types.RestaurantPatch) (types.Restaurant, error)
	Delete(ctx context.Context, id string) (types.Restaurant, error)
	Get(ctx context.Context, id string) (types.Restaurant, error)
	List(ctx context.Context) ([]types.Restaurant, error)
	// Each calls fn for every stored record until fn returns an error.
	Each(ctx context.Context, fn func(types.Restaurant) error) error
}
