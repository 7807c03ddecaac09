package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/BRO3886/restaurant-search/internal/types"
)

// MaxSuggestions caps the number of completions returned per call.
const MaxSuggestions = 5

// ErrStaleVersion is returned by index writes that carry a version older
// than, or equal to, the one already stored for the key.
var ErrStaleVersion = errors.New("index holds a newer version")

// IndexUnavailableError is returned when the index cannot serve a request.
type IndexUnavailableError struct {
	Op  string
	Err error
}

func (e *IndexUnavailableError) Error() string {
	return fmt.Sprintf("search index unavailable during %s: %v", e.Op, e.Err)
}

func (e *IndexUnavailableError) Unwrap() error {
	return e.Err
}

// Indexer applies projections to the index.
type Indexer interface {
	Index(ctx context.Context, doc types.IndexableDocument) error
	// DeIndex removes id. A positive version must exceed the last indexed
	// version; zero deletes unconditionally.
	DeIndex(ctx context.Context, id string, version int64) error
	BulkIndex(ctx context.Context, docs []types.IndexableDocument) error
	// EachID walks every document id in the index, batchSize ids at a time.
	EachID(ctx context.Context, batchSize int, fn func(ids []string) error) error
}

// Querier answers search and autocomplete queries from the index alone.
type Querier interface {
	Search(ctx context.Context, query string) ([]types.Restaurant, error)
	Suggest(ctx context.Context, prefix string, limit int) ([]string, error)
}

type Searcher interface {
	Indexer
	Querier
	EnsureIndex(ctx context.Context) error
}
