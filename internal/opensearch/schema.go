package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	api "github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"go.uber.org/zap"
)

// AutocompleteField is the completion field populated from the projection's
// autocomplete tokens.
const AutocompleteField = "autocompleteTokens"

var textFields = []string{"name", "category", "address", "phone", "photo", "details"}

func (s *Client) indexBody() ([]byte, error) {
	properties := map[string]any{
		AutocompleteField: map[string]any{"type": "completion"},
	}
	for _, f := range textFields {
		properties[f] = map[string]any{"type": "text"}
	}

	return json.Marshal(map[string]any{
		"settings": map[string]any{
			"index": map[string]any{
				"number_of_shards":   s.opts.Shards,
				"number_of_replicas": s.opts.Replicas,
			},
		},
		"mappings": map[string]any{
			"properties": properties,
		},
	})
}

// EnsureIndex creates the index with its mapping unless it already exists.
// Losing a creation race to another instance counts as success.
func (s *Client) EnsureIndex(ctx context.Context) error {
	status, _, err := s.do(ctx, "index exists", api.IndicesExistsRequest{
		Index: []string{s.opts.Index},
	})
	// early return if index already exists
	if err == nil && status == http.StatusOK {
		s.log.Info("index already exists", zap.String("index", s.opts.Index))
		return nil
	}

	body, err := s.indexBody()
	if err != nil {
		return fmt.Errorf("failed to build index mapping: %w", err)
	}

	_, respBody, err := s.do(ctx, "create index", api.IndicesCreateRequest{
		Index: s.opts.Index,
		Body:  bytes.NewReader(body),
	})
	if err != nil {
		if errorType(respBody) == "resource_already_exists_exception" {
			s.log.Info("index created concurrently", zap.String("index", s.opts.Index))
			return nil
		}
		return fmt.Errorf("failed to create index %s: %w", s.opts.Index, err)
	}

	s.log.Info("index created", zap.String("index", s.opts.Index))
	return nil
}
