package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BRO3886/restaurant-search/internal/search"
	"github.com/BRO3886/restaurant-search/internal/types"
	api "github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

const (
	suggestName = "restaurant-suggest"
	// the completion suggester matches without case, so a case-sensitive
	// prefix filter drops options after the index has applied size
	caseSensitiveOverfetch = 4
)

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string               `json:"_id"`
			Source types.SearchDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Suggest map[string][]struct {
		Options []struct {
			Text string `json:"text"`
		} `json:"options"`
	} `json:"suggest"`
}

func searchQuery(query string) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"should": []any{
					map[string]any{"match_phrase_prefix": map[string]any{"name": query}},
					map[string]any{"match_phrase_prefix": map[string]any{"category": query}},
				},
				"minimum_should_match": 1,
			},
		},
	}
}

func suggestQuery(prefix string, limit int) map[string]any {
	return map[string]any{
		"_source": false,
		"suggest": map[string]any{
			suggestName: map[string]any{
				"prefix": prefix,
				"completion": map[string]any{
					"field":           AutocompleteField,
					"size":            limit,
					"skip_duplicates": true,
				},
			},
		},
	}
}

func (s *Client) query(ctx context.Context, op string, q map[string]any) (*searchResponse, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s query: %w", op, err)
	}

	_, respBody, err := s.do(ctx, op, api.SearchRequest{
		Index: []string{s.opts.Index},
		Body:  bytes.NewReader(body),
	})
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return &resp, nil
}

// Search matches query as a phrase prefix of name or category, ordered by
// the index's relevance score.
func (s *Client) Search(ctx context.Context, query string) ([]types.Restaurant, error) {
	resp, err := s.query(ctx, "search", searchQuery(query))
	if err != nil {
		return nil, err
	}

	results := make([]types.Restaurant, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		results = append(results, hit.Source.Restaurant(hit.ID))
	}
	return results, nil
}

// Suggest returns up to limit completions for prefix. limit defaults to, and
// never exceeds, search.MaxSuggestions.
func (s *Client) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 || limit > search.MaxSuggestions {
		limit = search.MaxSuggestions
	}

	size := limit
	if s.opts.CaseSensitive {
		size = limit * caseSensitiveOverfetch
	}
	resp, err := s.query(ctx, "suggest", suggestQuery(prefix, size))
	if err != nil {
		return nil, err
	}

	suggestions := make([]string, 0, limit)
	for _, entry := range resp.Suggest[suggestName] {
		for _, opt := range entry.Options {
			if len(suggestions) == limit {
				return suggestions, nil
			}
			if s.hasPrefix(opt.Text, prefix) {
				suggestions = append(suggestions, opt.Text)
			}
		}
	}
	return suggestions, nil
}

func (s *Client) hasPrefix(text, prefix string) bool {
	if s.opts.CaseSensitive {
		return strings.HasPrefix(text, prefix)
	}
	return strings.HasPrefix(strings.ToLower(text), strings.ToLower(prefix))
}
