package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	api "github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"go.uber.org/zap"
)

const (
	scrollKeepAlive = time.Minute
	scrollParam     = "1m"
	defaultScanSize = 500
)

type scrollResponse struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Hits []struct {
			ID string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

// EachID scrolls through the index and hands fn one page of ids at a time.
// Documents written after the scroll starts are not visited.
func (s *Client) EachID(ctx context.Context, batchSize int, fn func(ids []string) error) error {
	if batchSize <= 0 {
		batchSize = defaultScanSize
	}

	query, err := json.Marshal(map[string]any{
		"_source": false,
		"sort":    []string{"_doc"},
		"query":   map[string]any{"match_all": map[string]any{}},
	})
	if err != nil {
		return err
	}

	_, body, err := s.do(ctx, "scan", api.SearchRequest{
		Index:  []string{s.opts.Index},
		Body:   bytes.NewReader(query),
		Scroll: scrollKeepAlive,
		Size:   &batchSize,
	})
	if err != nil {
		return err
	}

	var scrollID string
	defer func() {
		if scrollID != "" {
			s.clearScroll(ctx, scrollID)
		}
	}()

	for {
		var page scrollResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return fmt.Errorf("failed to decode scan response: %w", err)
		}
		if page.ScrollID != "" {
			scrollID = page.ScrollID
		}
		if len(page.Hits.Hits) == 0 {
			return nil
		}

		ids := make([]string, 0, len(page.Hits.Hits))
		for _, hit := range page.Hits.Hits {
			ids = append(ids, hit.ID)
		}
		if err := fn(ids); err != nil {
			return err
		}

		next, err := json.Marshal(map[string]any{
			"scroll":    scrollParam,
			"scroll_id": scrollID,
		})
		if err != nil {
			return err
		}
		_, body, err = s.do(ctx, "scan", api.ScrollRequest{Body: bytes.NewReader(next)})
		if err != nil {
			return err
		}
	}
}

func (s *Client) clearScroll(ctx context.Context, scrollID string) {
	body, err := json.Marshal(map[string]any{"scroll_id": []string{scrollID}})
	if err != nil {
		return
	}
	if _, _, err := s.do(context.WithoutCancel(ctx), "clear_scroll", api.ClearScrollRequest{Body: bytes.NewReader(body)}); err != nil {
		s.log.Warn("failed to clear scroll", zap.Error(err))
	}
}
