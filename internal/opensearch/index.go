package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/BRO3886/restaurant-search/internal/search"
	"github.com/BRO3886/restaurant-search/internal/types"
	api "github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"go.uber.org/zap"
)

const externalVersion = "external"

// Index upserts doc under its id. The primary version travels as an external
// version, so the index refuses writes older than what it already holds.
func (s *Client) Index(ctx context.Context, doc types.IndexableDocument) error {
	body, err := json.Marshal(doc.Doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", doc.Id, err)
	}

	version := int(doc.Version)
	_, _, err = s.do(ctx, "index", api.IndexRequest{
		Index:       s.opts.Index,
		DocumentID:  doc.Id,
		Body:        bytes.NewReader(body),
		Version:     &version,
		VersionType: externalVersion,
		Refresh:     s.opts.Refresh,
	})
	if err != nil {
		return err
	}

	s.log.Debug("document indexed", zap.String("id", doc.Id), zap.Int64("version", doc.Version))
	return nil
}

// DeIndex removes id. A document that is already gone counts as removed.
// A version of zero or less deletes whatever version is stored.
func (s *Client) DeIndex(ctx context.Context, id string, version int64) error {
	req := api.DeleteRequest{
		Index:      s.opts.Index,
		DocumentID: id,
		Refresh:    s.opts.Refresh,
	}
	if version > 0 {
		v := int(version)
		req.Version = &v
		req.VersionType = externalVersion
	}

	status, _, err := s.do(ctx, "delete", req)
	if status == http.StatusNotFound && !errors.As(err, new(*search.IndexUnavailableError)) {
		s.log.Debug("document already absent", zap.String("id", id))
		return nil
	}
	if err != nil {
		return err
	}

	s.log.Debug("document deleted", zap.String("id", id), zap.Int64("version", version))
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// BulkIndex writes docs in one bulk request. Per-item version conflicts are
// skipped; any other item failure fails the call.
func (s *Client) BulkIndex(ctx context.Context, docs []types.IndexableDocument) error {
	if len(docs) == 0 {
		return nil
	}

	var bulkReq strings.Builder
	for _, doc := range docs {
		jsonData, err := json.Marshal(doc.Doc)
		if err != nil {
			return fmt.Errorf("failed to marshal document %s: %w", doc.Id, err)
		}
		action, err := json.Marshal(map[string]any{
			"index": map[string]any{
				"_index":       s.opts.Index,
				"_id":          doc.Id,
				"version":      doc.Version,
				"version_type": externalVersion,
			},
		})
		if err != nil {
			return err
		}
		bulkReq.Write(action)
		bulkReq.WriteByte('\n')
		bulkReq.Write(jsonData)
		bulkReq.WriteByte('\n')
	}

	_, body, err := s.do(ctx, "bulk", api.BulkRequest{
		Body:    strings.NewReader(bulkReq.String()),
		Refresh: s.opts.Refresh,
	})
	if err != nil {
		return err
	}

	var resp bulkResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if !resp.Errors {
		s.log.Info("bulk indexed", zap.Int("documents", len(docs)))
		return nil
	}

	var failed []string
	stale := 0
	for _, item := range resp.Items {
		for _, res := range item {
			switch {
			case res.Status == http.StatusConflict:
				stale++
			case res.Status >= 300:
				failed = append(failed, fmt.Sprintf("%s: %s %s", res.ID, res.Error.Type, res.Error.Reason))
			}
		}
	}
	if stale > 0 {
		s.log.Info("bulk skipped stale documents", zap.Int("stale", stale))
	}
	if len(failed) > 0 {
		return fmt.Errorf("bulk indexing failed for %d documents: %s", len(failed), strings.Join(failed, "; "))
	}
	return nil
}
