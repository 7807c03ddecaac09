package opensearch

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/BRO3886/restaurant-search/internal/config"
	"github.com/BRO3886/restaurant-search/internal/search"
	external "github.com/opensearch-project/opensearch-go/v2"
	api "github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"go.uber.org/zap"
)

// Options tune a Client independently of how it reaches the cluster.
type Options struct {
	Index         string
	Shards        int
	Replicas      int
	Refresh       string
	CaseSensitive bool
	Timeout       time.Duration
}

// Client is the process-wide handle to the restaurant index. It implements
// search.Searcher.
type Client struct {
	client *external.Client
	opts   Options
	log    *zap.Logger
}

var _ search.Searcher = (*Client)(nil)

func New(c *config.Config, log *zap.Logger) (*Client, error) {
	client, err := external.NewClient(external.Config{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		Addresses:  c.Opensearch.URLs,
		MaxRetries: c.Opensearch.MaxRetries,
		Username:   c.Opensearch.Username,
		Password:   c.Opensearch.Password,
	})
	if err != nil {
		return nil, err
	}

	return NewWithClient(client, Options{
		Index:         c.Opensearch.Index.Name,
		Shards:        c.Opensearch.Index.Shards,
		Replicas:      c.Opensearch.Index.Replicas,
		Refresh:       c.Opensearch.Index.Refresh,
		CaseSensitive: c.Opensearch.Suggest.CaseSensitive,
		Timeout:       time.Duration(c.Opensearch.TimeoutMs) * time.Millisecond,
	}, log), nil
}

func NewWithClient(client *external.Client, opts Options, log *zap.Logger) *Client {
	if opts.Shards == 0 {
		opts.Shards = 1
	}
	if opts.Refresh == "" {
		opts.Refresh = "false"
	}
	return &Client{
		client: client,
		opts:   opts,
		log:    log.Named("opensearch"),
	}
}

func (s *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.Timeout)
}

type errorBody struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// errorType extracts error.type from an OpenSearch error body.
func errorType(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	return eb.Error.Type
}

// do runs req and returns the response body. Transport failures, missing
// indices and 5xx responses become search.IndexUnavailableError; version
// conflicts become search.ErrStaleVersion.
func (s *Client) do(ctx context.Context, op string, req api.Request) (int, []byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return 0, nil, &search.IndexUnavailableError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &search.IndexUnavailableError{Op: op, Err: err}
	}

	if resp.HasWarnings() {
		s.log.Warn("response warnings", zap.String("op", op), zap.Strings("warnings", resp.Warnings()))
	}

	if !resp.IsError() {
		return resp.StatusCode, body, nil
	}

	respErr := fmt.Errorf("%s: %s %s", op, resp.Status(), string(body))
	switch {
	case resp.StatusCode == http.StatusConflict:
		return resp.StatusCode, body, fmt.Errorf("%w: %v", search.ErrStaleVersion, respErr)
	case resp.StatusCode >= http.StatusInternalServerError,
		errorType(body) == "index_not_found_exception":
		return resp.StatusCode, body, &search.IndexUnavailableError{Op: op, Err: respErr}
	}
	return resp.StatusCode, body, respErr
}
