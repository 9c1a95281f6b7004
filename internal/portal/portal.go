// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package portal fetches item metadata from an ArcGIS-style portal search
// API, one page at a time, and returns the raw records for normalization.
package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/catalog-engine/internal/httputil"
	"github.com/pdiddy/catalog-engine/pkg/types"
)

// searchPath is the portal's search endpoint, relative to the portal base URL.
const searchPath = "/sharing/rest/search"

// Searcher fetches raw catalog items. The snapshot pipeline depends on this
// interface so tests can substitute a canned source.
type Searcher interface {
	Search(ctx context.Context, cfg types.SnapshotConfig, w io.Writer) ([]types.RawItem, error)
}

// Client queries one portal over HTTP.
type Client struct {
	client *http.Client
	cfg    types.PortalConfig
	token  string
}

// New builds a portal client. A nil http.Client gets a default client with
// the configured timeout.
func New(client *http.Client, cfg types.PortalConfig, token string) *Client {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{client: client, cfg: cfg, token: token}
}

// searchResponse captures the fields we need from one search page.
type searchResponse struct {
	Total     int64           `json:"total"`
	Start     int             `json:"start"`
	Num       int             `json:"num"`
	NextStart int             `json:"nextStart"`
	Results   []types.RawItem `json:"results"`
	Error     *portalError    `json:"error"`
}

// portalError is the error envelope the portal returns with HTTP 200.
type portalError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// BuildQuery assembles the portal query string. An explicit query wins;
// otherwise public items are requested, scoped to the configured org when
// one is set. Item types become an OR group appended to the query.
func BuildQuery(cfg types.PortalConfig, snap types.SnapshotConfig) string {
	q := snap.Query
	if q == "" {
		q = "access:public"
		if cfg.OrgID != "" {
			q = fmt.Sprintf("orgid:%s AND access:public", cfg.OrgID)
		}
	}
	if len(snap.ItemTypes) > 0 {
		clauses := make([]string, len(snap.ItemTypes))
		for i, t := range snap.ItemTypes {
			clauses[i] = fmt.Sprintf("type:%q", t)
		}
		q = fmt.Sprintf("%s AND (%s)", q, strings.Join(clauses, " OR "))
	}
	return q
}

// Search pages through the portal search API until the portal reports no
// next page or maxItems is reached. A failure on the first page is fatal;
// a failure on a later page logs a warning and returns the partial batch.
func (c *Client) Search(ctx context.Context, snap types.SnapshotConfig, w io.Writer) ([]types.RawItem, error) {
	query := BuildQuery(c.cfg, snap)
	pageSize := c.cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	var items []types.RawItem
	start := 1
	for {
		num := pageSize
		if snap.MaxItems > 0 {
			if remaining := snap.MaxItems - len(items); remaining < num {
				num = remaining
			}
		}

		page, err := c.fetchPage(ctx, query, start, num)
		if err != nil {
			if len(items) == 0 {
				return nil, err
			}
			fmt.Fprintf(w, "warning: portal page at start=%d failed, keeping %d items: %v\n", start, len(items), err)
			return items, nil
		}

		items = append(items, page.Results...)
		if snap.MaxItems > 0 && len(items) >= snap.MaxItems {
			return items[:snap.MaxItems], nil
		}
		if page.NextStart <= 0 || page.NextStart <= start || len(page.Results) == 0 {
			return items, nil
		}
		start = page.NextStart
	}
}

func (c *Client) fetchPage(ctx context.Context, query string, start, num int) (searchResponse, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("f", "json")
	params.Set("start", strconv.Itoa(start))
	params.Set("num", strconv.Itoa(num))
	if c.token != "" {
		params.Set("token", c.token)
	}

	endpoint := strings.TrimRight(c.cfg.URL, "/") + searchPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return searchResponse{}, fmt.Errorf("creating portal request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.client, req, 0)
	if err != nil {
		return searchResponse{}, fmt.Errorf("portal search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return searchResponse{}, fmt.Errorf("portal search returned HTTP %d", resp.StatusCode)
	}

	var page searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return searchResponse{}, fmt.Errorf("parsing portal response: %w", err)
	}
	if page.Error != nil {
		return searchResponse{}, fmt.Errorf("portal error %d: %s", page.Error.Code, page.Error.Message)
	}
	return page, nil
}
