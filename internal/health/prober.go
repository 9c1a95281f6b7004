// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package health probes the liveness of item backing-service URLs.
package health

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

const (
	defaultTimeout    = 5 * time.Second
	defaultMaxWorkers = 10
)

// Target is one (item, URL) pair to probe.
type Target struct {
	ItemID string
	URL    string
}

// Prober checks URL reachability with a bounded worker pool. The zero
// value is not usable; construct with New.
type Prober struct {
	client     *http.Client
	userAgent  string
	maxWorkers int
}

// New builds a Prober from config. A nil client gets a default one with
// the configured per-probe timeout.
func New(client *http.Client, cfg types.HealthConfig) *Prober {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}
	return &Prober{client: client, userAgent: cfg.UserAgent, maxWorkers: maxWorkers}
}

// CheckAll probes every target and returns exactly one result per target,
// in completion order. A stalled probe delays only its own worker; the
// call returns once every submitted target has produced a result.
func (p *Prober) CheckAll(ctx context.Context, runID string, targets []Target) []types.HealthCheckResult {
	if len(targets) == 0 {
		return nil
	}

	workers := p.maxWorkers
	if workers > len(targets) {
		workers = len(targets)
	}

	jobs := make(chan Target, len(targets))
	out := make(chan types.HealthCheckResult, len(targets))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for target := range jobs {
				out <- p.check(ctx, runID, target)
			}
		}()
	}

	for _, target := range targets {
		jobs <- target
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]types.HealthCheckResult, 0, len(targets))
	for res := range out {
		results = append(results, res)
	}
	return results
}

// check issues a HEAD probe, falling back once to GET when the server
// rejects the method. The GET body is discarded without being read.
func (p *Prober) check(ctx context.Context, runID string, target Target) types.HealthCheckResult {
	result := types.HealthCheckResult{
		RunID:      runID,
		ItemID:     target.ItemID,
		CheckedURL: target.URL,
		CheckedAt:  time.Now().UTC(),
	}

	start := time.Now()
	resp, err := p.do(ctx, http.MethodHead, target.URL)
	if err == nil && resp.StatusCode == http.StatusMethodNotAllowed {
		resp.Body.Close()
		// Recorded latency covers only the request that produced the
		// status, so the rejected HEAD round trip is excluded.
		start = time.Now()
		resp, err = p.do(ctx, http.MethodGet, target.URL)
	}
	if err != nil {
		result.ErrorMessage = err.Error()
		return result
	}
	defer func() {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1))
		resp.Body.Close()
	}()

	latency := time.Since(start).Milliseconds()
	status := resp.StatusCode
	result.StatusCode = &status
	result.LatencyMS = &latency
	result.OK = status < 400
	return result
}

func (p *Prober) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	return p.client.Do(req)
}
