// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package health

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

func testProber(workers int) *Prober {
	return New(nil, types.HealthConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 2 * time.Second, UserAgent: "catalog-engine-test"},
		MaxWorkers: workers,
	})
}

func resultFor(t *testing.T, results []types.HealthCheckResult, itemID string) types.HealthCheckResult {
	t.Helper()
	for _, r := range results {
		if r.ItemID == itemID {
			return r
		}
	}
	t.Fatalf("no result for item %s", itemID)
	return types.HealthCheckResult{}
}

func TestCheckAllClassifiesStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/redirected":
			w.WriteHeader(http.StatusNoContent)
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	targets := []Target{
		{ItemID: "a", URL: srv.URL + "/ok"},
		{ItemID: "b", URL: srv.URL + "/redirected"},
		{ItemID: "c", URL: srv.URL + "/missing"},
		{ItemID: "d", URL: srv.URL + "/broken"},
	}

	results := testProber(2).CheckAll(context.Background(), "run-1", targets)
	require.Len(t, results, len(targets))

	ok := resultFor(t, results, "a")
	assert.True(t, ok.OK)
	require.NotNil(t, ok.StatusCode)
	assert.Equal(t, http.StatusOK, *ok.StatusCode)
	require.NotNil(t, ok.LatencyMS)
	assert.Empty(t, ok.ErrorMessage)
	assert.Equal(t, "run-1", ok.RunID)
	assert.Equal(t, srv.URL+"/ok", ok.CheckedURL)

	missing := resultFor(t, results, "c")
	assert.False(t, missing.OK)
	require.NotNil(t, missing.StatusCode)
	assert.Equal(t, http.StatusNotFound, *missing.StatusCode)
	assert.Empty(t, missing.ErrorMessage)

	broken := resultFor(t, results, "d")
	assert.False(t, broken.OK)
	require.NotNil(t, broken.StatusCode)
	assert.Equal(t, http.StatusInternalServerError, *broken.StatusCode)
}

func TestCheckFallsBackToGETOn405(t *testing.T) {
	var heads, gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			heads.Add(1)
			w.WriteHeader(http.StatusMethodNotAllowed)
		case http.MethodGet:
			gets.Add(1)
			fmt.Fprint(w, "service directory")
		}
	}))
	defer srv.Close()

	results := testProber(1).CheckAll(context.Background(), "run-1", []Target{{ItemID: "a", URL: srv.URL}})

	require.Len(t, results, 1)
	assert.True(t, results[0].OK)
	require.NotNil(t, results[0].StatusCode)
	assert.Equal(t, http.StatusOK, *results[0].StatusCode)
	assert.Equal(t, int32(1), heads.Load())
	assert.Equal(t, int32(1), gets.Load())
}

func TestCheckFallbackLatencyExcludesRejectedHEAD(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			time.Sleep(500 * time.Millisecond)
			w.WriteHeader(http.StatusMethodNotAllowed)
		case http.MethodGet:
			fmt.Fprint(w, "service directory")
		}
	}))
	defer srv.Close()

	results := testProber(1).CheckAll(context.Background(), "run-1", []Target{{ItemID: "a", URL: srv.URL}})

	require.Len(t, results, 1)
	require.NotNil(t, results[0].LatencyMS)
	// Latency reflects the GET that produced the status, not the slow
	// rejected HEAD before it.
	assert.Less(t, *results[0].LatencyMS, int64(400))
}

func TestCheckTransportFailure(t *testing.T) {
	// Closed server: connection refused, no HTTP status.
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	results := testProber(1).CheckAll(context.Background(), "run-1", []Target{{ItemID: "a", URL: url}})

	require.Len(t, results, 1)
	assert.False(t, results[0].OK)
	assert.Nil(t, results[0].StatusCode)
	assert.Nil(t, results[0].LatencyMS)
	assert.NotEmpty(t, results[0].ErrorMessage)
}

func TestCheckAllNeverDropsATarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	var targets []Target
	for i := 0; i < 40; i++ {
		path := "/ok"
		if i%3 == 0 {
			path = "/fail"
		}
		targets = append(targets, Target{ItemID: fmt.Sprintf("item-%d", i), URL: srv.URL + path})
	}

	results := testProber(8).CheckAll(context.Background(), "run-1", targets)

	require.Len(t, results, len(targets))
	seen := make(map[string]bool)
	for _, r := range results {
		seen[r.ItemID] = true
	}
	assert.Len(t, seen, len(targets))
}

func TestCheckAllHonorsWorkerBound(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
	}))
	defer srv.Close()

	var targets []Target
	for i := 0; i < 20; i++ {
		targets = append(targets, Target{ItemID: fmt.Sprintf("item-%d", i), URL: srv.URL})
	}

	results := testProber(3).CheckAll(context.Background(), "run-1", targets)

	require.Len(t, results, 20)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestCheckAllEmptySet(t *testing.T) {
	assert.Nil(t, testProber(4).CheckAll(context.Background(), "run-1", nil))
}
