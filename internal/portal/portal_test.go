// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package portal

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

func portalConfig(baseURL string) types.PortalConfig {
	return types.PortalConfig{
		HTTPConfig: types.HTTPConfig{UserAgent: "catalog-engine-test"},
		URL:        baseURL,
		OrgID:      "org-1",
		PageSize:   2,
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.PortalConfig
		snap types.SnapshotConfig
		want string
	}{
		{
			name: "default scopes to org and public access",
			cfg:  types.PortalConfig{OrgID: "org-1"},
			want: "orgid:org-1 AND access:public",
		},
		{
			name: "no org falls back to public access",
			want: "access:public",
		},
		{
			name: "explicit query wins",
			cfg:  types.PortalConfig{OrgID: "org-1"},
			snap: types.SnapshotConfig{Query: "owner:gis_admin"},
			want: "owner:gis_admin",
		},
		{
			name: "item types become an OR group",
			snap: types.SnapshotConfig{ItemTypes: []string{"Feature Service", "Web Map"}},
			want: `access:public AND (type:"Feature Service" OR type:"Web Map")`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildQuery(tt.cfg, tt.snap))
		})
	}
}

func TestSearchSinglePage(t *testing.T) {
	var gotQuery, gotToken, gotFormat string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sharing/rest/search", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotToken = r.URL.Query().Get("token")
		gotFormat = r.URL.Query().Get("f")
		fmt.Fprint(w, `{
			"total": 2, "start": 1, "num": 2, "nextStart": -1,
			"results": [
				{"id": "a1", "title": "Roads", "type": "Feature Service", "owner": "gis_admin",
				 "modified": 1700000000000, "tags": ["roads"], "numViews": 10},
				{"id": "b2", "title": "Parcels", "type": "Web Map", "owner": "gis_admin",
				 "tags": "parcels, cadastre"}
			]
		}`)
	}))
	defer ts.Close()

	c := New(ts.Client(), portalConfig(ts.URL), "tk_abc")
	items, err := c.Search(context.Background(), types.SnapshotConfig{}, &bytes.Buffer{})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "orgid:org-1 AND access:public", gotQuery)
	assert.Equal(t, "tk_abc", gotToken)
	assert.Equal(t, "json", gotFormat)

	assert.Equal(t, "a1", items[0].ID)
	assert.Equal(t, "Roads", items[0].Title)
	assert.True(t, items[0].Modified.Valid)
	assert.Equal(t, int64(10), items[0].NumViews)
	// Comma-separated tag strings survive decoding.
	assert.Equal(t, types.TagList{"parcels", "cadastre"}, items[1].Tags)
}

func TestSearchPaging(t *testing.T) {
	pages := map[string]string{
		"1": `{"total": 3, "nextStart": 3, "results": [{"id": "a"}, {"id": "b"}]}`,
		"3": `{"total": 3, "nextStart": -1, "results": [{"id": "c"}]}`,
	}
	var requests int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		body, ok := pages[r.URL.Query().Get("start")]
		require.True(t, ok, "unexpected start %s", r.URL.Query().Get("start"))
		fmt.Fprint(w, body)
	}))
	defer ts.Close()

	c := New(ts.Client(), portalConfig(ts.URL), "")
	items, err := c.Search(context.Background(), types.SnapshotConfig{}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 2, requests)

	var ids []string
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestSearchMaxItems(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		num, _ := strconv.Atoi(r.URL.Query().Get("num"))
		fmt.Fprintf(w, `{"total": 100, "nextStart": %d, "results": [`, start+num)
		for i := 0; i < num; i++ {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"id": "item-%d"}`, start+i)
		}
		fmt.Fprint(w, `]}`)
	}))
	defer ts.Close()

	c := New(ts.Client(), portalConfig(ts.URL), "")
	items, err := c.Search(context.Background(), types.SnapshotConfig{MaxItems: 3}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestSearchFirstPageFailureIsFatal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := New(ts.Client(), portalConfig(ts.URL), "")
	_, err := c.Search(context.Background(), types.SnapshotConfig{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestSearchLaterPageFailureKeepsPartialBatch(t *testing.T) {
	var requests int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			fmt.Fprint(w, `{"total": 4, "nextStart": 3, "results": [{"id": "a"}, {"id": "b"}]}`)
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	var progress bytes.Buffer
	c := New(ts.Client(), portalConfig(ts.URL), "")
	items, err := c.Search(context.Background(), types.SnapshotConfig{}, &progress)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Contains(t, progress.String(), "warning")
}

func TestSearchPortalErrorEnvelope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": {"code": 498, "message": "Invalid token."}}`)
	}))
	defer ts.Close()

	c := New(ts.Client(), portalConfig(ts.URL), "bad-token")
	_, err := c.Search(context.Background(), types.SnapshotConfig{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid token")
}
