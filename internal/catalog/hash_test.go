// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

func normalized(t *testing.T, data string) types.CanonicalItem {
	t.Helper()
	var raw types.RawItem
	require.NoError(t, json.Unmarshal([]byte(data), &raw))
	item, err := Normalize(raw, "run-1", time.Now())
	require.NoError(t, err)
	return item
}

func TestContentHashIgnoresIncidentalFields(t *testing.T) {
	a := normalized(t, `{"id":"a1","title":"Roads","numViews":10}`)
	b := normalized(t, `{"id":"a1","title":"Roads","numViews":99999}`)

	assert.Equal(t, a.ContentHash, b.ContentHash)

	// Last-seen markers are set after hashing and do not feed the digest.
	b.LastSeenRunID = "run-2"
	assert.Equal(t, a.ContentHash, ContentHash(b))
}

func TestContentHashIgnoresFieldOrder(t *testing.T) {
	a := normalized(t, `{"id":"a1","title":"Roads","owner":"gis_admin","tags":["roads","transit"]}`)
	b := normalized(t, `{"tags":["roads","transit"],"owner":"gis_admin","id":"a1","title":"Roads"}`)

	assert.Equal(t, a.ContentHash, b.ContentHash)
}

func TestContentHashChangesWithMaterialFields(t *testing.T) {
	base := `{"id":"a1","title":"Roads","url":"http://x"}`
	a := normalized(t, base)

	changed := []string{
		`{"id":"a1","title":"Roads (2026)","url":"http://x"}`,
		`{"id":"a1","title":"Roads","url":"http://y"}`,
		`{"id":"a1","title":"Roads","url":"http://x","description":"Road network"}`,
		`{"id":"a1","title":"Roads","url":"http://x","tags":["roads"]}`,
		`{"id":"a1","title":"Roads","url":"http://x","modified":1700000000000}`,
		`{"id":"a1","title":"Roads","url":"http://x","extent":[[0,0],[1,1]]}`,
	}
	for _, data := range changed {
		b := normalized(t, data)
		assert.NotEqual(t, a.ContentHash, b.ContentHash, "record %s", data)
	}
}

func TestContentHashIsDeterministic(t *testing.T) {
	item := normalized(t, `{"id":"a1","title":"Roads","tags":["a","b"],"extent":[[0,0],[1,1]],"modified":1700000000000}`)

	first := ContentHash(item)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ContentHash(item))
	}
	assert.Len(t, first, 64)
}
