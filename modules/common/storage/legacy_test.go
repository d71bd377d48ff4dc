package storage

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeImageItems_LegacyShapes(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	ts := daysAgo(2)
	raw := `[
		{"id":"a","imageUrl":"data:a","prompt":"p","timestamp":` + itoa(ts) + `},
		{"id":"b","src":"data:b","type":"image","timestamp":` + itoa(ts) + `},
		{"id":"c","mediaUrl":"data:c","type":"video","timestamp":` + itoa(ts) + `},
		{"id":1717000000000,"mediaUrl":"data:d","timestamp":` + itoa(ts) + `},
		{"id":"e","timestamp":` + itoa(ts) + `},
		"garbage"
	]`
	require.NoError(t, kv.Set(ctx, "test-gallery", []byte(raw)))
	store := New(kv, "test", window, WithClock(clock))

	items := store.Gallery.Get(ctx)

	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "data:a", items[0].MediaURL)
	assert.Equal(t, "image", items[0].Type)
	assert.Equal(t, "1:1", string(items[0].AspectRatio))
	assert.Equal(t, "data:b", items[1].MediaURL)
	assert.Equal(t, "1717000000000", items[2].ID)
}

func TestNormalizeImageItems_KeepsVotes(t *testing.T) {
	out, err := NormalizeImageItems([]byte(`[{"id":"a","mediaUrl":"m","votes":-3,"timestamp":5}]`))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a","type":"image","mediaUrl":"m","votes":-3,"timestamp":5,"aspectRatio":"1:1"}]`, string(out))
}

func TestNormalizeImageItems_NotAnArray(t *testing.T) {
	_, err := NormalizeImageItems([]byte(`{"id":"a"}`))
	assert.Error(t, err)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
