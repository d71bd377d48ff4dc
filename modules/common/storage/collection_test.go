package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escena-studio/modules/common/model"
)

const window = 90 * 24 * time.Hour

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func daysAgo(days int) int64 {
	return fixedNow.Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
}

func galleryEntry(id string, ts int64) model.GalleryEntry {
	return model.GalleryEntry{GeneratedAsset: model.GeneratedAsset{
		ID: id, Type: model.AssetTypeImage, MediaURL: "data:image/png;base64,AA" + id, Timestamp: ts,
	}}
}

func ids[T Record](items []T) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.RecordID())
	}
	return out
}

type failingKV struct{ err error }

func (f failingKV) Get(context.Context, string) ([]byte, error)  { return nil, f.err }
func (f failingKV) Set(context.Context, string, []byte) error    { return f.err }
func (f failingKV) Delete(context.Context, string) error         { return f.err }

func TestCollection_ExpiryWindow(t *testing.T) {
	ctx := context.Background()
	store := New(NewMemoryKV(), "test", window, WithClock(clock))

	require.NoError(t, store.Gallery.Put(ctx, []model.GalleryEntry{
		galleryEntry("fresh", daysAgo(89)),
		galleryEntry("stale", daysAgo(91)),
	}))

	assert.Equal(t, []string{"fresh"}, ids(store.Gallery.Get(ctx)))
}

func TestCollection_ExactWindowBoundaryIsExpired(t *testing.T) {
	ctx := context.Background()
	store := New(NewMemoryKV(), "test", window, WithClock(clock))

	require.NoError(t, store.Gallery.Put(ctx, []model.GalleryEntry{galleryEntry("edge", daysAgo(90))}))

	assert.Empty(t, store.Gallery.Get(ctx))
}

func TestCollection_LazyExpiryPurgesOnNextWrite(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	store := New(kv, "test", window, WithClock(clock))

	require.NoError(t, store.Gallery.Put(ctx, []model.GalleryEntry{galleryEntry("stale", daysAgo(120))}))
	_ = store.Gallery.Get(ctx)

	raw, err := kv.Get(ctx, "test-gallery")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"stale"`)

	require.NoError(t, store.Gallery.Save(ctx, galleryEntry("new", daysAgo(0))))

	raw, err = kv.Get(ctx, "test-gallery")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"stale"`)
	assert.Contains(t, string(raw), `"new"`)
}

func TestCollection_SavePrepends(t *testing.T) {
	ctx := context.Background()
	store := New(NewMemoryKV(), "test", window, WithClock(clock))

	require.NoError(t, store.Gallery.Save(ctx, galleryEntry("a", daysAgo(1))))
	require.NoError(t, store.Gallery.Save(ctx, galleryEntry("b", daysAgo(0))))

	assert.Equal(t, []string{"b", "a"}, ids(store.Gallery.Get(ctx)))
}

func TestCollection_RemoveAndUpdate(t *testing.T) {
	ctx := context.Background()
	store := New(NewMemoryKV(), "test", window, WithClock(clock))
	require.NoError(t, store.Classification.Put(ctx, []model.ClassificationEntry{
		{GeneratedAsset: galleryEntry("a", daysAgo(1)).GeneratedAsset, Votes: 2},
		{GeneratedAsset: galleryEntry("b", daysAgo(1)).GeneratedAsset},
	}))

	changed, err := store.Classification.Update(ctx, "a", func(e model.ClassificationEntry) model.ClassificationEntry {
		e.Votes++
		return e
	})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.Classification.Update(ctx, "missing", func(e model.ClassificationEntry) model.ClassificationEntry { return e })
	require.NoError(t, err)
	assert.False(t, changed)

	items := store.Classification.Get(ctx)
	require.Len(t, items, 2)
	assert.Equal(t, 3, items[0].Votes)

	removed, err := store.Classification.RemoveByID(ctx, "b")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{"a"}, ids(store.Classification.Get(ctx)))

	removed, err = store.Classification.RemoveByID(ctx, "b")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestCollection_Clear(t *testing.T) {
	ctx := context.Background()
	store := New(NewMemoryKV(), "test", window, WithClock(clock))
	require.NoError(t, store.PromptHistory.Save(ctx, model.PromptHistoryEntry{ID: "h1", Scenes: []string{"x"}, Timestamp: daysAgo(0)}))

	require.NoError(t, store.PromptHistory.Clear(ctx))

	assert.Empty(t, store.PromptHistory.Get(ctx))
}

func TestCollection_ReadFailureIsEmptyAndLogged(t *testing.T) {
	ctx := context.Background()
	log, hook := logtest.NewNullLogger()
	store := New(failingKV{err: errors.New("storage unavailable")}, "test", window,
		WithClock(clock), WithLogger(logrus.NewEntry(log)))

	items := store.Gallery.Get(ctx)

	assert.NotNil(t, items)
	assert.Empty(t, items)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestCollection_MalformedJSONIsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, "test-prompt-history", []byte("{not json")))
	log, hook := logtest.NewNullLogger()
	store := New(kv, "test", window, WithClock(clock), WithLogger(logrus.NewEntry(log)))

	assert.Empty(t, store.PromptHistory.Get(ctx))
	assert.Len(t, hook.AllEntries(), 1)
}

func TestCollection_WriteFailurePropagates(t *testing.T) {
	ctx := context.Background()
	log, _ := logtest.NewNullLogger()
	store := New(failingKV{err: errors.New("quota")}, "test", window, WithClock(clock), WithLogger(logrus.NewEntry(log)))

	err := store.Gallery.Save(ctx, galleryEntry("a", daysAgo(0)))

	assert.Error(t, err)
}

// flakyKV - 다음 Get 한 번만 실패
type flakyKV struct {
	*MemoryKV
	failNext bool
}

func (f *flakyKV) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failNext {
		f.failNext = false
		return nil, errors.New("redis: i/o timeout")
	}
	return f.MemoryKV.Get(ctx, key)
}

func TestCollection_ReadFailureDoesNotOverwriteOnWrite(t *testing.T) {
	ctx := context.Background()
	log, _ := logtest.NewNullLogger()
	kv := &flakyKV{MemoryKV: NewMemoryKV()}
	store := New(kv, "test", window, WithClock(clock), WithLogger(logrus.NewEntry(log)))

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Gallery.Save(ctx, galleryEntry(id, daysAgo(0))))
	}

	kv.failNext = true
	err := store.Gallery.Save(ctx, galleryEntry("d", daysAgo(0)))
	assert.ErrorContains(t, err, "i/o timeout")
	assert.Equal(t, []string{"c", "b", "a"}, ids(store.Gallery.Get(ctx)))

	kv.failNext = true
	changed, err := store.Gallery.Update(ctx, "a", func(e model.GalleryEntry) model.GalleryEntry { return e })
	assert.Error(t, err)
	assert.False(t, changed)
	assert.Equal(t, []string{"c", "b", "a"}, ids(store.Gallery.Get(ctx)))

	require.NoError(t, store.Gallery.Save(ctx, galleryEntry("d", daysAgo(0))))
	assert.Equal(t, []string{"d", "c", "b", "a"}, ids(store.Gallery.Get(ctx)))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "escena-ai-gallery", Key("escena-ai", CollectionGallery))
	assert.Equal(t, "gallery", Key("", CollectionGallery))
}
