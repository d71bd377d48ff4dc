package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKV(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	v, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	buf := []byte("[1]")
	require.NoError(t, kv.Set(ctx, "k", buf))
	buf[1] = '9'

	v, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "[1]", string(v))

	require.NoError(t, kv.Delete(ctx, "k"))
	v, _ = kv.Get(ctx, "k")
	assert.Nil(t, v)
}

type fakeRedis struct {
	data   map[string]string
	getErr error
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisKV(t *testing.T) {
	ctx := context.Background()
	fake := &fakeRedis{data: map[string]string{}}
	kv := &RedisKV{rdb: fake}

	v, err := kv.Get(ctx, "escena-ai-gallery")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, kv.Set(ctx, "escena-ai-gallery", []byte(`[]`)))
	v, err = kv.Get(ctx, "escena-ai-gallery")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(v))

	require.NoError(t, kv.Delete(ctx, "escena-ai-gallery"))
	assert.Empty(t, fake.data)
}

func TestRedisKV_ErrorFeedsCollectionAsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := &RedisKV{rdb: &fakeRedis{data: map[string]string{}, getErr: errors.New("connection refused")}}

	_, err := kv.Get(ctx, "k")
	assert.ErrorContains(t, err, "connection refused")

	store := New(kv, "test", window, WithClock(clock))
	assert.Empty(t, store.Gallery.Get(ctx))
}
