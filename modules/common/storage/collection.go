package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"escena-studio/modules/common/logger"
)

// Record - 컬렉션에 저장되는 항목 (id + epoch ms 타임스탬프)
type Record interface {
	RecordID() string
	RecordTimestamp() int64
}

// Option - Collection 옵션
type Option func(*options)

type options struct {
	now func() time.Time
	log *logrus.Entry
}

// WithClock - 만료 계산용 시계 주입
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger - 로그 엔트리 주입
func WithLogger(entry *logrus.Entry) Option {
	return func(o *options) { o.log = entry }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, log: logger.WithModule("Store")}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Collection - 만료 필터가 적용되는 타입 컬렉션 (키 하나에 JSON 배열 하나)
type Collection[T Record] struct {
	kv        KV
	key       string
	window    time.Duration
	normalize func([]byte) ([]byte, error)
	now       func() time.Time
	log       *logrus.Entry

	mu sync.Mutex
}

// NewCollection - 컬렉션 생성
func NewCollection[T Record](kv KV, key string, window time.Duration, opts ...Option) *Collection[T] {
	o := buildOptions(opts)
	return &Collection[T]{
		kv:     kv,
		key:    key,
		window: window,
		now:    o.now,
		log:    o.log.WithField("collection", key),
	}
}

// withNormalizer - 역직렬화 전에 원본 JSON을 변환 (레거시 레코드)
func (c *Collection[T]) withNormalizer(fn func([]byte) ([]byte, error)) *Collection[T] {
	c.normalize = fn
	return c
}

// Key - 저장소 키
func (c *Collection[T]) Key() string {
	return c.key
}

// Get - 만료되지 않은 항목 (읽기 실패는 빈 컬렉션)
func (c *Collection[T]) Get(ctx context.Context) []T {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if err != nil {
		return []T{}
	}
	return items
}

// Put - 컬렉션 전체 덮어쓰기
func (c *Collection[T]) Put(ctx context.Context, items []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(ctx, items)
}

// Mutate - 읽기-수정-쓰기 (잠금 유지). fn이 false를 반환하면 쓰지 않음
// 저장소 읽기가 실패하면 기존 데이터를 덮어쓰지 않고 에러 반환
func (c *Collection[T]) Mutate(ctx context.Context, fn func(items []T) ([]T, bool)) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if err != nil {
		return false, err
	}
	next, changed := fn(items)
	if !changed {
		return false, nil
	}
	if err := c.write(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// Save - 맨 앞에 추가
func (c *Collection[T]) Save(ctx context.Context, item T) error {
	_, err := c.Mutate(ctx, func(items []T) ([]T, bool) {
		return append([]T{item}, items...), true
	})
	return err
}

// RemoveByID - id 일치 항목 제거. 없으면 쓰지 않음
func (c *Collection[T]) RemoveByID(ctx context.Context, id string) (bool, error) {
	return c.Mutate(ctx, func(items []T) ([]T, bool) {
		out := make([]T, 0, len(items))
		for _, item := range items {
			if item.RecordID() != id {
				out = append(out, item)
			}
		}
		return out, len(out) != len(items)
	})
}

// Update - id 일치 항목을 제자리에서 변경
func (c *Collection[T]) Update(ctx context.Context, id string, fn func(T) T) (bool, error) {
	return c.Mutate(ctx, func(items []T) ([]T, bool) {
		found := false
		for i, item := range items {
			if item.RecordID() == id {
				items[i] = fn(item)
				found = true
			}
		}
		return items, found
	})
}

// Clear - 빈 배열로 덮어쓰기
func (c *Collection[T]) Clear(ctx context.Context) error {
	return c.Put(ctx, []T{})
}

// load - 에러는 저장소 읽기 실패만. 손상된 JSON은 로그 후 빈 컬렉션
func (c *Collection[T]) load(ctx context.Context) ([]T, error) {
	raw, err := c.kv.Get(ctx, c.key)
	if err != nil {
		c.log.Errorf("❌ Failed to read collection: %v", err)
		return nil, fmt.Errorf("read %s: %w", c.key, err)
	}
	if len(raw) == 0 {
		return []T{}, nil
	}

	if c.normalize != nil {
		if raw, err = c.normalize(raw); err != nil {
			c.log.Errorf("❌ Failed to normalize collection: %v", err)
			return []T{}, nil
		}
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		c.log.Errorf("❌ Failed to parse collection: %v", err)
		return []T{}, nil
	}

	nowMs := c.now().UnixMilli()
	windowMs := c.window.Milliseconds()
	live := make([]T, 0, len(items))
	for _, item := range items {
		if nowMs-item.RecordTimestamp() < windowMs {
			live = append(live, item)
		}
	}
	return live, nil
}

func (c *Collection[T]) write(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key, err)
	}
	if err := c.kv.Set(ctx, c.key, raw); err != nil {
		c.log.Errorf("❌ Failed to write collection: %v", err)
		return err
	}
	return nil
}
