package storage

import (
	"context"
	"fmt"

	"escena-studio/modules/common/config"
	"escena-studio/modules/common/logger"
	redisconn "escena-studio/modules/common/redis"
)

// OpenKV - STORE_BACKEND에 맞는 KV 생성. close는 항상 non-nil
func OpenKV(ctx context.Context, cfg *config.Config) (KV, func() error, error) {
	log := logger.WithModule("Store")
	noop := func() error { return nil }

	switch cfg.StoreBackend {
	case config.StoreBackendRedis:
		rdb, err := redisconn.Connect(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		log.Infof("✅ Using Redis store (%s)", cfg.GetRedisAddr())
		return NewRedisKV(rdb), rdb.Close, nil

	case config.StoreBackendSupabase:
		kv, err := NewSupabaseKV(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseCollectionsTable)
		if err != nil {
			return nil, noop, err
		}
		log.Infof("✅ Using Supabase store (table: %s)", cfg.SupabaseCollectionsTable)
		return kv, noop, nil

	case config.StoreBackendMemory, "":
		log.Warn("⚠️  Using in-memory store, collections are lost on restart")
		return NewMemoryKV(), noop, nil
	}
	return nil, noop, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
}
