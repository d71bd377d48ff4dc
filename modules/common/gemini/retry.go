package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"escena-studio/modules/common/logger"
)

const (
	maxRetriesPerKey = 3
	defaultRetryWait = 2 * time.Second
)

// Rotator - API 키별 클라이언트를 보관하고 429 시 다음 키로 넘기는 헬퍼
// C는 보통 *genai.Client
type Rotator[C any] struct {
	keys      []string
	newClient func(ctx context.Context, key string) (C, error)
	wait      time.Duration
	log       *logrus.Entry

	mu      sync.Mutex
	clients map[string]C
}

// NewRotator - 키 목록과 클라이언트 생성 함수로 Rotator 생성
func NewRotator[C any](keys []string, newClient func(ctx context.Context, key string) (C, error)) *Rotator[C] {
	return &Rotator[C]{
		keys:      keys,
		newClient: newClient,
		wait:      defaultRetryWait,
		log:       logger.WithModule("Gemini Retry"),
		clients:   make(map[string]C),
	}
}

// WithWait - 재시도 대기 시간 변경 (테스트용)
func (r *Rotator[C]) WithWait(d time.Duration) *Rotator[C] {
	r.wait = d
	return r
}

// Keys - 설정된 키 개수
func (r *Rotator[C]) Keys() int {
	return len(r.keys)
}

func (r *Rotator[C]) client(ctx context.Context, key string) (C, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[key]; ok {
		return c, nil
	}
	c, err := r.newClient(ctx, key)
	if err != nil {
		return c, err
	}
	r.clients[key] = c
	return c, nil
}

// Do - 각 키당 최대 3번 시도. 429가 아닌 에러는 바로 반환
func Do[C, T any](ctx context.Context, r *Rotator[C], call func(ctx context.Context, client C) (T, error)) (T, error) {
	var zero T
	if len(r.keys) == 0 {
		return zero, fmt.Errorf("no API keys provided")
	}

	var lastErr error
	for keyIndex, key := range r.keys {
		client, err := r.client(ctx, key)
		if err != nil {
			r.log.Warnf("⚠️  Failed to create client with key #%d: %v", keyIndex+1, err)
			lastErr = err
			continue
		}

		for attempt := 1; attempt <= maxRetriesPerKey; attempt++ {
			result, err := call(ctx, client)
			if err == nil {
				if keyIndex > 0 || attempt > 1 {
					r.log.Infof("✅ Success with API key #%d (attempt %d/%d)", keyIndex+1, attempt, maxRetriesPerKey)
				}
				return result, nil
			}
			lastErr = err

			if !IsRateLimited(err) {
				return zero, err
			}

			r.log.Warnf("⚠️  Key #%d hit rate limit (429) on attempt %d/%d", keyIndex+1, attempt, maxRetriesPerKey)
			if attempt < maxRetriesPerKey {
				select {
				case <-ctx.Done():
					return zero, ctx.Err()
				case <-time.After(r.wait):
				}
			}
		}

		r.log.Warnf("⚠️  Key #%d exhausted all %d attempts, trying next key...", keyIndex+1, maxRetriesPerKey)
	}

	return zero, fmt.Errorf("all %d API keys exhausted (%d attempts each), last error: %w", len(r.keys), maxRetriesPerKey, lastErr)
}

// IsRateLimited - 429 Rate Limit 에러인지 확인
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED"
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code == 429 || apiErrPtr.Status == "RESOURCE_EXHAUSTED"
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "resource_exhausted")
}

// NewAPIKeyClient - Gemini API 백엔드 클라이언트
func NewAPIKeyClient(ctx context.Context, key string) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
}
