package studio

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"escena-studio/modules/common/logger"
)

// RegistryStats - 세션 통계
type RegistryStats struct {
	TotalSessions  int       `json:"totalSessions"`
	ActiveSessions int       `json:"activeSessions"`
	StartTime      time.Time `json:"startTime"`
}

// Registry - 세션 id별 컨트롤러. 유휴 세션은 정리 루틴이 제거
type Registry struct {
	factory     func(id string) *Controller
	idleTimeout time.Duration
	now         func() time.Time
	log         *logrus.Entry

	mu       sync.RWMutex
	sessions map[string]*Controller
	stats    RegistryStats
}

// NewRegistry - factory는 새 세션 id마다 호출됨
func NewRegistry(factory func(id string) *Controller, idleTimeout time.Duration) *Registry {
	return &Registry{
		factory:     factory,
		idleTimeout: idleTimeout,
		now:         time.Now,
		log:         logger.WithModule("Sessions"),
		sessions:    make(map[string]*Controller),
		stats:       RegistryStats{StartTime: time.Now()},
	}
}

// WithClock - 정리 기준 시계 주입
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Get - 기존 세션 조회
func (r *Registry) Get(id string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.sessions[id]
	return c, ok
}

// GetOrCreate - 세션 가져오기 또는 생성
func (r *Registry) GetOrCreate(id string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.sessions[id]; ok {
		return c
	}
	c := r.factory(id)
	r.sessions[id] = c
	r.stats.TotalSessions++
	r.stats.ActiveSessions = len(r.sessions)
	r.log.Infof("✅ Created new session: %s (Total: %d, Active: %d)", id, r.stats.TotalSessions, r.stats.ActiveSessions)
	return c
}

// IDs - 활성 세션 id (정렬)
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// Cleanup - 진행 중이 아니고 idleTimeout 이상 사용되지 않은 세션 제거
func (r *Registry) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cleaned := 0
	for id, c := range r.sessions {
		if c.Busy() {
			continue
		}
		inactive := now.Sub(c.LastActive())
		if inactive < r.idleTimeout {
			continue
		}
		c.Close()
		delete(r.sessions, id)
		cleaned++
		r.log.Infof("⏰ Cleaned up inactive session: %s (Inactive: %v)", id, inactive)
	}
	r.stats.ActiveSessions = len(r.sessions)

	if cleaned > 0 {
		r.log.Infof("🧼 Cleaned up %d inactive sessions (Active: %d)", cleaned, r.stats.ActiveSessions)
	}
	return cleaned
}

// StartCleanup - interval마다 Cleanup 실행 (done이 닫히면 종료)
func (r *Registry) StartCleanup(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Cleanup()
			case <-done:
				return
			}
		}
	}()
	r.log.Infof("🔄 Started session cleanup routine (every %v, idle %v)", interval, r.idleTimeout)
}

// Wait - 모든 세션의 진행 중 단계 완료 대기 (종료 시)
func (r *Registry) Wait() {
	r.mu.RLock()
	sessions := make([]*Controller, 0, len(r.sessions))
	for _, c := range r.sessions {
		sessions = append(sessions, c)
	}
	r.mu.RUnlock()

	for _, c := range sessions {
		c.Wait()
	}
}
