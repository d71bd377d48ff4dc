package gallery

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"escena-studio/modules/common/logger"
	"escena-studio/modules/common/model"
	"escena-studio/modules/common/storage"
)

var (
	// ErrNotFound - 해당 id의 항목이 없음
	ErrNotFound = errors.New("entry not found")
	// ErrInvalidVote - 투표는 +1 또는 -1만 허용
	ErrInvalidVote = errors.New("vote must be +1 or -1")
)

// DefaultHistoryLimit - 프롬프트 히스토리 최대 개수
const DefaultHistoryLimit = 50

// Manager - 갤러리, 분류(투표), 프롬프트 히스토리 관리
type Manager struct {
	store        *storage.Store
	historyLimit int
	now          func() time.Time
	newID        func() string
	log          *logrus.Entry
}

// Option - Manager 옵션
type Option func(*Manager)

func WithHistoryLimit(limit int) Option {
	return func(m *Manager) {
		if limit > 0 {
			m.historyLimit = limit
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithIDs(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

func WithLogger(entry *logrus.Entry) Option {
	return func(m *Manager) { m.log = entry }
}

func NewManager(store *storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store:        store,
		historyLimit: DefaultHistoryLimit,
		now:          time.Now,
		newID:        uuid.NewString,
		log:          logger.WithModule("Gallery"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Gallery - 최신순 갤러리 (만료 항목 제외)
func (m *Manager) Gallery(ctx context.Context) []model.GalleryEntry {
	items := m.store.Gallery.Get(ctx)
	sortNewestFirst(items)
	return items
}

// Entry - id로 갤러리 항목 조회
func (m *Manager) Entry(ctx context.Context, id string) (model.GalleryEntry, error) {
	for _, item := range m.store.Gallery.Get(ctx) {
		if item.ID == id {
			return item, nil
		}
	}
	return model.GalleryEntry{}, ErrNotFound
}

// Save - (mediaUrl, originalPrompt) 중복이면 저장하지 않음. 저장 여부 반환
func (m *Manager) Save(ctx context.Context, asset model.GeneratedAsset) (bool, error) {
	saved, err := m.store.Gallery.Mutate(ctx, func(items []model.GalleryEntry) ([]model.GalleryEntry, bool) {
		for _, item := range items {
			if item.MediaURL == asset.MediaURL && item.OriginalPrompt == asset.OriginalPrompt {
				return items, false
			}
		}
		next := append([]model.GalleryEntry{{GeneratedAsset: asset}}, items...)
		sortNewestFirst(next)
		return next, true
	})
	if err != nil {
		return false, err
	}
	if saved {
		m.log.Debugf("💾 Saved asset %s (%s)", asset.ID, asset.Engine)
	}
	return saved, nil
}

// Remove - 갤러리에서 삭제 (되돌릴 수 없음)
func (m *Manager) Remove(ctx context.Context, id string) error {
	removed, err := m.store.Gallery.RemoveByID(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFound
	}
	return nil
}

// Promote - 갤러리 항목을 투표 0으로 분류 컬렉션에 복사
// 이미 있으면 아무것도 하지 않고 false
func (m *Manager) Promote(ctx context.Context, id string) (bool, error) {
	entry, err := m.Entry(ctx, id)
	if err != nil {
		return false, err
	}

	promoted, err := m.store.Classification.Mutate(ctx, func(items []model.ClassificationEntry) ([]model.ClassificationEntry, bool) {
		for _, item := range items {
			if item.ID == id {
				return items, false
			}
		}
		return append([]model.ClassificationEntry{{GeneratedAsset: entry.GeneratedAsset}}, items...), true
	})
	if err != nil {
		return false, err
	}
	if promoted {
		m.log.Infof("🏆 Promoted %s to classification", id)
	}
	return promoted, nil
}

// Classification - 투표 내림차순 (동점은 저장 순서 유지)
func (m *Manager) Classification(ctx context.Context) []model.ClassificationEntry {
	items := m.store.Classification.Get(ctx)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Votes > items[j].Votes
	})
	return items
}

// Vote - ±1 적용. 없는 id는 조용히 무시
func (m *Manager) Vote(ctx context.Context, id string, delta int) error {
	if delta != 1 && delta != -1 {
		return ErrInvalidVote
	}
	_, err := m.store.Classification.Update(ctx, id, func(e model.ClassificationEntry) model.ClassificationEntry {
		e.Votes += delta
		return e
	})
	return err
}

// History - 프롬프트 히스토리 (최신순)
func (m *Manager) History(ctx context.Context) []model.PromptHistoryEntry {
	return m.store.PromptHistory.Get(ctx)
}

// HistoryEntry - id로 히스토리 조회
func (m *Manager) HistoryEntry(ctx context.Context, id string) (model.PromptHistoryEntry, error) {
	for _, item := range m.store.PromptHistory.Get(ctx) {
		if item.ID == id {
			return item, nil
		}
	}
	return model.PromptHistoryEntry{}, ErrNotFound
}

// SaveHistory - 모두 공백이거나 동일 설정이 이미 있으면 저장하지 않음
// 한도를 넘으면 가장 오래된 항목부터 제거
func (m *Manager) SaveHistory(ctx context.Context, draft model.PromptDraft) (bool, error) {
	if draft.AllScenesBlank() && strings.TrimSpace(draft.NegativePrompt) == "" {
		return false, nil
	}

	entry := model.PromptHistoryEntry{
		ID:             m.newID(),
		Scenes:         append([]string(nil), draft.Scenes...),
		NegativePrompt: draft.NegativePrompt,
		Style:          draft.Style,
		AspectRatio:    draft.AspectRatio,
		Timestamp:      m.now().UnixMilli(),
	}

	return m.store.PromptHistory.Mutate(ctx, func(items []model.PromptHistoryEntry) ([]model.PromptHistoryEntry, bool) {
		for _, item := range items {
			if item.SameSettings(entry) {
				return items, false
			}
		}
		next := append([]model.PromptHistoryEntry{entry}, items...)
		if len(next) > m.historyLimit {
			next = next[:m.historyLimit]
		}
		return next, true
	})
}

func (m *Manager) RemoveHistory(ctx context.Context, id string) error {
	removed, err := m.store.PromptHistory.RemoveByID(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFound
	}
	return nil
}

func (m *Manager) ClearHistory(ctx context.Context) error {
	return m.store.PromptHistory.Clear(ctx)
}

func sortNewestFirst(items []model.GalleryEntry) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp > items[j].Timestamp
	})
}
