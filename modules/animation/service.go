package animation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"escena-studio/modules/common/logger"
	"escena-studio/modules/common/metrics"
	"escena-studio/modules/common/model"
	"escena-studio/modules/common/storage"
	"escena-studio/modules/common/utils"
	"escena-studio/modules/engine"
)

var (
	ErrNotFound       = errors.New("animation job not found")
	ErrInvalidRequest = errors.New("invalid animation request")
	ErrQueueFull      = errors.New("animation queue is full")
	ErrNoVideo        = errors.New("animation has no stored video")
	ErrFinished       = errors.New("animation job already finished")
)

// DefaultQueueSize - 대기 중인 작업 최대 수
const DefaultQueueSize = 32

// GalleryLookup - 갤러리 항목 조회 (gallery.Manager)
type GalleryLookup interface {
	Entry(ctx context.Context, id string) (model.GalleryEntry, error)
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func WithLogger(entry *logrus.Entry) Option {
	return func(s *Service) { s.log = entry }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queue = make(chan string, n)
		}
	}
}

// Service - 작업 레코드, 원본 이미지, 결과 비디오를 KV에 저장하고 워커가 처리
type Service struct {
	kv       storage.KV
	prefix   string
	animator engine.Animator
	gallery  GalleryLookup
	metrics  *metrics.Recorder
	queue    chan string
	log      *logrus.Entry
	now      func() time.Time
	newID    func() string

	// 작업 레코드 read-modify-write 보호 (워커와 취소 요청)
	mu sync.Mutex
}

func NewService(kv storage.KV, prefix string, animator engine.Animator, gallery GalleryLookup, opts ...Option) *Service {
	s := &Service{
		kv:       kv,
		prefix:   prefix,
		animator: animator,
		gallery:  gallery,
		queue:    make(chan string, DefaultQueueSize),
		log:      logger.WithModule("Animation"),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit - 작업을 submitted 상태로 저장하고 큐에 추가
func (s *Service) Submit(ctx context.Context, req Request) (*Job, error) {
	mimeType, data, prompt, err := s.resolveSource(ctx, req)
	if err != nil {
		return nil, err
	}

	now := s.now().UnixMilli()
	job := &Job{
		ID:         s.newID(),
		Status:     engine.TaskSubmitted,
		GalleryID:  req.GalleryID,
		Prompt:     prompt,
		SourceMIME: mimeType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.kv.Set(ctx, s.sourceKey(job.ID), data); err != nil {
		return nil, fmt.Errorf("failed to store animation source: %w", err)
	}
	if err := s.putJob(ctx, job); err != nil {
		return nil, err
	}

	select {
	case s.queue <- job.ID:
	default:
		s.finish(ctx, job.ID, nil, ErrQueueFull)
		return nil, ErrQueueFull
	}

	s.log.Infof("🎬 Animation job %s submitted", job.ID)
	return job, nil
}

// Get - 작업 조회
func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	raw, err := s.kv.Get(ctx, s.jobKey(id))
	if err != nil {
		return nil, fmt.Errorf("failed to load animation job: %w", err)
	}
	if raw == nil {
		return nil, ErrNotFound
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("failed to decode animation job: %w", err)
	}
	return &job, nil
}

// Video - 완료된 작업의 비디오 바이너리
func (s *Service) Video(ctx context.Context, id string) ([]byte, *Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != engine.TaskDone || !job.HasVideo {
		return nil, job, ErrNoVideo
	}
	data, err := s.kv.Get(ctx, s.videoKey(id))
	if err != nil {
		return nil, job, fmt.Errorf("failed to load video: %w", err)
	}
	if data == nil {
		return nil, job, ErrNoVideo
	}
	return data, job, nil
}

// ProcessJob - pending으로 바꾸고 엔진 호출. 엔진이 완료까지 폴링함
func (s *Service) ProcessJob(ctx context.Context, id string) error {
	job, err := s.markPending(ctx, id)
	if err != nil || job == nil {
		return err
	}

	source, err := s.kv.Get(ctx, s.sourceKey(id))
	if err == nil && source == nil {
		err = errors.New("animation source image is missing")
	}
	if err != nil {
		s.finish(ctx, id, nil, err)
		return err
	}

	video, err := s.animator.AnimateImage(ctx, engine.Image{Data: source, MIMEType: job.SourceMIME}, job.Prompt)
	s.finish(ctx, id, video, err)
	return err
}

// markPending - 이미 끝났거나 취소된 작업이면 nil
func (s *Service) markPending(ctx context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		s.log.Infof("🛑 Animation job %s is %s, skipping", id, job.Status)
		return nil, nil
	}
	job.Status = engine.TaskPending
	job.UpdatedAt = s.now().UnixMilli()
	if err := s.putJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// finish - done 또는 failed 기록. 처리 중 취소됐으면 결과를 버리고 취소 상태 유지
func (s *Service) finish(ctx context.Context, id string, video *engine.Video, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, gerr := s.Get(ctx, id)
	if gerr != nil {
		s.log.Errorf("❌ Failed to load animation job %s: %v", id, gerr)
		return
	}
	defer s.deleteSource(ctx, id)

	if job.Cancelled {
		s.log.Infof("🛑 Animation job %s was cancelled, discarding result", id)
		return
	}
	job.UpdatedAt = s.now().UnixMilli()

	if err == nil && video != nil && len(video.Data) > 0 {
		if serr := s.kv.Set(ctx, s.videoKey(id), video.Data); serr != nil {
			err = fmt.Errorf("failed to store video: %w", serr)
		}
	}

	switch {
	case err != nil:
		job.Status = engine.TaskFailed
		job.Error = err.Error()
		job.ErrorKind = engine.KindOf(err)
		s.log.Errorf("❌ Animation job %s failed: %v", id, err)
	case video == nil || (len(video.Data) == 0 && video.URI == ""):
		job.Status = engine.TaskFailed
		job.Error = "engine returned no video"
		job.ErrorKind = engine.KindMalformedResponse
		s.log.Errorf("❌ Animation job %s returned no video", id)
	default:
		job.Status = engine.TaskDone
		job.VideoMIME = video.MIMEType
		job.VideoURI = video.URI
		job.HasVideo = len(video.Data) > 0
		s.log.Infof("✅ Animation job %s completed", id)
	}

	if perr := s.putJob(ctx, job); perr != nil {
		s.log.Errorf("❌ Failed to record animation job %s: %v", id, perr)
	}
	s.metrics.AnimationJob(string(job.Status))
}

func (s *Service) deleteSource(ctx context.Context, id string) {
	if err := s.kv.Delete(ctx, s.sourceKey(id)); err != nil {
		s.log.Warnf("⚠️ Failed to delete animation source %s: %v", id, err)
	}
}

func (s *Service) resolveSource(ctx context.Context, req Request) (string, []byte, string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	uri := req.Image

	if req.GalleryID != "" {
		entry, err := s.gallery.Entry(ctx, req.GalleryID)
		if err != nil {
			return "", nil, "", err
		}
		uri = entry.MediaURL
		if prompt == "" {
			prompt = entry.Prompt
		}
	}
	if uri == "" {
		return "", nil, "", fmt.Errorf("%w: galleryId or image is required", ErrInvalidRequest)
	}

	mimeType, data, err := utils.ParseDataURI(uri)
	if err != nil {
		return "", nil, "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return mimeType, data, prompt, nil
}

func (s *Service) putJob(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode animation job: %w", err)
	}
	if err := s.kv.Set(ctx, s.jobKey(job.ID), raw); err != nil {
		return fmt.Errorf("failed to store animation job: %w", err)
	}
	return nil
}

func (s *Service) jobKey(id string) string {
	return storage.Key(s.prefix, "animation-"+id)
}

func (s *Service) sourceKey(id string) string {
	return s.jobKey(id) + "-source"
}

func (s *Service) videoKey(id string) string {
	return s.jobKey(id) + "-video"
}
