package animation

import (
	"context"

	"escena-studio/modules/engine"
)

// Cancel - 끝나지 않은 작업 취소
// 큐에 있으면 워커가 건너뛰고, 처리 중이면 엔진 결과를 버림
func (s *Service) Cancel(ctx context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, ErrFinished
	}

	job.Status = engine.TaskFailed
	job.Cancelled = true
	job.Error = "cancelled by user"
	job.UpdatedAt = s.now().UnixMilli()
	if err := s.putJob(ctx, job); err != nil {
		return nil, err
	}
	s.deleteSource(ctx, id)
	s.metrics.AnimationJob("cancelled")
	s.log.Infof("🛑 Animation job %s cancelled", id)
	return job, nil
}
