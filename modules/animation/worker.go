package animation

import (
	"context"
	"fmt"
	"sync"
)

// Worker - 큐에서 작업을 꺼내 처리하는 고정 크기 워커 풀
type Worker struct {
	service *Service
	wg      sync.WaitGroup
}

func NewWorker(service *Service) *Worker {
	return &Worker{service: service}
}

// Start - n개의 워커 시작. ctx가 끝나면 새 작업을 받지 않음
// 진행 중인 작업은 ctx 취소와 무관하게 끝까지 처리
func (w *Worker) Start(ctx context.Context, n int) {
	if n < 1 {
		n = 1
	}
	w.service.log.Infof("🎬 Animation worker started (%d)", n)

	for i := 0; i < n; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id := <-w.service.queue:
					w.processJob(context.WithoutCancel(ctx), id)
				}
			}
		}()
	}
}

// Wait - 모든 워커 종료 대기
func (w *Worker) Wait() {
	w.wg.Wait()
}

// processJob - 엔진 패닉은 작업 실패로 기록하고 워커는 계속 동작
func (w *Worker) processJob(ctx context.Context, id string) {
	defer func() {
		if r := recover(); r != nil {
			w.service.log.Errorf("❌ Animation job %s panicked: %v", id, r)
			w.service.finish(ctx, id, nil, fmt.Errorf("animation panicked: %v", r))
		}
	}()

	w.service.log.Infof("🔄 Processing animation job %s", id)
	if err := w.service.ProcessJob(ctx, id); err != nil {
		w.service.log.Debugf("Animation job %s ended with error: %v", id, err)
	}
}
