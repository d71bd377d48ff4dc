package engine

import (
	"context"
	"fmt"
	"time"
)

// TaskState - 비동기 애니메이션 작업 상태
type TaskState string

const (
	TaskSubmitted TaskState = "submitted"
	TaskPending   TaskState = "pending"
	TaskDone      TaskState = "done"
	TaskFailed    TaskState = "failed"
)

// Terminal - done 또는 failed
func (s TaskState) Terminal() bool {
	return s == TaskDone || s == TaskFailed
}

// AnimationTask - 제공자 작업 핸들
type AnimationTask struct {
	ID       string
	State    TaskState
	VideoURI string
	Err      error
	// Handle - 제공자별 작업 객체 (예: *genai.GenerateVideosOperation)
	Handle interface{}
}

// Poller - 작업 상태 조회
type Poller func(ctx context.Context, task *AnimationTask) (*AnimationTask, error)

// PollUntilTerminal - interval마다 조회. 자체 타임아웃 없음 (ctx만 중단 가능)
// onState가 있으면 상태가 바뀔 때마다 호출
func PollUntilTerminal(ctx context.Context, task *AnimationTask, poll Poller, interval time.Duration, onState func(TaskState)) (*AnimationTask, error) {
	if task == nil {
		return nil, fmt.Errorf("nil animation task")
	}
	if interval <= 0 {
		return task, fmt.Errorf("animation poll interval must be positive, got %s", interval)
	}
	last := task.State
	notify := func(s TaskState) {
		if onState != nil && s != last {
			onState(s)
		}
		last = s
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for !task.State.Terminal() {
		select {
		case <-ctx.Done():
			return task, ctx.Err()
		case <-ticker.C:
		}

		next, err := poll(ctx, task)
		if err != nil {
			return task, err
		}
		task = next
		if !task.State.Terminal() && task.State != TaskPending {
			task.State = TaskPending
		}
		notify(task.State)
	}

	if task.State == TaskFailed {
		if task.Err == nil {
			task.Err = fmt.Errorf("animation task %s failed", task.ID)
		}
		return task, task.Err
	}
	return task, nil
}
