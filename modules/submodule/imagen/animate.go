package imagen

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"escena-studio/modules/common/gemini"
	"escena-studio/modules/engine"
)

type submitted struct {
	op      *genai.GenerateVideosOperation
	backend *gemini.Backend
}

// AnimateImage - Veo 작업 제출 후 완료까지 폴링 (타임아웃 없음, ctx로만 중단)
func (s *Service) AnimateImage(ctx context.Context, img engine.Image, prompt string) (*engine.Video, error) {
	task, backend, err := s.SubmitAnimation(ctx, img, prompt)
	if err != nil {
		return nil, err
	}

	task, err = engine.PollUntilTerminal(ctx, task, s.poller(backend), s.pollInterval, func(state engine.TaskState) {
		s.log.Debugf("🎬 Animation %s is %s", task.ID, state)
	})
	if err != nil {
		return nil, engine.Classify(Name, "animate", err)
	}
	return s.fetchVideo(ctx, task, backend)
}

// SubmitAnimation - Veo 작업 제출
func (s *Service) SubmitAnimation(ctx context.Context, img engine.Image, prompt string) (*engine.AnimationTask, *gemini.Backend, error) {
	if len(img.Data) == 0 {
		return nil, nil, fmt.Errorf("empty image")
	}

	res, err := gemini.Do(ctx, s.rotator, func(ctx context.Context, b *gemini.Backend) (submitted, error) {
		op, err := b.Models.GenerateVideos(ctx, s.videoModel, animatePrefix+prompt,
			&genai.Image{ImageBytes: img.Data, MIMEType: img.MIMEType},
			&genai.GenerateVideosConfig{NumberOfVideos: 1})
		return submitted{op: op, backend: b}, err
	})
	if err != nil {
		return nil, nil, engine.Classify(Name, "animate", err)
	}

	s.log.Infof("🎬 Animation submitted: %s", res.op.Name)
	return taskFromOperation(res.op), res.backend, nil
}

func (s *Service) poller(b *gemini.Backend) engine.Poller {
	return func(ctx context.Context, task *engine.AnimationTask) (*engine.AnimationTask, error) {
		op, ok := task.Handle.(*genai.GenerateVideosOperation)
		if !ok {
			return nil, fmt.Errorf("animation task %s has no operation handle", task.ID)
		}
		next, err := b.Operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return nil, err
		}
		return taskFromOperation(next), nil
	}
}

func (s *Service) fetchVideo(ctx context.Context, task *engine.AnimationTask, b *gemini.Backend) (*engine.Video, error) {
	op, _ := task.Handle.(*genai.GenerateVideosOperation)
	if op != nil && op.Response != nil && len(op.Response.GeneratedVideos) > 0 {
		if v := op.Response.GeneratedVideos[0].Video; v != nil && len(v.VideoBytes) > 0 {
			return &engine.Video{Data: v.VideoBytes, MIMEType: orDefault(v.MIMEType, "video/mp4"), URI: v.URI}, nil
		}
	}
	if task.VideoURI == "" {
		return nil, engine.Malformed(Name, "animate", "video generation completed but no download link was found")
	}

	data, mimeType, err := download(ctx, s.httpClient, task.VideoURI, b.APIKey)
	if err != nil {
		return nil, engine.Classify(Name, "animate", fmt.Errorf("failed to fetch video: %w", err))
	}
	s.log.Infof("✅ Video downloaded: %d bytes", len(data))
	return &engine.Video{Data: data, MIMEType: orDefault(mimeType, "video/mp4"), URI: task.VideoURI}, nil
}

func taskFromOperation(op *genai.GenerateVideosOperation) *engine.AnimationTask {
	task := &engine.AnimationTask{ID: op.Name, State: engine.TaskPending, Handle: op}
	if !op.Done {
		return task
	}
	if len(op.Error) > 0 {
		task.State = engine.TaskFailed
		task.Err = fmt.Errorf("video operation failed: %v", op.Error["message"])
		return task
	}
	task.State = engine.TaskDone
	if op.Response != nil && len(op.Response.GeneratedVideos) > 0 && op.Response.GeneratedVideos[0].Video != nil {
		task.VideoURI = op.Response.GeneratedVideos[0].Video.URI
	}
	return task
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
