package animation

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escena-studio/modules/common/model"
	"escena-studio/modules/common/storage"
	"escena-studio/modules/engine"
	"escena-studio/modules/engine/enginetest"
	"escena-studio/modules/gallery"
)

var pngURI = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png-bytes"))

type fixture struct {
	service *Service
	kv      *storage.MemoryKV
	engine  *enginetest.Engine
	gallery *gallery.Manager
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	kv := storage.NewMemoryKV()
	log, _ := logtest.NewNullLogger()
	entry := logrus.NewEntry(log)

	f := &fixture{
		kv:      kv,
		engine:  enginetest.New("gemini"),
		gallery: gallery.NewManager(storage.New(kv, "escena-ai", 90*24*time.Hour), gallery.WithLogger(entry)),
	}
	ids := 0
	opts = append([]Option{
		WithLogger(entry),
		WithIDs(func() string {
			ids++
			return "job-" + string(rune('0'+ids))
		}),
	}, opts...)
	f.service = NewService(kv, "escena-ai", f.engine, f.gallery, opts...)
	return f
}

func TestSubmit_FromImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.service.Submit(ctx, Request{Image: pngURI, Prompt: " waves "})
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, engine.TaskSubmitted, job.Status)
	assert.Equal(t, "waves", job.Prompt)
	assert.Equal(t, "image/png", job.SourceMIME)

	stored, err := f.service.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.TaskSubmitted, stored.Status)
	assert.Zero(t, f.engine.AnimateCalls())
}

func TestSubmit_FromGalleryEntryUsesItsPrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.gallery.Save(ctx, model.GeneratedAsset{ID: "g1", MediaURL: pngURI, Prompt: "a red fox", Timestamp: time.Now().UnixMilli()})
	require.NoError(t, err)

	job, err := f.service.Submit(ctx, Request{GalleryID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, "a red fox", job.Prompt)
	assert.Equal(t, "g1", job.GalleryID)

	_, err = f.service.Submit(ctx, Request{GalleryID: "missing"})
	assert.ErrorIs(t, err, gallery.ErrNotFound)
}

func TestSubmit_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Submit(ctx, Request{Prompt: "waves"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.service.Submit(ctx, Request{Image: "https://example.com/a.png"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSubmit_QueueFull(t *testing.T) {
	f := newFixture(t, WithQueueSize(1))
	ctx := context.Background()

	_, err := f.service.Submit(ctx, Request{Image: pngURI})
	require.NoError(t, err)
	_, err = f.service.Submit(ctx, Request{Image: pngURI})
	assert.ErrorIs(t, err, ErrQueueFull)

	job, err := f.service.Get(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, engine.TaskFailed, job.Status)
}

func TestProcessJob_StoresVideo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.AnimateFunc = func(_ context.Context, img engine.Image, prompt string) (*engine.Video, error) {
		assert.Equal(t, []byte("png-bytes"), img.Data)
		assert.Equal(t, "waves", prompt)
		return &engine.Video{Data: []byte("mp4"), MIMEType: "video/mp4"}, nil
	}

	job, err := f.service.Submit(ctx, Request{Image: pngURI, Prompt: "waves"})
	require.NoError(t, err)
	require.NoError(t, f.service.ProcessJob(ctx, job.ID))

	data, done, err := f.service.Video(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp4"), data)
	assert.Equal(t, engine.TaskDone, done.Status)
	assert.True(t, done.HasVideo)

	// 원본 이미지는 처리 후 삭제
	source, err := f.kv.Get(ctx, f.service.sourceKey(job.ID))
	require.NoError(t, err)
	assert.Nil(t, source)

	// 완료된 작업은 다시 처리하지 않음
	require.NoError(t, f.service.ProcessJob(ctx, job.ID))
	assert.Equal(t, 1, f.engine.AnimateCalls())
}

func TestProcessJob_RecordsClassifiedFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.AnimateFunc = func(context.Context, engine.Image, string) (*engine.Video, error) {
		return nil, engine.Classify("gemini", "animate", &engine.StatusError{Code: 429, Message: "quota"})
	}

	job, err := f.service.Submit(ctx, Request{Image: pngURI})
	require.NoError(t, err)
	err = f.service.ProcessJob(ctx, job.ID)
	require.Error(t, err)

	failed, err := f.service.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.TaskFailed, failed.Status)
	assert.Equal(t, engine.KindQuotaExceeded, failed.ErrorKind)

	_, _, err = f.service.Video(ctx, job.ID)
	assert.ErrorIs(t, err, ErrNoVideo)
}

func TestProcessJob_UnsupportedEngine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.AnimateFunc = func(context.Context, engine.Image, string) (*engine.Video, error) {
		return nil, engine.ErrUnsupported
	}

	job, err := f.service.Submit(ctx, Request{Image: pngURI})
	require.NoError(t, err)
	assert.True(t, errors.Is(f.service.ProcessJob(ctx, job.ID), engine.ErrUnsupported))
}

func TestGet_Missing(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorker_ProcessesQueuedJobs(t *testing.T) {
	f := newFixture(t)
	gate := enginetest.NewGate()
	f.engine.AnimateFunc = func(ctx context.Context, _ engine.Image, _ string) (*engine.Video, error) {
		if err := gate.Wait(ctx); err != nil {
			return nil, err
		}
		return &engine.Video{URI: "https://example.com/v.mp4", MIMEType: "video/mp4"}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(f.service)
	w.Start(ctx, 1)

	job, err := f.service.Submit(context.Background(), Request{Image: pngURI})
	require.NoError(t, err)

	gate.Entered()
	pending, err := f.service.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.TaskPending, pending.Status)

	// 취소해도 진행 중인 작업은 끝까지 처리
	cancel()
	gate.Release()
	w.Wait()

	done, err := f.service.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.TaskDone, done.Status)
	assert.Equal(t, "https://example.com/v.mp4", done.VideoURI)
	assert.False(t, done.HasVideo)
}

func TestWorker_EnginePanicFailsJobAndKeepsRunning(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.engine.AnimateFunc = func(context.Context, engine.Image, string) (*engine.Video, error) {
		calls++
		if calls == 1 {
			panic("non-positive interval for NewTicker")
		}
		return &engine.Video{Data: []byte("video"), MIMEType: "video/mp4"}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := NewWorker(f.service)
	w.Start(ctx, 1)

	first, err := f.service.Submit(context.Background(), Request{Image: pngURI})
	require.NoError(t, err)
	second, err := f.service.Submit(context.Background(), Request{Image: pngURI})
	require.NoError(t, err)

	statusOf := func(id string) engine.TaskState {
		job, err := f.service.Get(context.Background(), id)
		if err != nil {
			return ""
		}
		return job.Status
	}
	require.Eventually(t, func() bool { return statusOf(second.ID) == engine.TaskDone }, 2*time.Second, 5*time.Millisecond)

	failed, err := f.service.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.TaskFailed, failed.Status)
	assert.Contains(t, failed.Error, "panicked")
}

func TestCancel_QueuedJobIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.service.Submit(ctx, Request{Image: pngURI})
	require.NoError(t, err)

	cancelled, err := f.service.Cancel(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, cancelled.Cancelled)
	assert.Equal(t, engine.TaskFailed, cancelled.Status)

	require.NoError(t, f.service.ProcessJob(ctx, job.ID))
	assert.Zero(t, f.engine.AnimateCalls())

	_, err = f.service.Cancel(ctx, job.ID)
	assert.ErrorIs(t, err, ErrFinished)
}

func TestCancel_DuringProcessingDiscardsVideo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gate := enginetest.NewGate()
	f.engine.AnimateFunc = func(ctx context.Context, _ engine.Image, _ string) (*engine.Video, error) {
		if err := gate.Wait(ctx); err != nil {
			return nil, err
		}
		return &engine.Video{Data: []byte("mp4"), MIMEType: "video/mp4"}, nil
	}

	job, err := f.service.Submit(ctx, Request{Image: pngURI})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- f.service.ProcessJob(ctx, job.ID) }()
	gate.Entered()

	_, err = f.service.Cancel(ctx, job.ID)
	require.NoError(t, err)
	gate.Release()
	require.NoError(t, <-done)

	final, err := f.service.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, final.Cancelled)
	assert.Equal(t, engine.TaskFailed, final.Status)
	assert.False(t, final.HasVideo)

	video, err := f.kv.Get(ctx, f.service.videoKey(job.ID))
	require.NoError(t, err)
	assert.Nil(t, video)
}
