package studio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escena-studio/modules/common/model"
	"escena-studio/modules/engine/enginetest"
)

func TestRegistry_GetOrCreate(t *testing.T) {
	created := 0
	r := NewRegistry(func(id string) *Controller {
		created++
		return New(id, Dependencies{Prompter: enginetest.New("gemini")})
	}, time.Minute)

	a := r.GetOrCreate("a")
	assert.Same(t, a, r.GetOrCreate("a"))
	r.GetOrCreate("b")

	assert.Equal(t, 2, created)
	assert.Equal(t, []string{"a", "b"}, r.IDs())
	stats := r.Stats()
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 2, stats.ActiveSessions)

	_, ok := r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_CleanupSkipsBusySessions(t *testing.T) {
	h := newHarness(t)
	gate := enginetest.NewGate()
	h.prompter.OptimizeFunc = func(ctx context.Context, scenes []string, _ string) (string, error) {
		if err := gate.Wait(ctx); err != nil {
			return "", err
		}
		return scenes[0], nil
	}

	idle := New("idle", Dependencies{Prompter: h.prompter, Now: h.clock.Now})
	r := NewRegistry(func(id string) *Controller {
		if id == "busy" {
			return h.c
		}
		return idle
	}, 10*time.Minute).WithClock(h.clock.Now)

	r.GetOrCreate("idle")
	busy := r.GetOrCreate("busy")
	h.setScenes(t, model.ModeSimple, "a red fox")
	require.NoError(t, busy.SubmitAsync(context.Background()))
	waitEntered(t, gate)

	ch, _ := idle.Subscribe()

	h.clock.Advance(11 * time.Minute)
	assert.Equal(t, 1, r.Cleanup())
	assert.Equal(t, []string{"busy"}, r.IDs())
	assert.Equal(t, 1, r.Stats().ActiveSessions)

	// 제거된 세션의 구독은 닫힘
	_, open := <-ch
	assert.False(t, open)

	gate.Release()
	r.Wait()
	assert.Equal(t, PhaseSucceeded, busy.Snapshot().Phase)

	// 작업이 끝나면 마지막 사용자 동작 기준으로 제거
	assert.Equal(t, 1, r.Cleanup())
	assert.Empty(t, r.IDs())
}
