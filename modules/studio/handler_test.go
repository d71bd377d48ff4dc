package studio

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escena-studio/modules/engine"
)

func newTestRouter(t *testing.T, h *harness) (*mux.Router, *Registry) {
	t.Helper()
	reg := NewRegistry(func(id string) *Controller { return h.c }, time.Hour)
	r := mux.NewRouter()
	NewHandler(reg).Register(r, r)
	return r, reg
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type stateBody struct {
	Success      bool     `json:"success"`
	ErrorCode    string   `json:"errorCode"`
	ErrorMessage string   `json:"errorMessage"`
	Prompt       string   `json:"prompt"`
	State        Snapshot `json:"state"`
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) stateBody {
	t.Helper()
	var body stateBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandler_SubmitAndChoose(t *testing.T) {
	h := newHarness(t)
	r, reg := newTestRouter(t, h)

	rec := do(r, http.MethodPut, "/api/studio/s1/draft",
		`{"scenes":["a red fox"],"style":{"id":"anime"},"aspectRatio":"16:9","variants":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeState(t, rec)
	assert.Equal(t, "Anime", body.State.Draft.Style.Name)

	rec = do(r, http.MethodPost, "/api/studio/s1/submit", "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	reg.Wait()

	rec = do(r, http.MethodGet, "/api/studio/s1/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeState(t, rec)
	require.Equal(t, PhasePromptSelection, body.State.Phase)
	require.NotNil(t, body.State.Optimization)
	assert.Equal(t, 70, *body.State.Optimization.OptimizedScore)

	rec = do(r, http.MethodPost, "/api/studio/s1/choose", `{"choice":"optimized"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	reg.Wait()

	body = decodeState(t, do(r, http.MethodGet, "/api/studio/s1/state", ""))
	assert.Equal(t, PhaseSucceeded, body.State.Phase)
	require.Len(t, body.State.Results, 1)
	assert.Equal(t, "16:9", string(body.State.Results[0].AspectRatio))
}

func TestHandler_Errors(t *testing.T) {
	h := newHarness(t)
	h.prompter.OptimizeFunc = func(context.Context, []string, string) (string, error) {
		return "", engine.Classify("gemini", "optimize", quotaError())
	}
	r, _ := newTestRouter(t, h)
	h.setScenes(t, "", "a red fox")

	rec := do(r, http.MethodPost, "/api/studio/s1/choose", `{"choice":"original"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", decodeState(t, rec).ErrorCode)

	rec = do(r, http.MethodPut, "/api/studio/s1/draft", `{"scenes":["x"],"style":{"id":"nope"},"aspectRatio":"1:1","variants":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodPost, "/api/studio/s1/history/missing/use", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, h.c.Submit(context.Background()))

	rec = do(r, http.MethodPost, "/api/studio/s1/submit", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "COOLING_DOWN", decodeState(t, rec).ErrorCode)

	rec = do(r, http.MethodPost, "/api/studio/s1/handoff", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, PhaseWebHandoff, decodeState(t, rec).State.Phase)

	rec = do(r, http.MethodPost, "/api/studio/s1/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeState(t, rec)
	assert.Equal(t, PhaseIdle, body.State.Phase)
	assert.Equal(t, 60, body.State.CooldownSeconds)
}

func TestHandler_Analyze(t *testing.T) {
	h := newHarness(t)
	r, _ := newTestRouter(t, h)

	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png"))
	rec := do(r, http.MethodPost, "/api/studio/s1/analyze", `{"image":"`+uri+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeState(t, rec)
	assert.Equal(t, "a described image", body.Prompt)
	assert.Equal(t, []string{"a described image"}, body.State.Draft.Scenes)

	rec = do(r, http.MethodPost, "/api/studio/s1/analyze", `{"image":"not a data uri"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
