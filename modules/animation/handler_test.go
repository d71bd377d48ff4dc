package animation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escena-studio/modules/engine"
)

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_SubmitStatusVideo(t *testing.T) {
	f := newFixture(t)
	r := mux.NewRouter()
	NewHandler(f.service).Register(r, r)

	rec := do(r, http.MethodPost, "/api/animations", `{"image":"`+pngURI+`","prompt":"waves"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var body struct {
		Success bool `json:"success"`
		Job     Job  `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, engine.TaskSubmitted, body.Job.Status)

	rec = do(r, http.MethodGet, "/api/animations/"+body.Job.ID+"/video", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, f.service.ProcessJob(context.Background(), body.Job.ID))

	rec = do(r, http.MethodGet, "/api/animations/"+body.Job.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"done"`)

	rec = do(r, http.MethodGet, "/api/animations/"+body.Job.ID+"/video", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "video", rec.Body.String())
}

func TestHandler_VideoRedirectsToProviderURI(t *testing.T) {
	f := newFixture(t)
	f.engine.AnimateFunc = func(context.Context, engine.Image, string) (*engine.Video, error) {
		return &engine.Video{URI: "https://example.com/v.mp4"}, nil
	}
	r := mux.NewRouter()
	NewHandler(f.service).Register(r, r)

	job, err := f.service.Submit(context.Background(), Request{Image: pngURI})
	require.NoError(t, err)
	require.NoError(t, f.service.ProcessJob(context.Background(), job.ID))

	rec := do(r, http.MethodGet, "/api/animations/"+job.ID+"/video", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com/v.mp4", rec.Header().Get("Location"))
}

func TestHandler_Errors(t *testing.T) {
	f := newFixture(t)
	r := mux.NewRouter()
	NewHandler(f.service).Register(r, r)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"missing source", http.MethodPost, "/api/animations", `{"prompt":"x"}`, http.StatusBadRequest},
		{"unknown gallery entry", http.MethodPost, "/api/animations", `{"galleryId":"nope"}`, http.StatusNotFound},
		{"bad body", http.MethodPost, "/api/animations", `{`, http.StatusBadRequest},
		{"unknown job", http.MethodGet, "/api/animations/nope", "", http.StatusNotFound},
		{"cancel unknown job", http.MethodDelete, "/api/animations/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
