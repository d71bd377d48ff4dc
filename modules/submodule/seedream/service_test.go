package seedream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escena-studio/modules/common/model"
	"escena-studio/modules/engine"
)

type runware struct {
	mu   sync.Mutex
	reqs []RunwareRequest
	fail int
}

func (rw *runware) server(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/images/") {
			_, _ = w.Write([]byte("png:" + r.URL.Path))
			return
		}
		assert.Equal(t, "Bearer rw-key", r.Header.Get("Authorization"))
		var batch []RunwareRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&batch))

		rw.mu.Lock()
		rw.reqs = append(rw.reqs, batch...)
		n := len(rw.reqs)
		rw.mu.Unlock()

		if rw.fail > 0 && n == rw.fail {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"taskType":"imageInference","imageURL":"` + srv.URL + `/images/` + batch[0].TaskUUID + `"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateImages_OneRequestPerVariant(t *testing.T) {
	rw := &runware{}
	srv := rw.server(t)

	images, err := newService("rw-key", srv.URL+"/v1").GenerateImages(context.Background(), engine.Settings{
		Prompt: "a fox", Style: model.VisualStyle{Prompt: "fantasy art"}, AspectRatio: model.AspectWide,
		NegativePrompt: "blur", Variants: 3,
	})

	require.NoError(t, err)
	require.Len(t, images, 3)
	require.Len(t, rw.reqs, 3)
	seen := map[string]bool{}
	for _, req := range rw.reqs {
		assert.Equal(t, SeedreamModelID, req.Model)
		assert.Equal(t, 1, req.NumberResults)
		assert.Equal(t, 2048, req.Width)
		assert.Equal(t, 1152, req.Height)
		assert.Equal(t, "a fox, fantasy art. Negative prompt: blur", req.PositivePrompt)
		seen[req.TaskUUID] = true
	}
	assert.Len(t, seen, 3)
	for _, img := range images {
		assert.True(t, strings.HasPrefix(string(img.Data), "png:/images/"))
	}
}

func TestGenerateImages_AnyFailureFailsBatch(t *testing.T) {
	rw := &runware{fail: 2}
	srv := rw.server(t)

	_, err := newService("rw-key", srv.URL+"/v1").GenerateImages(context.Background(), engine.Settings{
		Prompt: "a fox", AspectRatio: model.AspectSquare, Variants: 2,
	})

	require.Error(t, err)
	assert.Equal(t, engine.KindQuotaExceeded, engine.KindOf(err))
}

func TestGenerateImages_MissingKey(t *testing.T) {
	_, err := newService("", "http://unused").GenerateImages(context.Background(), engine.Settings{Prompt: "x", Variants: 1})
	assert.Equal(t, engine.KindInvalidCredentials, engine.KindOf(err))
}

func TestDimensions(t *testing.T) {
	w, h := Dimensions(model.AspectPortrait)
	assert.Equal(t, 1536, w)
	assert.Equal(t, 2048, h)
	w, h = Dimensions(model.AspectSquare)
	assert.Equal(t, 2048, w)
	assert.Equal(t, 2048, h)
}
