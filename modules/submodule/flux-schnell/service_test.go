package fluxschnell

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escena-studio/modules/common/model"
	"escena-studio/modules/engine"
)

func newRunware(t *testing.T, results int) (*httptest.Server, *[]RunwareRequest) {
	t.Helper()
	var got []RunwareRequest
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/images/") {
			_, _ = w.Write([]byte("png:" + r.URL.Path))
			return
		}
		assert.Equal(t, "Bearer rw-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		resp := RunwareResponse{}
		for i := 0; i < results; i++ {
			resp.Data = append(resp.Data, struct {
				TaskType  string `json:"taskType"`
				TaskUUID  string `json:"taskUUID"`
				ImageURL  string `json:"imageURL"`
				ImageUUID string `json:"imageUUID"`
			}{TaskType: "imageInference", ImageURL: srv.URL + "/images/" + string(rune('a'+i))})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	return srv, &got
}

func TestGenerateImages(t *testing.T) {
	srv, got := newRunware(t, 2)
	defer srv.Close()

	images, err := newService("rw-key", srv.URL+"/v1").GenerateImages(context.Background(), engine.Settings{
		Prompt: "a fox", Style: model.VisualStyle{Prompt: "fantasy art"}, AspectRatio: model.AspectPortrait,
		NegativePrompt: "blur", Variants: 2,
	})

	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "png:/images/a", string(images[0].Data))
	require.Len(t, *got, 1)
	req := (*got)[0]
	assert.Equal(t, "a fox, fantasy art", req.PositivePrompt)
	assert.Equal(t, "blur", req.NegativePrompt)
	assert.Equal(t, 2, req.NumberResults)
	assert.Equal(t, 896, req.Width)
	assert.Equal(t, 1152, req.Height)
	assert.NotEmpty(t, req.TaskUUID)
}

func TestGenerateImages_ShortBatch(t *testing.T) {
	srv, _ := newRunware(t, 1)
	defer srv.Close()

	_, err := newService("rw-key", srv.URL+"/v1").GenerateImages(context.Background(), engine.Settings{Prompt: "a fox", Variants: 3})

	assert.Equal(t, engine.KindMalformedResponse, engine.KindOf(err))
}

func TestGenerateImages_RunwareErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"code":"insufficientCredits","message":"billing: insufficient credits"}]}`))
	}))
	defer srv.Close()

	_, err := newService("rw-key", srv.URL).GenerateImages(context.Background(), engine.Settings{Prompt: "a fox", Variants: 1})

	assert.Equal(t, engine.KindInvalidCredentials, engine.KindOf(err))
}

func TestDimensions(t *testing.T) {
	w, h := Dimensions(model.AspectWide)
	assert.Equal(t, []int{1344, 768}, []int{w, h})
	w, h = Dimensions("unknown")
	assert.Equal(t, []int{1024, 1024}, []int{w, h})
}
