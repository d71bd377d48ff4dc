package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder_EngineCounters(t *testing.T) {
	r := NewRecorder()

	r.EngineAttempt("gemini", "failure", time.Second)
	r.EngineAttempt("grok", "success", 2*time.Second)
	r.EngineFallback("gemini", "grok")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.engineAttempts.WithLabelValues("gemini", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.engineAttempts.WithLabelValues("grok", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.engineFallbacks.WithLabelValues("gemini", "grok")))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.EngineAttempt("x", "success", time.Second)
		r.EngineFallback("x", "y")
		r.LifecycleTransition("idle")
		r.AnimationJob("done")
	})
}

func TestRecorder_MiddlewareUsesRouteTemplate(t *testing.T) {
	r := NewRecorder()
	router := mux.NewRouter()
	router.Use(r.Middleware)
	router.HandleFunc("/api/gallery/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)

	req := httptest.NewRequest(http.MethodDelete, "/api/gallery/abc", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("DELETE", "/api/gallery/{id}", "204")))
}
