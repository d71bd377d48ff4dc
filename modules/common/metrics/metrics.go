package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder - 서버 Prometheus 수집기 묶음. nil Recorder는 아무것도 기록하지 않음
type Recorder struct {
	registry *prometheus.Registry

	engineAttempts       *prometheus.CounterVec
	engineFallbacks      *prometheus.CounterVec
	generationDuration   *prometheus.HistogramVec
	lifecycleTransitions *prometheus.CounterVec
	animationJobs        *prometheus.CounterVec
	httpRequests         *prometheus.CounterVec
}

// NewRecorder - 전용 레지스트리에 수집기 등록
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		engineAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "escena",
			Subsystem: "engine",
			Name:      "attempts_total",
			Help:      "Image generation attempts per engine and outcome.",
		}, []string{"engine", "outcome"}),
		engineFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "escena",
			Subsystem: "engine",
			Name:      "fallbacks_total",
			Help:      "Fallbacks from one engine to the next.",
		}, []string{"from", "to"}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "escena",
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Duration of successful engine generation calls.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
		}, []string{"engine"}),
		lifecycleTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "escena",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Prompt lifecycle transitions by target phase.",
		}, []string{"phase"}),
		animationJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "escena",
			Subsystem: "animation",
			Name:      "jobs_total",
			Help:      "Animation jobs by terminal status.",
		}, []string{"status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "escena",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route template and status.",
		}, []string{"method", "route", "status"}),
	}

	r.registry.MustRegister(
		r.engineAttempts,
		r.engineFallbacks,
		r.generationDuration,
		r.lifecycleTransitions,
		r.animationJobs,
		r.httpRequests,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return r
}

// Registry - 테스트에서 값 확인용
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler - /metrics 핸들러
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) EngineAttempt(engine, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.engineAttempts.WithLabelValues(engine, outcome).Inc()
	if outcome == "success" {
		r.generationDuration.WithLabelValues(engine).Observe(elapsed.Seconds())
	}
}

func (r *Recorder) EngineFallback(from, to string) {
	if r == nil {
		return
	}
	r.engineFallbacks.WithLabelValues(from, to).Inc()
}

func (r *Recorder) LifecycleTransition(phase string) {
	if r == nil {
		return
	}
	r.lifecycleTransitions.WithLabelValues(phase).Inc()
}

func (r *Recorder) AnimationJob(status string) {
	if r == nil {
		return
	}
	r.animationJobs.WithLabelValues(status).Inc()
}

// Middleware - 라우트 템플릿 기준 HTTP 요청 카운트
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r == nil {
			next.ServeHTTP(w, req)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)

		route := "unmatched"
		if current := mux.CurrentRoute(req); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		r.httpRequests.WithLabelValues(req.Method, route, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap - http.ResponseController가 Hijacker 등을 찾을 수 있도록
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
