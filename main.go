package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"escena-studio/modules/animation"
	"escena-studio/modules/common/config"
	"escena-studio/modules/common/logger"
	"escena-studio/modules/common/metrics"
	"escena-studio/modules/common/middleware"
	"escena-studio/modules/common/response"
	"escena-studio/modules/common/storage"
	"escena-studio/modules/coordinator"
	"escena-studio/modules/engine"
	"escena-studio/modules/gallery"
	"escena-studio/modules/realtime"
	"escena-studio/modules/studio"
	fluxschnell "escena-studio/modules/submodule/flux-schnell"
	"escena-studio/modules/submodule/grok"
	"escena-studio/modules/submodule/imagen"
	"escena-studio/modules/submodule/nanobanana"
	"escena-studio/modules/submodule/perchance"
	"escena-studio/modules/submodule/seedream"
)

// 서버 구성 요소
type server struct {
	cfg      *config.Config
	registry *studio.Registry
	hub      *realtime.Hub
	started  time.Time
	log      *logrus.Entry
}

// buildEngines - ENGINE_ORDER 순서대로 이미지 엔진 구성
func buildEngines(cfg *config.Config, gemini *imagen.Service) []engine.ImageGenerator {
	var engines []engine.ImageGenerator
	for _, name := range cfg.EngineOrder {
		switch name {
		case imagen.Name:
			engines = append(engines, gemini)
		case nanobanana.Name:
			engines = append(engines, nanobanana.NewService(cfg))
		case grok.Name:
			engines = append(engines, grok.NewService(cfg))
		case fluxschnell.Name:
			engines = append(engines, fluxschnell.NewService(cfg))
		case perchance.Name:
			engines = append(engines, perchance.NewService(cfg))
		case seedream.Name:
			engines = append(engines, seedream.NewService(cfg))
		}
	}
	return engines
}

// 헬스 체크 엔드포인트
func (s *server) healthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "escena-studio",
	})
}

// 세션 정보 조회 엔드포인트
func (s *server) getSessionInfo(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]
	c, ok := s.registry.Get(sessionID)
	if !ok {
		response.Error(w, http.StatusNotFound, response.ErrCodeNotFound, "Session not found")
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"sessionId":   sessionID,
		"clientCount": s.hub.Clients(sessionID),
		"phase":       c.Snapshot().Phase,
		"busy":        c.Busy(),
		"inactive":    time.Since(c.LastActive()).String(),
	})
}

// 서버 통계 조회 엔드포인트 (Prometheus는 /metrics)
func (s *server) getStats(w http.ResponseWriter, r *http.Request) {
	stats := s.registry.Stats()
	conns := s.hub.Stats()

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"server": map[string]interface{}{
			"uptime":           time.Since(s.started).String(),
			"startTime":        stats.StartTime,
			"totalSessions":    stats.TotalSessions,
			"activeSessions":   stats.ActiveSessions,
			"totalConnections": conns.TotalConnections,
			"currentClients":   conns.CurrentClients,
		},
		"sessions": s.registry.IDs(),
	})
}

// 유휴 세션 강제 정리 (관리자용)
func (s *server) forceCleanupSessions(w http.ResponseWriter, r *http.Request) {
	cleaned := s.registry.Cleanup()
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"status":  "Cleanup completed",
		"cleaned": cleaned,
	})
}

func main() {
	// 환경변수 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("❌ Failed to load config: %v", err)
	}
	logger.Configure(cfg.LogLevel, cfg.LogFormat)
	log := logger.WithModule("Server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, closeKV, err := storage.OpenKV(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Failed to open store: %v", err)
	}
	defer func() {
		if err := closeKV(); err != nil {
			log.Warnf("⚠️  Failed to close store: %v", err)
		}
	}()

	rec := metrics.NewRecorder()
	store := storage.New(kv, cfg.StorePrefix, cfg.ExpiryWindow())
	library := gallery.NewManager(store, gallery.WithHistoryLimit(cfg.PromptHistoryLimit))

	gemini := imagen.NewService(cfg)
	gen := coordinator.New(buildEngines(cfg, gemini),
		coordinator.WithMetrics(rec),
		coordinator.WithWebPQuality(cfg.WebPQuality),
	)
	log.Infof("🎨 Generation chain: %v", gen.Engines())

	registry := studio.NewRegistry(func(id string) *studio.Controller {
		return studio.New(id, studio.Dependencies{
			Prompter:   gemini,
			Generator:  gen,
			Library:    library,
			Metrics:    rec,
			Cooldown:   cfg.QuotaCooldown,
			HandoffURL: cfg.HandoffURL,
		})
	}, cfg.SessionIdleTimeout)
	registry.StartCleanup(5*time.Minute, ctx.Done())

	animations := animation.NewService(kv, cfg.StorePrefix, gemini, library, animation.WithMetrics(rec))
	worker := animation.NewWorker(animations)
	worker.Start(ctx, cfg.AnimationWorkers)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger.WithModule("RateLimit"))
	limiter.StartCleanup(10*time.Minute, ctx.Done())

	s := &server{
		cfg:      cfg,
		registry: registry,
		hub:      realtime.NewHub(registry),
		started:  time.Now(),
		log:      log,
	}

	// 라우터 설정
	r := mux.NewRouter()
	r.Use(rec.Middleware)

	mutating := r.NewRoute().Subrouter()
	mutating.Use(limiter.Handler)

	r.HandleFunc("/", s.healthCheck).Methods(http.MethodGet)
	r.HandleFunc("/health", s.healthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", rec.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.getStats).Methods(http.MethodGet)
	r.HandleFunc("/session/{sessionId}", s.getSessionInfo).Methods(http.MethodGet)
	r.HandleFunc("/admin/cleanup", s.forceCleanupSessions).Methods(http.MethodPost)

	s.hub.Register(r)
	studio.NewHandler(registry).Register(r, mutating)
	gallery.NewHandler(library).Register(r, mutating)
	animation.NewHandler(animations).Register(r, mutating)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.CORS(cfg.AllowedOrigins)(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Infof("🚀 Escena Studio server starting on port %s", cfg.Port)
	log.Infof("📡 WebSocket endpoint: ws://localhost:%s/ws?session=<id>", cfg.Port)
	log.Infof("❤️  Health check: http://localhost:%s/health", cfg.Port)
	log.Infof("📊 Metrics: http://localhost:%s/metrics", cfg.Port)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("🛑 Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("⚠️  HTTP shutdown: %v", err)
	}

	// 진행 중인 생성/애니메이션 작업은 shutdownCtx 만료까지만 대기
	done := make(chan struct{})
	go func() {
		registry.Wait()
		worker.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("👋 Server stopped")
	case <-shutdownCtx.Done():
		log.Warn("⚠️  Shutdown timed out with work still in flight")
	}
}
