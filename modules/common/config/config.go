package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// 스토어 백엔드 종류
const (
	StoreBackendMemory   = "memory"
	StoreBackendRedis    = "redis"
	StoreBackendSupabase = "supabase"
)

// KnownEngines - ENGINE_ORDER에 사용할 수 있는 엔진 이름
var KnownEngines = map[string]bool{
	"gemini":       true,
	"nanobanana":   true,
	"grok":         true,
	"flux-schnell": true,
	"perchance":    true,
	"seedream":     true,
}

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Server
	Port               string
	LogLevel           string
	LogFormat          string
	RateLimitRPS       float64
	RateLimitBurst     int
	SessionIdleTimeout time.Duration
	AllowedOrigins     []string

	// Store
	StoreBackend string
	StorePrefix  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Supabase
	SupabaseURL              string
	SupabaseServiceKey       string
	SupabaseCollectionsTable string

	// Gemini API
	GeminiAPIKeys   []string
	GeminiTextModel string
	ImagenModel     string
	VeoModel        string
	NanoBananaModel string

	// Vertex AI (선택)
	VertexProject  string
	VertexLocation string

	// Grok (xAI)
	XAIAPIKey  string
	GrokAPIURL string
	GrokModel  string

	// Runware (Flux Schnell)
	RunwareAPIKey string
	RunwareAPIURL string

	// Perchance
	PerchanceAPIURL string

	// Generation
	EngineOrder           []string
	QuotaCooldown         time.Duration
	AnimationPollInterval time.Duration
	AnimationWorkers      int
	HandoffURL            string
	ExpiryDays            int
	PromptHistoryLimit    int
	WebPQuality           float32
}

var globalConfig *Config

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	if err := godotenv.Load(); err != nil {
		logrus.Info("⚠️  .env file not found, using environment variables")
	}

	cfg := FromEnv()

	// 필수 환경변수 검증
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	globalConfig = cfg

	logrus.Info("✅ Configuration loaded successfully")
	logrus.Infof("   Store: %s (prefix: %s)", cfg.StoreBackend, cfg.StorePrefix)
	logrus.Infof("   Engines: %s", strings.Join(cfg.EngineOrder, " → "))
	logrus.Infof("   Gemini: %s / %s (keys: %d)", cfg.GeminiTextModel, cfg.ImagenModel, len(cfg.GeminiAPIKeys))
	logrus.Infof("   Expiry: %d days, history limit: %d", cfg.ExpiryDays, cfg.PromptHistoryLimit)

	return globalConfig, nil
}

// FromEnv - 검증 없이 환경변수에서 Config 생성
func FromEnv() *Config {
	keys := splitList(getEnv("GEMINI_API_KEYS", ""))
	if len(keys) == 0 {
		if single := getEnv("GEMINI_API_KEY", ""); single != "" {
			keys = []string{single}
		}
	}

	return &Config{
		// Server
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		RateLimitRPS:       getFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst:     getInt("RATE_LIMIT_BURST", 5),
		SessionIdleTimeout: getDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "*")),

		// Store
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreBackendMemory)),
		StorePrefix:  getEnv("STORE_PREFIX", "escena-ai"),

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   getBool("REDIS_USE_TLS", false),

		// Supabase
		SupabaseURL:              getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:       getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseCollectionsTable: getEnv("SUPABASE_COLLECTIONS_TABLE", "studio_collections"),

		// Gemini API
		GeminiAPIKeys:   keys,
		GeminiTextModel: getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		ImagenModel:     getEnv("IMAGEN_MODEL", "imagen-4.0-generate-001"),
		VeoModel:        getEnv("VEO_MODEL", "veo-2.0-generate-001"),
		NanoBananaModel: getEnv("NANOBANANA_MODEL", "gemini-2.5-flash-image"),

		VertexProject:  getEnv("VERTEXAI_PROJECT", ""),
		VertexLocation: getEnv("VERTEXAI_LOCATION", "us-central1"),

		XAIAPIKey:  getEnv("XAI_API_KEY", ""),
		GrokAPIURL: getEnv("GROK_API_URL", "https://api.x.ai/v1/images/generations"),
		GrokModel:  getEnv("GROK_MODEL", "grok-2-image"),

		RunwareAPIKey: getEnv("RUNWARE_API_KEY", ""),
		RunwareAPIURL: getEnv("RUNWARE_API_URL", "https://api.runware.ai/v1"),

		PerchanceAPIURL: getEnv("PERCHANCE_API_URL", "https://api.perchance.org/v1/images/generations"),

		// Generation
		EngineOrder:           splitList(strings.ToLower(getEnv("ENGINE_ORDER", "gemini,grok"))),
		QuotaCooldown:         getDuration("QUOTA_COOLDOWN", 60*time.Second),
		AnimationPollInterval: getDuration("ANIMATION_POLL_INTERVAL", 10*time.Second),
		AnimationWorkers:      getInt("ANIMATION_WORKERS", 2),
		HandoffURL:            getEnv("HANDOFF_URL", "https://gemini.google.com/app"),
		ExpiryDays:            getInt("EXPIRY_DAYS", 90),
		PromptHistoryLimit:    getInt("PROMPT_HISTORY_LIMIT", 50),
		WebPQuality:           float32(getFloat("WEBP_QUALITY", 0)),
	}
}

// GetConfig - 로드된 설정 가져오기
func GetConfig() *Config {
	if globalConfig == nil {
		logrus.Fatal("❌ Config not loaded. Call LoadConfig() first.")
	}
	return globalConfig
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	if len(c.GeminiAPIKeys) == 0 && c.VertexProject == "" {
		return fmt.Errorf("GEMINI_API_KEY (or GEMINI_API_KEYS / VERTEXAI_PROJECT) is required")
	}

	switch c.StoreBackend {
	case StoreBackendMemory:
	case StoreBackendRedis:
		if c.RedisHost == "" {
			return fmt.Errorf("REDIS_HOST is required for the redis store")
		}
	case StoreBackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for the supabase store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND: %s", c.StoreBackend)
	}

	if len(c.EngineOrder) == 0 {
		return fmt.Errorf("ENGINE_ORDER must name at least one engine")
	}
	for _, name := range c.EngineOrder {
		if !KnownEngines[name] {
			return fmt.Errorf("unknown engine in ENGINE_ORDER: %s", name)
		}
	}

	if c.ExpiryDays <= 0 {
		return fmt.Errorf("EXPIRY_DAYS must be positive")
	}
	if c.PromptHistoryLimit <= 0 {
		return fmt.Errorf("PROMPT_HISTORY_LIMIT must be positive")
	}
	if c.QuotaCooldown <= 0 {
		return fmt.Errorf("QUOTA_COOLDOWN must be positive")
	}
	if c.AnimationPollInterval <= 0 {
		return fmt.Errorf("ANIMATION_POLL_INTERVAL must be positive")
	}
	if c.AnimationWorkers <= 0 {
		return fmt.Errorf("ANIMATION_WORKERS must be positive")
	}
	return nil
}

// ExpiryWindow - 컬렉션 보존 기간
func (c *Config) ExpiryWindow() time.Duration {
	return time.Duration(c.ExpiryDays) * 24 * time.Hour
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
		logrus.Warnf("⚠️  Invalid integer for %s: %q, using %d", key, raw, defaultValue)
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			return parsed
		}
		logrus.Warnf("⚠️  Invalid number for %s: %q, using %v", key, raw, defaultValue)
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDuration - "60s", "10m" 형식 또는 초 단위 정수
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(raw); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second
	}
	logrus.Warnf("⚠️  Invalid duration for %s: %q, using %s", key, raw, defaultValue)
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
