package fluxschnell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"escena-studio/modules/common/config"
	"escena-studio/modules/common/logger"
	"escena-studio/modules/common/model"
	"escena-studio/modules/engine"
)

// Service - Runware Flux Schnell 엔진 (이미지 생성만)
type Service struct {
	engine.ImagesOnly

	apiKey     string
	apiURL     string
	httpClient *http.Client
	log        *logrus.Entry
}

var _ engine.Engine = (*Service)(nil)

func NewService(cfg *config.Config) *Service {
	s := newService(cfg.RunwareAPIKey, cfg.RunwareAPIURL)
	if s.apiKey == "" {
		s.log.Warn("⚠️  RUNWARE_API_KEY not configured")
	} else {
		s.log.Info("✅ Service initialized")
	}
	return s
}

func newService(apiKey, apiURL string) *Service {
	return &Service{
		apiKey:     apiKey,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		log:        logger.WithModule("FluxSchnell"),
	}
}

func (s *Service) Name() string { return Name }

// GenerateImages - numberResults=Variants 요청 후 결과 URL을 모두 다운로드
func (s *Service) GenerateImages(ctx context.Context, settings engine.Settings) ([]engine.Image, error) {
	if s.apiKey == "" {
		return nil, &engine.ProviderError{Kind: engine.KindInvalidCredentials, Engine: Name, Op: "generate",
			Err: fmt.Errorf("RUNWARE_API_KEY not configured")}
	}

	width, height := Dimensions(settings.AspectRatio)
	prompt := engine.ComposePrompt(engine.Settings{Prompt: settings.Prompt, Style: settings.Style})
	s.log.Infof("🎨 Generating %d image(s) - size: %dx%d, prompt: %s", settings.Variants, width, height, truncateString(prompt, 50))

	runwareReq := RunwareRequest{
		TaskType:       "imageInference",
		TaskUUID:       uuid.New().String(),
		PositivePrompt: prompt,
		NegativePrompt: settings.NegativePrompt,
		Model:          FluxSchnellModelID,
		Width:          width,
		Height:         height,
		NumberResults:  settings.Variants,
		OutputFormat:   "PNG",
		Steps:          4, // Flux Schnell 기본 steps
		CFGScale:       1.0,
	}

	jsonBody, err := json.Marshal([]RunwareRequest{runwareReq})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, engine.Classify(Name, "generate", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, engine.Classify(Name, "generate", fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		s.log.Errorf("❌ Runware API error: status=%d, body=%s", resp.StatusCode, truncateString(string(bodyBytes), 200))
		return nil, engine.Classify(Name, "generate", &engine.StatusError{Code: resp.StatusCode, Message: string(bodyBytes)})
	}

	var runwareResp RunwareResponse
	if err := json.Unmarshal(bodyBytes, &runwareResp); err != nil {
		return nil, engine.Malformed(Name, "generate", "failed to parse response: %v", err)
	}
	if runwareResp.Error != "" {
		return nil, engine.Classify(Name, "generate", fmt.Errorf("%s", runwareResp.Error))
	}
	if len(runwareResp.Errors) > 0 {
		return nil, engine.Classify(Name, "generate", fmt.Errorf("%s: %s", runwareResp.Errors[0].Code, runwareResp.Errors[0].Message))
	}

	images := make([]engine.Image, 0, len(runwareResp.Data))
	for _, item := range runwareResp.Data {
		if item.ImageURL == "" {
			continue
		}
		data, err := s.downloadImage(ctx, item.ImageURL)
		if err != nil {
			return nil, engine.Classify(Name, "generate", err)
		}
		images = append(images, engine.Image{Data: data, MIMEType: "image/png"})
	}
	if err := engine.CheckBatch(Name, images, settings.Variants); err != nil {
		return nil, err
	}

	s.log.Infof("✅ %d image(s) generated", len(images))
	return images, nil
}

// downloadImage - URL에서 이미지 다운로드
func (s *Service) downloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &engine.StatusError{Code: resp.StatusCode, Message: "failed to download image"}
	}
	return io.ReadAll(resp.Body)
}

// Dimensions - 비율 → Runware 크기 (64의 배수)
func Dimensions(ratio model.AspectRatio) (int, int) {
	switch ratio {
	case model.AspectWide:
		return 1344, 768
	case model.AspectTall:
		return 768, 1344
	case model.AspectLandscape:
		return 1152, 896
	case model.AspectPortrait:
		return 896, 1152
	default:
		return 1024, 1024
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
