package seedream

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
	"golang.org/x/sync/errgroup"

	"escena-studio/modules/common/config"
	"escena-studio/modules/common/logger"
	"escena-studio/modules/common/model"
	"escena-studio/modules/engine"
)

// Service - Runware Seedream 엔진. 요청당 1장이라 변형 수만큼 동시 요청
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
		s.log.Warn("⚠️ RUNWARE_API_KEY not configured")
	} else {
		s.log.Info("✅ Service initialized")
	}
	return s
}

func newService(apiKey, apiURL string) *Service {
	return &Service{
		apiKey:     apiKey,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 180 * time.Second}, // Seedream은 좀 더 긴 타임아웃
		log:        logger.WithModule("Seedream"),
	}
}

func (s *Service) Name() string { return Name }

// GenerateImages - 변형마다 1장씩 요청. 하나라도 실패하면 배치 실패
func (s *Service) GenerateImages(ctx context.Context, settings engine.Settings) ([]engine.Image, error) {
	if s.apiKey == "" {
		return nil, &engine.ProviderError{Kind: engine.KindInvalidCredentials, Engine: Name, Op: "generate",
			Err: fmt.Errorf("RUNWARE_API_KEY not configured")}
	}

	width, height := Dimensions(settings.AspectRatio)
	prompt := engine.ComposePrompt(settings)
	s.log.Infof("🎨 Generating %d image(s) - size: %dx%d, prompt: %s", settings.Variants, width, height, truncateString(prompt, 50))

	images := make([]engine.Image, settings.Variants)
	g, gctx := errgroup.WithContext(ctx)
	for i := range images {
		g.Go(func() error {
			img, err := s.generateOne(gctx, prompt, width, height)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := engine.CheckBatch(Name, images, settings.Variants); err != nil {
		return nil, err
	}

	s.log.Infof("✅ %d image(s) generated (2K resolution)", len(images))
	return images, nil
}

func (s *Service) generateOne(ctx context.Context, prompt string, width, height int) (engine.Image, error) {
	runwareReq := RunwareRequest{
		TaskType:       "imageInference",
		TaskUUID:       uuid.New().String(),
		PositivePrompt: prompt,
		Model:          SeedreamModelID,
		Width:          width,
		Height:         height,
		NumberResults:  1,
		OutputFormat:   "PNG",
	}

	jsonBody, err := json.Marshal([]RunwareRequest{runwareReq})
	if err != nil {
		return engine.Image{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(jsonBody))
	if err != nil {
		return engine.Image{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		s.log.Errorf("❌ Runware API error: %v", err)
		return engine.Image{}, engine.Classify(Name, "generate", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return engine.Image{}, engine.Classify(Name, "generate", fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		s.log.Errorf("❌ Runware API error: status=%d, body=%s", resp.StatusCode, truncateString(string(bodyBytes), 200))
		return engine.Image{}, engine.Classify(Name, "generate", &engine.StatusError{Code: resp.StatusCode, Message: string(bodyBytes)})
	}

	var runwareResp RunwareResponse
	if err := json.Unmarshal(bodyBytes, &runwareResp); err != nil {
		return engine.Image{}, engine.Malformed(Name, "generate", "failed to parse response: %v", err)
	}
	if runwareResp.Error != "" {
		return engine.Image{}, engine.Classify(Name, "generate", fmt.Errorf("%s", runwareResp.Error))
	}
	if len(runwareResp.Errors) > 0 {
		return engine.Image{}, engine.Classify(Name, "generate", fmt.Errorf("%s: %s", runwareResp.Errors[0].Code, runwareResp.Errors[0].Message))
	}
	if len(runwareResp.Data) == 0 || runwareResp.Data[0].ImageURL == "" {
		return engine.Image{}, engine.Malformed(Name, "generate", "no image generated from Runware")
	}

	data, err := s.downloadImage(ctx, runwareResp.Data[0].ImageURL)
	if err != nil {
		return engine.Image{}, engine.Classify(Name, "generate", err)
	}
	return engine.Image{Data: data, MIMEType: "image/png"}, nil
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

// Dimensions - Seedream 기본 해상도 (2048 기준)
func Dimensions(ratio model.AspectRatio) (int, int) {
	switch ratio {
	case model.AspectWide:
		return 2048, 1152
	case model.AspectTall:
		return 1152, 2048
	case model.AspectPortrait:
		return 1536, 2048
	case model.AspectLandscape:
		return 2048, 1536
	default:
		return 2048, 2048
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
