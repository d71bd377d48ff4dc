package grok

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"escena-studio/modules/common/config"
	"escena-studio/modules/common/logger"
	"escena-studio/modules/common/model"
	"escena-studio/modules/engine"
)

// Service - xAI Grok 이미지 엔진 (이미지 생성만)
type Service struct {
	engine.ImagesOnly

	apiKey     string
	apiURL     string
	model      string
	httpClient *http.Client
	log        *logrus.Entry
}

var _ engine.Engine = (*Service)(nil)

func NewService(cfg *config.Config) *Service {
	s := newService(cfg.XAIAPIKey, cfg.GrokAPIURL, cfg.GrokModel)
	if s.apiKey == "" {
		s.log.Warn("⚠️  XAI_API_KEY not configured, Grok generation will fail")
	} else {
		s.log.Info("✅ Service initialized")
	}
	return s
}

func newService(apiKey, apiURL, modelName string) *Service {
	return &Service{
		apiKey:     apiKey,
		apiURL:     apiURL,
		model:      modelName,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		log:        logger.WithModule("Grok"),
	}
}

func (s *Service) Name() string { return Name }

// GenerateImages - 한 번의 요청으로 Variants장 생성 (b64_json)
func (s *Service) GenerateImages(ctx context.Context, settings engine.Settings) ([]engine.Image, error) {
	if s.apiKey == "" {
		return nil, &engine.ProviderError{Kind: engine.KindInvalidCredentials, Engine: Name, Op: "generate",
			Err: fmt.Errorf("XAI_API_KEY not configured")}
	}

	prompt := engine.ComposePrompt(settings)
	s.log.Infof("🎨 Generating %d image(s) - size: %s, prompt: %s",
		settings.Variants, SizeFor(settings.AspectRatio), truncateString(prompt, 50))

	jsonBody, err := json.Marshal(ImageRequest{
		Model:          s.model,
		Prompt:         prompt,
		N:              settings.Variants,
		Size:           SizeFor(settings.AspectRatio),
		ResponseFormat: "b64_json",
	})
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
		var errResp ErrorResponse
		message := resp.Status
		if json.Unmarshal(bodyBytes, &errResp) == nil && errResp.Error.Message != "" {
			message = errResp.Error.Message
		}
		s.log.Errorf("❌ Grok API error: status=%d, message=%s", resp.StatusCode, message)
		return nil, engine.Classify(Name, "generate", &engine.StatusError{Code: resp.StatusCode, Message: message})
	}

	var imageResp ImageResponse
	if err := json.Unmarshal(bodyBytes, &imageResp); err != nil {
		return nil, engine.Malformed(Name, "generate", "invalid response format: %v", err)
	}

	images := make([]engine.Image, 0, len(imageResp.Data))
	for i, item := range imageResp.Data {
		data, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return nil, engine.Malformed(Name, "generate", "image %d is not valid base64: %v", i, err)
		}
		images = append(images, engine.Image{Data: data, MIMEType: "image/jpeg"})
	}
	if err := engine.CheckBatch(Name, images, settings.Variants); err != nil {
		return nil, err
	}

	s.log.Infof("✅ %d image(s) generated", len(images))
	return images, nil
}

// SizeFor - 비율 → xAI size
func SizeFor(ratio model.AspectRatio) string {
	switch ratio {
	case model.AspectWide:
		return "1792x1024"
	case model.AspectTall:
		return "1024x1792"
	case model.AspectLandscape:
		return "1344x1024"
	case model.AspectPortrait:
		return "1024x1344"
	default:
		return "1024x1024"
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
