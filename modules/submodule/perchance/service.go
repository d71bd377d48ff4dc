package perchance

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
	"golang.org/x/sync/errgroup"

	"escena-studio/modules/common/config"
	"escena-studio/modules/common/logger"
	"escena-studio/modules/engine"
)

// Name - ENGINE_ORDER에서 사용하는 이름
const Name = "perchance"

type imageRequest struct {
	Prompt         string `json:"prompt"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	B64JSON string `json:"b64_json"`
}

// Service - Perchance 이미지 엔진. 요청 하나당 이미지 하나, 변형 수만큼 동시 요청
type Service struct {
	engine.ImagesOnly

	apiURL     string
	httpClient *http.Client
	log        *logrus.Entry
}

var _ engine.Engine = (*Service)(nil)

func NewService(cfg *config.Config) *Service {
	s := newService(cfg.PerchanceAPIURL)
	s.log.Info("✅ Service initialized")
	return s
}

func newService(apiURL string) *Service {
	return &Service{
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		log:        logger.WithModule("Perchance"),
	}
}

func (s *Service) Name() string { return Name }

// GenerateImages - 하나라도 실패하면 배치 전체 실패
func (s *Service) GenerateImages(ctx context.Context, settings engine.Settings) ([]engine.Image, error) {
	prompt := engine.ComposePrompt(settings)
	s.log.Infof("🎨 Generating %d image(s), prompt: %s", settings.Variants, truncateString(prompt, 50))

	images := make([]engine.Image, settings.Variants)
	g, gctx := errgroup.WithContext(ctx)
	for i := range images {
		g.Go(func() error {
			img, err := s.generateOne(gctx, prompt)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, engine.Classify(Name, "generate", err)
	}
	if err := engine.CheckBatch(Name, images, settings.Variants); err != nil {
		return nil, err
	}
	return images, nil
}

func (s *Service) generateOne(ctx context.Context, prompt string) (engine.Image, error) {
	jsonBody, err := json.Marshal(imageRequest{Prompt: prompt, ResponseFormat: "b64_json"})
	if err != nil {
		return engine.Image{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(jsonBody))
	if err != nil {
		return engine.Image{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return engine.Image{}, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return engine.Image{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return engine.Image{}, &engine.StatusError{Code: resp.StatusCode, Status: resp.Status, Message: truncateString(string(bodyBytes), 200)}
	}

	var parsed imageResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil || parsed.B64JSON == "" {
		return engine.Image{}, engine.Malformed(Name, "generate", "invalid response format from Perchance")
	}
	data, err := base64.StdEncoding.DecodeString(parsed.B64JSON)
	if err != nil {
		return engine.Image{}, engine.Malformed(Name, "generate", "image is not valid base64: %v", err)
	}
	return engine.Image{Data: data, MIMEType: "image/png"}, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
