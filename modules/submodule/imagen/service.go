package imagen

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"escena-studio/modules/common/config"
	"escena-studio/modules/common/gemini"
	"escena-studio/modules/common/logger"
	"escena-studio/modules/engine"
)

// Name - ENGINE_ORDER에서 사용하는 이름
const Name = "gemini"

// Service - Gemini 텍스트 + Imagen 이미지 + Veo 애니메이션 엔진
type Service struct {
	rotator      *gemini.Rotator[*gemini.Backend]
	textModel    string
	imageModel   string
	videoModel   string
	pollInterval time.Duration
	httpClient   *http.Client
	log          *logrus.Entry
}

var _ engine.Engine = (*Service)(nil)

// NewService - 설정에서 엔진 생성
func NewService(cfg *config.Config) *Service {
	s := newService(gemini.NewBackendRotator(cfg), cfg.GeminiTextModel, cfg.ImagenModel, cfg.VeoModel, cfg.AnimationPollInterval)
	s.log.Infof("✅ Service initialized (text: %s, image: %s, video: %s)", s.textModel, s.imageModel, s.videoModel)
	return s
}

func newService(rotator *gemini.Rotator[*gemini.Backend], textModel, imageModel, videoModel string, pollInterval time.Duration) *Service {
	return &Service{
		rotator:      rotator,
		textModel:    textModel,
		imageModel:   imageModel,
		videoModel:   videoModel,
		pollInterval: pollInterval,
		httpClient:   &http.Client{Timeout: 5 * time.Minute},
		log:          logger.WithModule("Gemini"),
	}
}

func (s *Service) Name() string { return Name }

// OptimizePrompt - 장면을 합쳐 영어로 번역 + 확장
func (s *Service) OptimizePrompt(ctx context.Context, scenes []string, negativePrompt string) (string, error) {
	combined := engine.CombineScenes(scenes)
	if combined == "" {
		return "", nil
	}

	userPrompt := fmt.Sprintf("User prompt: %q.", combined)
	if neg := strings.TrimSpace(negativePrompt); neg != "" {
		userPrompt += fmt.Sprintf(" Negative prompt: %q", neg)
	}

	text, err := s.generateText(ctx, "optimize", []*genai.Content{genai.NewContentFromText(userPrompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(optimizeInstruction, genai.RoleUser),
			Temperature:       floatPtr(0.8),
		})
	if err != nil {
		return "", err
	}
	return cleanPrompt(text), nil
}

// RatePrompt - 0..100 점수. 해석 불가 응답은 MalformedResponse
func (s *Service) RatePrompt(ctx context.Context, prompt string) (int, error) {
	text, err := s.generateText(ctx, "rate", []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(rateInstruction, genai.RoleUser),
			Temperature:       floatPtr(0.1),
		})
	if err != nil {
		return 0, err
	}
	return engine.ParseScore(Name, text)
}

// AnalyzeImage - 이미지를 재생성 가능한 프롬프트로 설명
func (s *Service) AnalyzeImage(ctx context.Context, img engine.Image) (string, error) {
	if len(img.Data) == 0 {
		return "", fmt.Errorf("empty image")
	}
	content := &genai.Content{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			genai.NewPartFromBytes(img.Data, img.MIMEType),
			genai.NewPartFromText(analyzeRequest),
		},
	}
	text, err := s.generateText(ctx, "analyze", []*genai.Content{content}, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(analyzeInstruction, genai.RoleUser),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// GenerateImages - Imagen으로 Variants장 생성 (한 번의 호출)
func (s *Service) GenerateImages(ctx context.Context, settings engine.Settings) ([]engine.Image, error) {
	prompt := engine.ComposePrompt(settings)
	s.log.Infof("🎨 Generating %d image(s) - model: %s, ratio: %s, prompt: %s",
		settings.Variants, s.imageModel, settings.AspectRatio, truncateString(prompt, 50))

	resp, err := gemini.Do(ctx, s.rotator, func(ctx context.Context, b *gemini.Backend) (*genai.GenerateImagesResponse, error) {
		return b.Models.GenerateImages(ctx, s.imageModel, prompt, &genai.GenerateImagesConfig{
			NumberOfImages: int32(settings.Variants),
			AspectRatio:    string(settings.AspectRatio),
			OutputMIMEType: "image/jpeg",
		})
	})
	if err != nil {
		return nil, engine.Classify(Name, "generate", err)
	}

	images := make([]engine.Image, 0, len(resp.GeneratedImages))
	for _, generated := range resp.GeneratedImages {
		if generated == nil || generated.Image == nil {
			continue
		}
		mimeType := generated.Image.MIMEType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		images = append(images, engine.Image{Data: generated.Image.ImageBytes, MIMEType: mimeType})
	}
	if err := engine.CheckBatch(Name, images, settings.Variants); err != nil {
		return nil, err
	}
	return images, nil
}

func (s *Service) generateText(ctx context.Context, op string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := gemini.Do(ctx, s.rotator, func(ctx context.Context, b *gemini.Backend) (*genai.GenerateContentResponse, error) {
		return b.Models.GenerateContent(ctx, s.textModel, contents, cfg)
	})
	if err != nil {
		return "", engine.Classify(Name, op, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", engine.Malformed(Name, op, "empty response")
	}
	return text, nil
}

// cleanPrompt - 앞뒤 따옴표와 백틱 제거
func cleanPrompt(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "`", "")
	text = strings.TrimPrefix(text, `"`)
	text = strings.TrimSuffix(text, `"`)
	return strings.TrimSpace(text)
}

func download(ctx context.Context, client *http.Client, uri, apiKey string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, "", err
	}
	if apiKey != "" {
		req.Header.Set("x-goog-api-key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, "", &engine.StatusError{Code: resp.StatusCode, Message: string(body)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read video: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func floatPtr(f float64) *float32 {
	f32 := float32(f)
	return &f32
}
