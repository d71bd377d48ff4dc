package nanobanana

import (
	"context"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"escena-studio/modules/common/config"
	"escena-studio/modules/common/gemini"
	"escena-studio/modules/common/logger"
	"escena-studio/modules/engine"
)

// Service - Gemini 네이티브 이미지 모델 엔진 (이미지 생성만)
type Service struct {
	engine.ImagesOnly

	rotator *gemini.Rotator[*gemini.Backend]
	model   string
	log     *logrus.Entry
}

var _ engine.Engine = (*Service)(nil)

func NewService(cfg *config.Config) *Service {
	s := newService(gemini.NewBackendRotator(cfg), cfg.NanoBananaModel)
	s.log.Infof("✅ Service initialized (model: %s)", s.model)
	return s
}

func newService(rotator *gemini.Rotator[*gemini.Backend], model string) *Service {
	return &Service{rotator: rotator, model: model, log: logger.WithModule("Nanobanana")}
}

func (s *Service) Name() string { return Name }

// GenerateImages - 호출 하나당 이미지 하나, Variants번 순차 호출
func (s *Service) GenerateImages(ctx context.Context, settings engine.Settings) ([]engine.Image, error) {
	prompt := engine.ComposePrompt(settings)
	s.log.Infof("🎨 Generating %d image(s) - model: %s, ratio: %s, prompt: %s",
		settings.Variants, s.model, settings.AspectRatio, truncateString(prompt, 50))

	content := genai.NewContentFromText(prompt, genai.RoleUser)
	cfg := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{
			AspectRatio: string(settings.AspectRatio),
		},
		Temperature: floatPtr(0.7),
	}

	images := make([]engine.Image, 0, settings.Variants)
	for i := 0; i < settings.Variants; i++ {
		result, err := gemini.Do(ctx, s.rotator, func(ctx context.Context, b *gemini.Backend) (*genai.GenerateContentResponse, error) {
			return b.Models.GenerateContent(ctx, s.model, []*genai.Content{content}, cfg)
		})
		if err != nil {
			return nil, engine.Classify(Name, "generate", err)
		}

		img, ok := firstImage(result)
		if !ok {
			return nil, engine.Malformed(Name, "generate", "no image generated from Gemini (variant %d)", i+1)
		}
		s.log.Debugf("✅ Image %d/%d generated: %d bytes", i+1, settings.Variants, len(img.Data))
		images = append(images, img)
	}
	return images, nil
}

// firstImage - 응답에서 첫 번째 인라인 이미지 추출
func firstImage(result *genai.GenerateContentResponse) (engine.Image, bool) {
	if result == nil {
		return engine.Image{}, false
	}
	for i, candidate := range result.Candidates {
		if i >= maxCandidates {
			break
		}
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mimeType := part.InlineData.MIMEType
				if mimeType == "" {
					mimeType = "image/png"
				}
				return engine.Image{Data: part.InlineData.Data, MIMEType: mimeType}, true
			}
		}
	}
	return engine.Image{}, false
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
