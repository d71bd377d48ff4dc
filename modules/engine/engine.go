package engine

import (
	"context"
	"errors"
	"strings"

	"escena-studio/modules/common/model"
)

// ErrUnsupported - 엔진이 해당 기능을 제공하지 않음
var ErrUnsupported = errors.New("operation not supported by engine")

// Settings - 이미지 생성 요청
type Settings struct {
	Prompt         string
	Style          model.VisualStyle
	AspectRatio    model.AspectRatio
	NegativePrompt string
	Variants       int
}

// Image - 생성/업로드된 이미지 바이너리
type Image struct {
	Data     []byte
	MIMEType string
}

// Video - 애니메이션 결과
type Video struct {
	Data     []byte
	MIMEType string
	URI      string
}

// Prompter - 텍스트 기능 (최적화, 평가, 이미지 분석)
type Prompter interface {
	OptimizePrompt(ctx context.Context, scenes []string, negativePrompt string) (string, error)
	// RatePrompt - 0..100. 파싱 실패는 KindMalformedResponse
	RatePrompt(ctx context.Context, prompt string) (int, error)
	AnalyzeImage(ctx context.Context, img Image) (string, error)
}

// ImageGenerator - 이미지 생성. 결과 길이는 Variants와 같거나 에러
type ImageGenerator interface {
	Name() string
	GenerateImages(ctx context.Context, s Settings) ([]Image, error)
}

// Animator - 이미지 → 비디오 (내부에서 완료까지 폴링)
type Animator interface {
	AnimateImage(ctx context.Context, img Image, prompt string) (*Video, error)
}

// Engine - 전체 기능 계약
type Engine interface {
	Prompter
	ImageGenerator
	Animator
}

// ComposePrompt - "<prompt>, <style suffix>[. Negative prompt: <neg>]"
func ComposePrompt(s Settings) string {
	var b strings.Builder
	b.WriteString(s.Prompt)
	if s.Style.Prompt != "" {
		b.WriteString(", ")
		b.WriteString(s.Style.Prompt)
	}
	if neg := strings.TrimSpace(s.NegativePrompt); neg != "" {
		b.WriteString(". Negative prompt: ")
		b.WriteString(neg)
	}
	return b.String()
}

// CombineScenes - 공백이 아닌 장면을 ". "로 연결
func CombineScenes(scenes []string) string {
	return model.PromptDraft{Scenes: scenes}.CombinedPrompt()
}

// ImagesOnly - 이미지 생성만 지원하는 엔진에 임베드 (나머지는 ErrUnsupported)
type ImagesOnly struct{}

func (ImagesOnly) OptimizePrompt(context.Context, []string, string) (string, error) {
	return "", ErrUnsupported
}

func (ImagesOnly) RatePrompt(context.Context, string) (int, error) {
	return 0, ErrUnsupported
}

func (ImagesOnly) AnalyzeImage(context.Context, Image) (string, error) {
	return "", ErrUnsupported
}

func (ImagesOnly) AnimateImage(context.Context, Image, string) (*Video, error) {
	return nil, ErrUnsupported
}

// CheckBatch - 엔진 결과 길이 검증 (부분 배치는 실패)
func CheckBatch(engineName string, images []Image, variants int) error {
	if len(images) != variants {
		return Malformed(engineName, "generate", "expected %d images, got %d", variants, len(images))
	}
	for i, img := range images {
		if len(img.Data) == 0 {
			return Malformed(engineName, "generate", "image %d is empty", i)
		}
	}
	return nil
}
