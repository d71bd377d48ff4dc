package gemini

import (
	"context"

	"google.golang.org/genai"

	"escena-studio/modules/common/config"
	"escena-studio/modules/common/vertexai"
)

// ModelsAPI - 사용하는 genai.Models 메서드
type ModelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
	GenerateVideos(ctx context.Context, model string, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
}

// OperationsAPI - 사용하는 genai.Operations 메서드
type OperationsAPI interface {
	GetVideosOperation(ctx context.Context, operation *genai.GenerateVideosOperation, config *genai.GetOperationConfig) (*genai.GenerateVideosOperation, error)
}

// Backend - 키 하나(또는 Vertex 프로젝트)에 묶인 genai 서비스
type Backend struct {
	Models     ModelsAPI
	Operations OperationsAPI
	// APIKey - Gemini API 백엔드일 때 파일 다운로드에 사용. Vertex는 빈 값
	APIKey string
}

const vertexKey = "vertex"

// NewBackendRotator - GEMINI_API_KEYS가 있으면 키 로테이션, 없으면 Vertex AI 단일 백엔드
func NewBackendRotator(cfg *config.Config) *Rotator[*Backend] {
	if len(cfg.GeminiAPIKeys) > 0 {
		return NewRotator(cfg.GeminiAPIKeys, func(ctx context.Context, key string) (*Backend, error) {
			client, err := NewAPIKeyClient(ctx, key)
			if err != nil {
				return nil, err
			}
			return &Backend{Models: client.Models, Operations: client.Operations, APIKey: key}, nil
		})
	}

	return NewRotator([]string{vertexKey}, func(ctx context.Context, _ string) (*Backend, error) {
		client, err := vertexai.NewVertexAIClient(ctx, cfg.VertexProject, cfg.VertexLocation)
		if err != nil {
			return nil, err
		}
		return &Backend{Models: client.Models, Operations: client.Operations}, nil
	})
}

// StaticRotator - 고정 백엔드 하나 (테스트용)
func StaticRotator(b *Backend) *Rotator[*Backend] {
	return NewRotator([]string{"static"}, func(context.Context, string) (*Backend, error) {
		return b, nil
	}).WithWait(0)
}
