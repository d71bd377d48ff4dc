package vertexai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	"google.golang.org/genai"

	"escena-studio/modules/common/logger"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// NewVertexAIClient - Vertex AI 백엔드 genai 클라이언트 생성 (환경 변수 자동 처리)
func NewVertexAIClient(ctx context.Context, project, location string) (*genai.Client, error) {
	creds, err := LoadCredentials()
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:     genai.BackendVertexAI,
		Project:     project,
		Location:    location,
		Credentials: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	logger.WithModule("VertexAI").Infof("✅ Client initialized for project=%s, location=%s", project, location)
	return client, nil
}

// LoadCredentials - 자격 증명 로드 순서
//  1. VERTEXAI_CREDENTIALS_JSON (배포용)
//  2. VERTEXAI_CREDENTIALS_PATH (로컬 테스트용)
//  3. Application Default Credentials
func LoadCredentials() (*auth.Credentials, error) {
	log := logger.WithModule("VertexAI")
	opts := &credentials.DetectOptions{Scopes: []string{cloudPlatformScope}}

	if credsJSON := os.Getenv("VERTEXAI_CREDENTIALS_JSON"); credsJSON != "" {
		log.Info("✅ Using VERTEXAI_CREDENTIALS_JSON from environment")
		if err := checkJSON([]byte(credsJSON)); err != nil {
			return nil, err
		}
		opts.CredentialsJSON = []byte(credsJSON)
	} else if credsPath := os.Getenv("VERTEXAI_CREDENTIALS_PATH"); credsPath != "" {
		log.Infof("✅ Using credentials from file: %s", credsPath)
		credsData, err := os.ReadFile(credsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		if err := checkJSON(credsData); err != nil {
			return nil, err
		}
		opts.CredentialsJSON = credsData
	} else {
		log.Warn("⚠️  No explicit credentials found, using Application Default Credentials")
	}

	creds, err := credentials.DetectDefault(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load Vertex AI credentials: %w", err)
	}
	return creds, nil
}

func checkJSON(data []byte) error {
	var creds map[string]interface{}
	if err := json.Unmarshal(data, &creds); err != nil {
		return fmt.Errorf("invalid JSON credentials: %w", err)
	}
	return nil
}
