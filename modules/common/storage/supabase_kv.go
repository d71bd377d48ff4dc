package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/supabase-community/supabase-go"
)

// kvRow - 컬렉션 테이블 행 (key 기본키, value는 JSON 텍스트)
type kvRow struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// SupabaseKV - Supabase(PostgREST) 테이블 백엔드
type SupabaseKV struct {
	client *supabase.Client
	table  string
}

// NewSupabaseKV - Supabase 클라이언트 생성
func NewSupabaseKV(url, serviceKey, table string) (*SupabaseKV, error) {
	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}
	return &SupabaseKV{client: client, table: table}, nil
}

// PostgREST 호출은 context를 받지 않음
func (s *SupabaseKV) Get(_ context.Context, key string) ([]byte, error) {
	data, _, err := s.client.From(s.table).
		Select("key,value", "", false).
		Eq("key", key).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query Supabase: %w", err)
	}

	var rows []kvRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return []byte(rows[0].Value), nil
}

func (s *SupabaseKV) Set(_ context.Context, key string, value []byte) error {
	row := kvRow{
		Key:       key,
		Value:     string(value),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	_, _, err := s.client.From(s.table).
		Upsert(row, "key", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", key, err)
	}
	return nil
}

func (s *SupabaseKV) Delete(_ context.Context, key string) error {
	_, _, err := s.client.From(s.table).
		Delete("minimal", "").
		Eq("key", key).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
