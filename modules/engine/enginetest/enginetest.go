// Package enginetest provides a scriptable engine.Engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"sync"

	"escena-studio/modules/engine"
)

// Engine - 함수 필드로 동작을 지정하는 가짜 엔진
// 지정하지 않은 동작은 기본 성공값을 반환
type Engine struct {
	EngineName string

	OptimizeFunc func(ctx context.Context, scenes []string, negativePrompt string) (string, error)
	RateFunc     func(ctx context.Context, prompt string) (int, error)
	AnalyzeFunc  func(ctx context.Context, img engine.Image) (string, error)
	GenerateFunc func(ctx context.Context, s engine.Settings) ([]engine.Image, error)
	AnimateFunc  func(ctx context.Context, img engine.Image, prompt string) (*engine.Video, error)

	mu            sync.Mutex
	optimizeCalls [][]string
	rateCalls     []string
	analyzeCalls  int
	generateCalls []engine.Settings
	animateCalls  int
}

var _ engine.Engine = (*Engine)(nil)

// New - 이름만 지정한 가짜 엔진
func New(name string) *Engine {
	return &Engine{EngineName: name}
}

func (e *Engine) Name() string { return e.EngineName }

func (e *Engine) OptimizePrompt(ctx context.Context, scenes []string, negativePrompt string) (string, error) {
	e.mu.Lock()
	e.optimizeCalls = append(e.optimizeCalls, append([]string(nil), scenes...))
	e.mu.Unlock()
	if e.OptimizeFunc != nil {
		return e.OptimizeFunc(ctx, scenes, negativePrompt)
	}
	return "optimized " + engine.CombineScenes(scenes), nil
}

func (e *Engine) RatePrompt(ctx context.Context, prompt string) (int, error) {
	e.mu.Lock()
	e.rateCalls = append(e.rateCalls, prompt)
	e.mu.Unlock()
	if e.RateFunc != nil {
		return e.RateFunc(ctx, prompt)
	}
	return 70, nil
}

func (e *Engine) AnalyzeImage(ctx context.Context, img engine.Image) (string, error) {
	e.mu.Lock()
	e.analyzeCalls++
	e.mu.Unlock()
	if e.AnalyzeFunc != nil {
		return e.AnalyzeFunc(ctx, img)
	}
	return "a described image", nil
}

func (e *Engine) GenerateImages(ctx context.Context, s engine.Settings) ([]engine.Image, error) {
	e.mu.Lock()
	e.generateCalls = append(e.generateCalls, s)
	e.mu.Unlock()
	if e.GenerateFunc != nil {
		return e.GenerateFunc(ctx, s)
	}
	return Images(e.EngineName, s.Variants), nil
}

func (e *Engine) AnimateImage(ctx context.Context, img engine.Image, prompt string) (*engine.Video, error) {
	e.mu.Lock()
	e.animateCalls++
	e.mu.Unlock()
	if e.AnimateFunc != nil {
		return e.AnimateFunc(ctx, img, prompt)
	}
	return &engine.Video{Data: []byte("video"), MIMEType: "video/mp4"}, nil
}

// OptimizeCalls - OptimizePrompt에 전달된 장면 목록
func (e *Engine) OptimizeCalls() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]string(nil), e.optimizeCalls...)
}

// RateCalls - RatePrompt에 전달된 프롬프트
func (e *Engine) RateCalls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.rateCalls...)
}

func (e *Engine) AnalyzeCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.analyzeCalls
}

// GenerateCalls - GenerateImages에 전달된 설정
func (e *Engine) GenerateCalls() []engine.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.Settings(nil), e.generateCalls...)
}

func (e *Engine) AnimateCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.animateCalls
}

// TotalCalls - 모든 제공자 호출 수
func (e *Engine) TotalCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.optimizeCalls) + len(e.rateCalls) + e.analyzeCalls + len(e.generateCalls) + e.animateCalls
}

// Images - n개의 구분 가능한 PNG 더미 이미지
func Images(tag string, n int) []engine.Image {
	out := make([]engine.Image, n)
	for i := range out {
		out[i] = engine.Image{Data: []byte(fmt.Sprintf("%s-image-%d", tag, i)), MIMEType: "image/png"}
	}
	return out
}

// Gate - 테스트가 호출 완료 시점을 제어할 때 사용
// Wait는 Release가 호출될 때까지 블록
type Gate struct {
	entered chan struct{}
	release chan struct{}
}

func NewGate() *Gate {
	return &Gate{entered: make(chan struct{}, 16), release: make(chan struct{}, 16)}
}

// Wait - 진입을 알리고 해제를 기다림
func (g *Gate) Wait(ctx context.Context) error {
	g.entered <- struct{}{}
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entered - 호출 하나가 Wait에 진입할 때까지 블록
func (g *Gate) Entered() {
	<-g.entered
}

// Release - 대기 중인 호출 하나를 해제
func (g *Gate) Release() {
	g.release <- struct{}{}
}
