package studio

import (
	"errors"
	"fmt"

	"escena-studio/modules/engine"
)

var (
	// ErrInvalidTransition - 현재 상태에서 허용되지 않는 이벤트
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	// ErrCoolingDown - 쿼터 초과 후 재요청 대기 중
	ErrCoolingDown = errors.New("generation is cooling down after a quota error")
	// ErrInvalidDraft - 프롬프트 설정 검증 실패
	ErrInvalidDraft = errors.New("invalid prompt draft")
)

// Phase - 라이프사이클 단계 이름
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseOptimizing      Phase = "optimizing"
	PhasePromptSelection Phase = "prompt_selection"
	PhaseGenerating      Phase = "generating"
	PhaseSucceeded       Phase = "success"
	PhaseFailed          Phase = "error"
	PhaseWebHandoff      Phase = "web_handoff"
)

// State - 태그된 상태. 이 패키지의 타입만 구현 가능
type State interface {
	Phase() Phase
	sealed()
}

type Idle struct{}

// Optimizing - 최적화(및 평가) 진행 중
type Optimizing struct {
	Original string
}

// PromptSelection - 두 점수가 모두 있어야 생성 가능
type PromptSelection struct {
	original       string
	optimized      string
	originalScore  int
	optimizedScore int
	scored         bool
}

// NewPromptSelection - 점수 범위(0..100) 검증 후 생성
func NewPromptSelection(original, optimized string, originalScore, optimizedScore int) (PromptSelection, error) {
	for _, score := range []int{originalScore, optimizedScore} {
		if score < 0 || score > 100 {
			return PromptSelection{}, fmt.Errorf("score %d out of range", score)
		}
	}
	return PromptSelection{
		original:       original,
		optimized:      optimized,
		originalScore:  originalScore,
		optimizedScore: optimizedScore,
		scored:         true,
	}, nil
}

func (s PromptSelection) Original() string    { return s.original }
func (s PromptSelection) Optimized() string   { return s.optimized }
func (s PromptSelection) OriginalScore() int  { return s.originalScore }
func (s PromptSelection) OptimizedScore() int { return s.optimizedScore }

// Generating - Done/Total 장면(또는 배치) 진행
type Generating struct {
	Done  int
	Total int
}

type Succeeded struct{}

// Failed - 마지막 에러와 분류
type Failed struct {
	Err  error
	Kind engine.ErrorKind
}

// WebHandoff - 제공자 웹 UI로 넘김 (프롬프트 복사는 best-effort)
type WebHandoff struct {
	Prompt string
	URL    string
	Copied bool
}

func (Idle) Phase() Phase            { return PhaseIdle }
func (Optimizing) Phase() Phase      { return PhaseOptimizing }
func (PromptSelection) Phase() Phase { return PhasePromptSelection }
func (Generating) Phase() Phase      { return PhaseGenerating }
func (Succeeded) Phase() Phase       { return PhaseSucceeded }
func (Failed) Phase() Phase          { return PhaseFailed }
func (WebHandoff) Phase() Phase      { return PhaseWebHandoff }

func (Idle) sealed()            {}
func (Optimizing) sealed()      {}
func (PromptSelection) sealed() {}
func (Generating) sealed()      {}
func (Succeeded) sealed()       {}
func (Failed) sealed()          {}
func (WebHandoff) sealed()      {}

// Event - 상태 전이 입력
type Event interface {
	eventName() string
}

// Submit - 비어 있지 않은 초안 제출
type Submit struct{ Original string }

// Scored - 단일 장면 최적화 + 평가 완료
type Scored struct{ Selection PromptSelection }

// Generate - 생성 시작 (최적화 직후 또는 사용자 선택). Total은 생성 호출 수
type Generate struct{ Total int }

// Progress - 장면 하나 생성 완료
type Progress struct{}

// Complete - 모든 생성 완료
type Complete struct{}

// Fail - 제공자 에러
type Fail struct{ Err error }

// Handoff - 쿼터 에러에서 웹 UI로
type Handoff struct {
	Prompt string
	URL    string
	Copied bool
}

// Reset - idle로 복귀
type Reset struct{}

func (Submit) eventName() string   { return "submit" }
func (Scored) eventName() string   { return "scored" }
func (Generate) eventName() string { return "generate" }
func (Progress) eventName() string { return "progress" }
func (Complete) eventName() string { return "complete" }
func (Fail) eventName() string     { return "fail" }
func (Handoff) eventName() string  { return "handoff" }
func (Reset) eventName() string    { return "reset" }

// Transition - 유일한 상태 전이 함수
func Transition(s State, ev Event) (State, error) {
	switch e := ev.(type) {
	case Submit:
		switch s.(type) {
		case Idle, Succeeded, Failed:
			return Optimizing{Original: e.Original}, nil
		}

	case Scored:
		if _, ok := s.(Optimizing); ok && e.Selection.scored {
			return e.Selection, nil
		}

	case Generate:
		switch s.(type) {
		case Optimizing, PromptSelection:
			return Generating{Total: e.Total}, nil
		}

	case Progress:
		if g, ok := s.(Generating); ok && g.Done < g.Total {
			g.Done++
			return g, nil
		}

	case Complete:
		if _, ok := s.(Generating); ok {
			return Succeeded{}, nil
		}

	case Fail:
		switch s.(type) {
		case Optimizing, Generating:
			return Failed{Err: e.Err, Kind: engine.KindOf(e.Err)}, nil
		}

	case Handoff:
		if f, ok := s.(Failed); ok && f.Kind == engine.KindQuotaExceeded {
			return WebHandoff{Prompt: e.Prompt, URL: e.URL, Copied: e.Copied}, nil
		}

	case Reset:
		return Idle{}, nil
	}

	return s, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev.eventName(), s.Phase())
}
