package model

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// AspectRatio - 이미지 비율
type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectWide      AspectRatio = "16:9"
	AspectTall      AspectRatio = "9:16"
	AspectLandscape AspectRatio = "4:3"
	AspectPortrait  AspectRatio = "3:4"
)

// AspectRatios - 지원하는 비율 목록 (UI 표시 순서)
var AspectRatios = []AspectRatio{AspectSquare, AspectWide, AspectTall, AspectLandscape, AspectPortrait}

// Valid - 지원하는 비율인지 확인
func (a AspectRatio) Valid() bool {
	for _, r := range AspectRatios {
		if r == a {
			return true
		}
	}
	return false
}

// GenerationMode - Simple(단일 장면) / Pro(다중 장면 + 네거티브)
type GenerationMode string

const (
	ModeSimple GenerationMode = "Simple"
	ModePro    GenerationMode = "Pro"
)

// AssetTypeImage - 저장 레코드의 type 태그
const AssetTypeImage = "image"

// Draft limits
const (
	MaxScenes      = 5
	MaxSceneLength = 1000
	MinVariants    = 1
	MaxVariants    = 4
)

// VisualStyle - 스타일 (id + 이름 + 프롬프트 접미사)
type VisualStyle struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

// PromptDraft - 폼에서 편집 중인 프롬프트 설정
type PromptDraft struct {
	Scenes         []string       `json:"scenes"`
	NegativePrompt string         `json:"negativePrompt"`
	Style          VisualStyle    `json:"style"`
	AspectRatio    AspectRatio    `json:"aspectRatio"`
	Variants       int            `json:"variants"`
	Mode           GenerationMode `json:"mode"`
}

// DefaultDraft - 빈 장면 하나, 첫 번째 스타일, 1:1, 1장
func DefaultDraft() PromptDraft {
	return PromptDraft{
		Scenes:      []string{""},
		Style:       VisualStyles[0],
		AspectRatio: AspectSquare,
		Variants:    1,
		Mode:        ModeSimple,
	}
}

// Validate - 장면 수, 변형 수, 비율, 스타일 검증
func (d PromptDraft) Validate() error {
	if len(d.Scenes) == 0 || len(d.Scenes) > MaxScenes {
		return fmt.Errorf("scenes must contain between 1 and %d entries", MaxScenes)
	}
	for i, scene := range d.Scenes {
		if utf8.RuneCountInString(scene) > MaxSceneLength {
			return fmt.Errorf("scene %d exceeds %d characters", i+1, MaxSceneLength)
		}
	}
	if d.Variants < MinVariants || d.Variants > MaxVariants {
		return fmt.Errorf("variants must be between %d and %d", MinVariants, MaxVariants)
	}
	if !d.AspectRatio.Valid() {
		return fmt.Errorf("invalid aspect ratio: %s", d.AspectRatio)
	}
	if _, ok := StyleByID(d.Style.ID); !ok {
		return fmt.Errorf("unknown style: %s", d.Style.ID)
	}
	if d.Mode != ModeSimple && d.Mode != ModePro {
		return fmt.Errorf("invalid mode: %s", d.Mode)
	}
	return nil
}

// Snapshot - 생성 시작 시점의 읽기 전용 복사본
func (d PromptDraft) Snapshot() PromptDraft {
	out := d
	out.Scenes = append([]string(nil), d.Scenes...)
	return out
}

// NonBlankScenes - 공백이 아닌 장면만 (순서 유지)
func (d PromptDraft) NonBlankScenes() []string {
	var out []string
	for _, s := range d.Scenes {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// AllScenesBlank - 모든 장면이 비어 있는지
func (d PromptDraft) AllScenesBlank() bool {
	return len(d.NonBlankScenes()) == 0
}

// CombinedPrompt - 비어 있지 않은 장면을 ". "로 연결
func (d PromptDraft) CombinedPrompt() string {
	return strings.Join(d.NonBlankScenes(), ". ")
}

// OptimizationResult - 최적화 결과 (점수는 단일 장면 + 변경된 경우에만)
type OptimizationResult struct {
	Original       string `json:"original"`
	Optimized      string `json:"optimized"`
	OriginalScore  *int   `json:"originalScore,omitempty"`
	OptimizedScore *int   `json:"optimizedScore,omitempty"`
}

// GeneratedAsset - 생성된 이미지 (생성 후 불변)
type GeneratedAsset struct {
	ID             string      `json:"id"`
	Type           string      `json:"type"`
	MediaURL       string      `json:"mediaUrl"`
	Prompt         string      `json:"prompt"`
	OriginalPrompt string      `json:"originalPrompt"`
	Style          string      `json:"style"`
	AspectRatio    AspectRatio `json:"aspectRatio"`
	NegativePrompt string      `json:"negativePrompt,omitempty"`
	Timestamp      int64       `json:"timestamp"`
	Engine         string      `json:"engine"`
}

// GalleryEntry - gallery 컬렉션에 저장되는 레코드
type GalleryEntry struct {
	GeneratedAsset
}

func (e GalleryEntry) RecordID() string       { return e.ID }
func (e GalleryEntry) RecordTimestamp() int64 { return e.Timestamp }

// ClassificationEntry - 공개 투표 컬렉션 레코드
type ClassificationEntry struct {
	GeneratedAsset
	Votes int `json:"votes"`
}

func (e ClassificationEntry) RecordID() string       { return e.ID }
func (e ClassificationEntry) RecordTimestamp() int64 { return e.Timestamp }

// PromptHistoryEntry - 프롬프트 히스토리 레코드
type PromptHistoryEntry struct {
	ID             string      `json:"id"`
	Scenes         []string    `json:"scenes"`
	NegativePrompt string      `json:"negativePrompt"`
	Style          VisualStyle `json:"style"`
	AspectRatio    AspectRatio `json:"aspectRatio"`
	Timestamp      int64       `json:"timestamp"`
}

func (e PromptHistoryEntry) RecordID() string       { return e.ID }
func (e PromptHistoryEntry) RecordTimestamp() int64 { return e.Timestamp }

// SameSettings - (scenes, negativePrompt, style.id, aspectRatio) 구조적 동일성
func (e PromptHistoryEntry) SameSettings(other PromptHistoryEntry) bool {
	if len(e.Scenes) != len(other.Scenes) {
		return false
	}
	for i := range e.Scenes {
		if e.Scenes[i] != other.Scenes[i] {
			return false
		}
	}
	return e.NegativePrompt == other.NegativePrompt &&
		e.Style.ID == other.Style.ID &&
		e.AspectRatio == other.AspectRatio
}
