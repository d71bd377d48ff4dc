package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"escena-studio/modules/common/logger"
	"escena-studio/modules/common/metrics"
	"escena-studio/modules/common/model"
	"escena-studio/modules/common/utils"
	"escena-studio/modules/engine"
)

// ErrNoEngines - 엔진 체인이 비어 있음
var ErrNoEngines = errors.New("no generation engines configured")

// Request - 최종 프롬프트 + 생성 설정
type Request struct {
	Settings       engine.Settings
	OriginalPrompt string
}

// StatusFunc - 일시적(비치명) 상태 메시지 수신
type StatusFunc func(message string)

// ExhaustedError - 모든 엔진 실패 (엔진별 에러 집계)
type ExhaustedError struct {
	primary engine.ErrorKind
	errs    *multierror.Error
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.errs.Errors))
	for _, err := range e.errs.Errors {
		parts = append(parts, err.Error())
	}
	return "all generation engines failed: " + strings.Join(parts, "; ")
}

// Kind - 1순위 엔진의 실패 분류
func (e *ExhaustedError) Kind() engine.ErrorKind {
	return e.primary
}

// Errors - 시도 순서대로의 엔진별 에러
func (e *ExhaustedError) Errors() []error {
	return append([]error(nil), e.errs.Errors...)
}

func (e *ExhaustedError) Unwrap() error {
	return e.errs.ErrorOrNil()
}

// Coordinator - 우선순위 순서로 엔진을 하나씩 시도
type Coordinator struct {
	engines     []engine.ImageGenerator
	metrics     *metrics.Recorder
	log         *logrus.Entry
	now         func() time.Time
	newID       func() string
	webpQuality float32
}

// Option - Coordinator 옵션
type Option func(*Coordinator)

func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func WithLogger(entry *logrus.Entry) Option {
	return func(c *Coordinator) { c.log = entry }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithIDs(newID func() string) Option {
	return func(c *Coordinator) { c.newID = newID }
}

// WithWebPQuality - 0보다 크면 결과 이미지를 WebP로 재인코딩
func WithWebPQuality(quality float32) Option {
	return func(c *Coordinator) { c.webpQuality = quality }
}

// New - 엔진 체인 구성 (순서 = 우선순위)
func New(engines []engine.ImageGenerator, opts ...Option) *Coordinator {
	c := &Coordinator{
		engines: append([]engine.ImageGenerator(nil), engines...),
		log:     logger.WithModule("Coordinator"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Engines - 체인의 엔진 이름 (우선순위 순)
func (c *Coordinator) Engines() []string {
	names := make([]string, len(c.engines))
	for i, e := range c.engines {
		names[i] = e.Name()
	}
	return names
}

// Generate - 엔진을 순차 시도. 성공한 엔진 이름이 모든 에셋에 기록됨
// 전부 실패하면 *ExhaustedError, 부분 결과는 반환하지 않음
func (c *Coordinator) Generate(ctx context.Context, req Request, onStatus StatusFunc) ([]model.GeneratedAsset, error) {
	if len(c.engines) == 0 {
		return nil, ErrNoEngines
	}

	var failures *multierror.Error
	var primaryKind engine.ErrorKind

	for i, gen := range c.engines {
		name := gen.Name()
		if err := ctx.Err(); err != nil {
			failures = multierror.Append(failures, err)
			break
		}

		c.log.Infof("🎨 Generating %d image(s) with %s", req.Settings.Variants, name)
		started := c.now()
		images, err := gen.GenerateImages(ctx, req.Settings)
		if err == nil {
			err = engine.CheckBatch(name, images, req.Settings.Variants)
		}

		if err == nil {
			c.metrics.EngineAttempt(name, "success", c.now().Sub(started))
			c.log.Infof("✅ %s produced %d image(s)", name, len(images))
			return c.assets(req, name, images), nil
		}

		err = engine.Classify(name, "generate", err)
		c.metrics.EngineAttempt(name, string(engine.KindOf(err)), c.now().Sub(started))
		failures = multierror.Append(failures, err)
		if i == 0 {
			primaryKind = engine.KindOf(err)
		}

		if i+1 < len(c.engines) {
			next := c.engines[i+1].Name()
			c.log.Warnf("⚠️ %s failed, trying %s: %v", name, next, err)
			c.metrics.EngineFallback(name, next)
			if onStatus != nil {
				onStatus(fmt.Sprintf("%s failed. Trying %s...", name, next))
			}
		}
	}

	exhausted := &ExhaustedError{primary: primaryKind, errs: failures}
	if primaryKind == "" {
		exhausted.primary = engine.KindOf(failures)
	}
	c.log.Errorf("❌ %v", exhausted)
	return nil, exhausted
}

func (c *Coordinator) assets(req Request, engineName string, images []engine.Image) []model.GeneratedAsset {
	ts := c.now().UnixMilli()
	out := make([]model.GeneratedAsset, 0, len(images))
	for _, img := range images {
		out = append(out, model.GeneratedAsset{
			ID:             c.newID(),
			Type:           model.AssetTypeImage,
			MediaURL:       c.mediaURL(img),
			Prompt:         req.Settings.Prompt,
			OriginalPrompt: req.OriginalPrompt,
			Style:          req.Settings.Style.Name,
			AspectRatio:    req.Settings.AspectRatio,
			NegativePrompt: req.Settings.NegativePrompt,
			Timestamp:      ts,
			Engine:         engineName,
		})
	}
	return out
}

func (c *Coordinator) mediaURL(img engine.Image) string {
	if c.webpQuality > 0 {
		compressed, err := utils.CompressToWebP(img.Data, c.webpQuality)
		if err == nil {
			return utils.DataURI("image/webp", compressed)
		}
		c.log.Warnf("⚠️ WebP compression failed, keeping original: %v", err)
	}
	return utils.DataURI(img.MIMEType, img.Data)
}
