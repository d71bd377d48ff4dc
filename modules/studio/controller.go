package studio

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"escena-studio/modules/common/logger"
	"escena-studio/modules/common/metrics"
	"escena-studio/modules/common/model"
	"escena-studio/modules/coordinator"
	"escena-studio/modules/engine"
)

// DefaultCooldown - 쿼터 초과 후 재요청 차단 시간
const DefaultCooldown = 60 * time.Second

// DefaultHandoffURL - 쿼터 초과 시 안내하는 제공자 웹 UI
const DefaultHandoffURL = "https://gemini.google.com/app"

// Generator - 엔진 체인 (coordinator.Coordinator)
type Generator interface {
	Generate(ctx context.Context, req coordinator.Request, onStatus coordinator.StatusFunc) ([]model.GeneratedAsset, error)
}

// Library - 갤러리/히스토리 저장소 (gallery.Manager)
type Library interface {
	Save(ctx context.Context, asset model.GeneratedAsset) (bool, error)
	SaveHistory(ctx context.Context, draft model.PromptDraft) (bool, error)
	HistoryEntry(ctx context.Context, id string) (model.PromptHistoryEntry, error)
}

// Dependencies - 컨트롤러 협력 객체. 비어 있는 값은 기본값 사용
type Dependencies struct {
	Prompter   engine.Prompter
	Generator  Generator
	Library    Library
	// Clipboard - 기본값은 서버 호스트의 클립보드. 헤드리스 호스트에서는 항상 실패하므로
	// 클라이언트는 스냅샷의 lastPrompt를 직접 복사함
	Clipboard  func(text string) error
	Metrics    *metrics.Recorder
	Logger     *logrus.Entry
	Now        func() time.Time
	Cooldown   time.Duration
	HandoffURL string
}

// Choice - prompt_selection에서 사용자가 고른 프롬프트
type Choice string

const (
	ChooseOriginal  Choice = "original"
	ChooseOptimized Choice = "optimized"
)

// ProgressInfo - 생성 진행 상황
type ProgressInfo struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Snapshot - UI가 다시 그리는 데 필요한 전체 상태
type Snapshot struct {
	Session         string                    `json:"session"`
	Phase           Phase                     `json:"phase"`
	Draft           model.PromptDraft         `json:"draft"`
	Optimization    *model.OptimizationResult `json:"optimization,omitempty"`
	Results         []model.GeneratedAsset    `json:"results"`
	Status          string                    `json:"status,omitempty"`
	Progress        *ProgressInfo             `json:"progress,omitempty"`
	Error           string                    `json:"error,omitempty"`
	ErrorKind       engine.ErrorKind          `json:"errorKind,omitempty"`
	LastPrompt      string                    `json:"lastPrompt,omitempty"`
	CooldownUntil   int64                     `json:"cooldownUntil,omitempty"`
	CooldownSeconds int                       `json:"cooldownSeconds,omitempty"`
	HandoffURL      string                    `json:"handoffUrl,omitempty"`
	Copied          bool                      `json:"copied,omitempty"`
}

// Controller - 세션 하나의 프롬프트 라이프사이클
// 상태는 mu로 보호하고 제공자 호출은 잠금 밖에서 실행
type Controller struct {
	id   string
	deps Dependencies
	log  *logrus.Entry

	mu            sync.Mutex
	state         State
	draft         model.PromptDraft
	optimization  *model.OptimizationResult
	results       []model.GeneratedAsset
	status        string
	lastPrompt    string
	cooldownUntil time.Time
	epoch         uint64
	lastActive    time.Time
	subs          map[int]chan Snapshot
	nextSub       int

	inflight sync.WaitGroup
}

// New - idle 상태의 컨트롤러 생성
func New(id string, deps Dependencies) *Controller {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Cooldown <= 0 {
		deps.Cooldown = DefaultCooldown
	}
	if deps.Clipboard == nil {
		deps.Clipboard = clipboard.WriteAll
	}
	if deps.HandoffURL == "" {
		deps.HandoffURL = DefaultHandoffURL
	}
	if deps.Logger == nil {
		deps.Logger = logger.WithModule("Studio")
	}

	return &Controller{
		id:         id,
		deps:       deps,
		log:        deps.Logger.WithField("session", id),
		state:      Idle{},
		draft:      model.DefaultDraft(),
		lastActive: deps.Now(),
		subs:       make(map[int]chan Snapshot),
	}
}

func (c *Controller) ID() string {
	return c.id
}

// Snapshot - 현재 상태 복사본
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe - 상태가 바뀔 때마다 스냅샷 수신. 느린 구독자는 중간 스냅샷을 놓칠 수 있음
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Snapshot, 16)
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// Close - 모든 구독 종료 (세션 제거 시)
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

// Wait - 비동기로 시작한 단계가 모두 끝날 때까지 대기
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// Busy - 최적화 또는 생성 진행 중
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busyLocked()
}

// LastActive - 마지막 사용자 동작 시각
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// UpdateDraft - 폼 설정 변경 (스타일은 id로 카탈로그에서 찾음)
func (c *Controller) UpdateDraft(d model.PromptDraft) error {
	if style, ok := model.StyleByID(d.Style.ID); ok {
		d.Style = style
	}
	if d.Mode == "" {
		d.Mode = model.ModeSimple
	}
	if err := d.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()
	c.draft = d.Snapshot()
	c.publishLocked()
	return nil
}

// Submit - 제출하고 다음 대기 지점(prompt_selection, success, error)까지 실행
func (c *Controller) Submit(ctx context.Context) error {
	run, err := c.beginSubmit()
	if err != nil || run == nil {
		return err
	}
	run(ctx)
	return nil
}

// SubmitAsync - 검증만 동기로 하고 나머지는 백그라운드 실행
func (c *Controller) SubmitAsync(ctx context.Context) error {
	run, err := c.beginSubmit()
	if err != nil || run == nil {
		return err
	}
	c.goRun(ctx, run)
	return nil
}

// Choose - prompt_selection에서 프롬프트를 골라 생성까지 실행
func (c *Controller) Choose(ctx context.Context, choice Choice) error {
	run, err := c.beginChoose(choice)
	if err != nil {
		return err
	}
	run(ctx)
	return nil
}

func (c *Controller) ChooseAsync(ctx context.Context, choice Choice) error {
	run, err := c.beginChoose(choice)
	if err != nil {
		return err
	}
	c.goRun(ctx, run)
	return nil
}

// Reset - idle로 복귀. 초안과 쿨다운은 유지, 진행 중인 결과는 버려짐
func (c *Controller) Reset() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.touchLocked()
	_ = c.transitionLocked(Reset{})
	c.epoch++
	c.clearTransientLocked()
	c.publishLocked()
	return c.snapshotLocked()
}

// Handoff - 쿼터 에러에서 마지막 프롬프트를 복사하고 web_handoff로 전이
// 복사 실패는 로그만 남기고 진행
func (c *Controller) Handoff(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	c.touchLocked()
	failed, ok := c.state.(Failed)
	if !ok || failed.Kind != engine.KindQuotaExceeded {
		phase := c.state.Phase()
		c.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: handoff from %s", ErrInvalidTransition, phase)
	}
	prompt := c.lastPrompt
	epoch := c.epoch
	c.mu.Unlock()

	copied := proceedRegardless(c.log, "clipboard copy", func() error {
		return c.deps.Clipboard(prompt)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return Snapshot{}, fmt.Errorf("%w: session was reset during handoff", ErrInvalidTransition)
	}
	if err := c.transitionLocked(Handoff{Prompt: prompt, URL: c.deps.HandoffURL, Copied: copied}); err != nil {
		return Snapshot{}, err
	}
	c.log.Infof("🌐 Handing off to %s (copied=%v)", c.deps.HandoffURL, copied)
	c.publishLocked()
	return c.snapshotLocked(), nil
}

// AnalyzeImage - 업로드 이미지를 설명하는 프롬프트를 만들어 단일 장면으로 설정
func (c *Controller) AnalyzeImage(ctx context.Context, img engine.Image) (string, error) {
	c.mu.Lock()
	c.touchLocked()
	if c.busyLocked() {
		phase := c.state.Phase()
		c.mu.Unlock()
		return "", fmt.Errorf("%w: analyze during %s", ErrInvalidTransition, phase)
	}
	c.mu.Unlock()

	description, err := c.deps.Prompter.AnalyzeImage(ctx, img)
	if err != nil {
		c.log.Errorf("❌ Image analysis failed: %v", err)
		return "", err
	}
	description = strings.TrimSpace(description)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.Scenes = []string{description}
	c.draft.Mode = model.ModeSimple
	c.publishLocked()
	return description, nil
}

// UseHistoryEntry - 히스토리 항목의 설정을 초안으로 복원
func (c *Controller) UseHistoryEntry(ctx context.Context, id string) error {
	entry, err := c.deps.Library.HistoryEntry(ctx, id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	d := c.draft.Snapshot()
	c.mu.Unlock()

	d.Scenes = append([]string(nil), entry.Scenes...)
	if len(d.Scenes) == 0 {
		d.Scenes = []string{""}
	}
	d.NegativePrompt = entry.NegativePrompt
	d.Style = entry.Style
	d.AspectRatio = entry.AspectRatio
	d.Mode = model.ModeSimple
	if len(d.Scenes) > 1 || strings.TrimSpace(d.NegativePrompt) != "" {
		d.Mode = model.ModePro
	}
	return c.UpdateDraft(d)
}

func (c *Controller) goRun(ctx context.Context, run func(context.Context)) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		run(context.WithoutCancel(ctx))
	}()
}

// beginSubmit - 가드 확인 후 optimizing으로 전이. 모든 장면이 공백이면 nil, nil
func (c *Controller) beginSubmit() (func(context.Context), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()

	draft := c.draft.Snapshot()
	if draft.AllScenesBlank() {
		return nil, nil
	}
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	if c.cooldownRemainingLocked() > 0 {
		return nil, ErrCoolingDown
	}

	original := draft.CombinedPrompt()
	if err := c.transitionLocked(Submit{Original: original}); err != nil {
		return nil, err
	}
	c.epoch++
	epoch := c.epoch
	c.clearTransientLocked()
	c.lastPrompt = original
	c.status = "Optimizing prompt..."
	c.publishLocked()

	return func(ctx context.Context) {
		c.runSubmission(ctx, epoch, draft)
	}, nil
}

func (c *Controller) beginChoose(choice Choice) (func(context.Context), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()

	sel, ok := c.state.(PromptSelection)
	if !ok {
		return nil, fmt.Errorf("%w: choose from %s", ErrInvalidTransition, c.state.Phase())
	}

	var prompt string
	switch choice {
	case ChooseOriginal:
		prompt = sel.Original()
	case ChooseOptimized:
		prompt = sel.Optimized()
	default:
		return nil, fmt.Errorf("%w: unknown choice %q", ErrInvalidTransition, choice)
	}

	if err := c.transitionLocked(Generate{Total: 1}); err != nil {
		return nil, err
	}
	epoch := c.epoch
	draft := c.draft.Snapshot()
	original := sel.Original()
	c.lastPrompt = prompt
	c.publishLocked()

	return func(ctx context.Context) {
		c.generateSingle(ctx, epoch, draft, original, prompt)
	}, nil
}

func (c *Controller) runSubmission(ctx context.Context, epoch uint64, draft model.PromptDraft) {
	if _, err := c.deps.Library.SaveHistory(ctx, draft); err != nil {
		c.log.Warnf("⚠️ Failed to save prompt history: %v", err)
	}

	scenes := draft.NonBlankScenes()
	if len(scenes) == 1 && draft.Mode != model.ModePro {
		c.runSingle(ctx, epoch, draft, scenes[0])
		return
	}
	c.runMulti(ctx, epoch, draft, scenes)
}

// runSingle - 최적화 후 동일하면 바로 생성, 다르면 두 프롬프트를 동시에 평가
func (c *Controller) runSingle(ctx context.Context, epoch uint64, draft model.PromptDraft, original string) {
	c.log.Infof("✨ Optimizing single prompt (%d chars)", len(original))
	optimized, err := c.deps.Prompter.OptimizePrompt(ctx, []string{original}, draft.NegativePrompt)
	if err != nil {
		c.fail(epoch, err)
		return
	}
	optimized = strings.TrimSpace(optimized)
	if optimized == "" {
		optimized = original
	}

	if strings.EqualFold(optimized, strings.TrimSpace(original)) {
		ok := c.update(epoch, func() error {
			c.optimization = &model.OptimizationResult{Original: original, Optimized: optimized}
			c.lastPrompt = optimized
			return c.transitionLocked(Generate{Total: 1})
		})
		if ok {
			c.generateSingle(ctx, epoch, draft, original, optimized)
		}
		return
	}

	c.setStatus(epoch, "Rating prompts...")
	var originalScore, optimizedScore int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		originalScore, err = c.rate(gctx, original)
		return err
	})
	g.Go(func() error {
		var err error
		optimizedScore, err = c.rate(gctx, optimized)
		return err
	})
	if err := g.Wait(); err != nil {
		c.fail(epoch, err)
		return
	}

	selection, err := NewPromptSelection(original, optimized, originalScore, optimizedScore)
	if err != nil {
		c.fail(epoch, engine.Malformed("prompter", "rate", "%v", err))
		return
	}
	c.update(epoch, func() error {
		c.optimization = &model.OptimizationResult{
			Original:       original,
			Optimized:      optimized,
			OriginalScore:  &originalScore,
			OptimizedScore: &optimizedScore,
		}
		c.lastPrompt = optimized
		c.status = ""
		return c.transitionLocked(Scored{Selection: selection})
	})
}

// runMulti - 장면별 동시 최적화 후 장면별 순차 생성. 에셋은 완료 즉시 저장
func (c *Controller) runMulti(ctx context.Context, epoch uint64, draft model.PromptDraft, scenes []string) {
	c.log.Infof("✨ Optimizing %d scene(s)", len(scenes))
	optimized := make([]string, len(scenes))
	g, gctx := errgroup.WithContext(ctx)
	for i, scene := range scenes {
		g.Go(func() error {
			out, err := c.deps.Prompter.OptimizePrompt(gctx, []string{scene}, draft.NegativePrompt)
			if err != nil {
				return err
			}
			if out = strings.TrimSpace(out); out == "" {
				out = scene
			}
			optimized[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.fail(epoch, err)
		return
	}

	ok := c.update(epoch, func() error {
		c.optimization = &model.OptimizationResult{
			Original:  draft.CombinedPrompt(),
			Optimized: strings.Join(optimized, ". "),
		}
		return c.transitionLocked(Generate{Total: len(optimized)})
	})
	if !ok {
		return
	}

	for i, prompt := range optimized {
		ok := c.update(epoch, func() error {
			c.lastPrompt = prompt
			c.status = fmt.Sprintf("Generating scene %d of %d...", i+1, len(optimized))
			return nil
		})
		if !ok {
			return
		}

		assets, err := c.deps.Generator.Generate(ctx, coordinator.Request{
			Settings:       settingsFor(draft, prompt),
			OriginalPrompt: scenes[i],
		}, c.statusFunc(epoch))
		if err != nil {
			c.fail(epoch, err)
			return
		}
		c.persist(ctx, assets)

		if !c.update(epoch, func() error {
			c.results = append(c.results, assets...)
			return c.transitionLocked(Progress{})
		}) {
			return
		}
	}

	c.update(epoch, func() error {
		c.status = ""
		return c.transitionLocked(Complete{})
	})
}

func (c *Controller) generateSingle(ctx context.Context, epoch uint64, draft model.PromptDraft, original, prompt string) {
	c.setStatus(epoch, "Using prompt: "+truncate(prompt, 100))

	assets, err := c.deps.Generator.Generate(ctx, coordinator.Request{
		Settings:       settingsFor(draft, prompt),
		OriginalPrompt: original,
	}, c.statusFunc(epoch))
	if err != nil {
		c.fail(epoch, err)
		return
	}
	c.persist(ctx, assets)

	c.update(epoch, func() error {
		c.results = append(c.results, assets...)
		if err := c.transitionLocked(Progress{}); err != nil {
			return err
		}
		c.status = ""
		return c.transitionLocked(Complete{})
	})
}

// rate - 해석할 수 없는 점수는 중립값(50)
func (c *Controller) rate(ctx context.Context, prompt string) (int, error) {
	score, err := c.deps.Prompter.RatePrompt(ctx, prompt)
	if err != nil && engine.KindOf(err) == engine.KindMalformedResponse {
		c.log.Warnf("⚠️ Unparseable rating, using neutral score %d: %v", engine.NeutralScore, err)
	}
	return engine.ScoreOrNeutral(score, err)
}

// persist - 세션이 리셋되었더라도 생성된 에셋은 저장
func (c *Controller) persist(ctx context.Context, assets []model.GeneratedAsset) {
	for _, asset := range assets {
		if _, err := c.deps.Library.Save(ctx, asset); err != nil {
			c.log.Errorf("❌ Failed to save asset %s: %v", asset.ID, err)
		}
	}
}

// fail - 쿼터 에러면 쿨다운 기록 (리셋 여부와 무관)
func (c *Controller) fail(epoch uint64, err error) {
	kind := engine.KindOf(err)
	c.log.WithField("kind", kind).Errorf("❌ Lifecycle step failed: %v", err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if kind == engine.KindQuotaExceeded {
		c.cooldownUntil = c.deps.Now().Add(c.deps.Cooldown)
	}
	if c.epoch != epoch {
		c.publishLocked()
		return
	}
	c.status = ""
	if terr := c.transitionLocked(Fail{Err: err}); terr != nil {
		c.log.Warnf("⚠️ %v", terr)
	}
	c.publishLocked()
}

// update - epoch가 현재와 같을 때만 fn 적용 후 발행
func (c *Controller) update(epoch uint64, fn func() error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		c.log.Debug("🗑️ Discarding result of a reset submission")
		return false
	}
	if err := fn(); err != nil {
		c.log.Warnf("⚠️ %v", err)
		return false
	}
	c.publishLocked()
	return true
}

func (c *Controller) setStatus(epoch uint64, msg string) {
	c.update(epoch, func() error {
		c.status = msg
		return nil
	})
}

func (c *Controller) statusFunc(epoch uint64) coordinator.StatusFunc {
	return func(msg string) { c.setStatus(epoch, msg) }
}

func (c *Controller) transitionLocked(ev Event) error {
	next, err := Transition(c.state, ev)
	if err != nil {
		return err
	}
	if next.Phase() != c.state.Phase() {
		c.deps.Metrics.LifecycleTransition(string(next.Phase()))
	}
	c.state = next
	return nil
}

func (c *Controller) clearTransientLocked() {
	c.optimization = nil
	c.results = nil
	c.status = ""
	c.lastPrompt = ""
}

func (c *Controller) busyLocked() bool {
	switch c.state.(type) {
	case Optimizing, Generating:
		return true
	}
	return false
}

func (c *Controller) touchLocked() {
	c.lastActive = c.deps.Now()
}

func (c *Controller) cooldownRemainingLocked() time.Duration {
	if c.cooldownUntil.IsZero() {
		return 0
	}
	remaining := c.cooldownUntil.Sub(c.deps.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (c *Controller) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			c.log.Debug("🐢 Subscriber is behind, dropping snapshot")
		}
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Session:    c.id,
		Phase:      c.state.Phase(),
		Draft:      c.draft.Snapshot(),
		Results:    append([]model.GeneratedAsset{}, c.results...),
		Status:     c.status,
		LastPrompt: c.lastPrompt,
	}
	if c.optimization != nil {
		opt := *c.optimization
		snap.Optimization = &opt
	}

	switch s := c.state.(type) {
	case Generating:
		snap.Progress = &ProgressInfo{Done: s.Done, Total: s.Total}
	case Failed:
		snap.Error = s.Err.Error()
		snap.ErrorKind = s.Kind
	case WebHandoff:
		snap.HandoffURL = s.URL
		snap.Copied = s.Copied
		snap.LastPrompt = s.Prompt
	}

	if remaining := c.cooldownRemainingLocked(); remaining > 0 {
		snap.CooldownUntil = c.cooldownUntil.UnixMilli()
		snap.CooldownSeconds = int((remaining + time.Second - 1) / time.Second)
	}
	return snap
}

// proceedRegardless - 부수 효과 단계 실행. 실패는 경고 로그만 남기고 성공 여부 반환
func proceedRegardless(log *logrus.Entry, step string, fn func() error) bool {
	if err := fn(); err != nil {
		log.Warnf("⚠️ %s failed, continuing: %v", step, err)
		return false
	}
	return true
}

func settingsFor(draft model.PromptDraft, prompt string) engine.Settings {
	return engine.Settings{
		Prompt:         prompt,
		Style:          draft.Style,
		AspectRatio:    draft.AspectRatio,
		NegativePrompt: draft.NegativePrompt,
		Variants:       draft.Variants,
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
