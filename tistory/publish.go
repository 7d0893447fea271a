package tistory

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/xpzouying/tistory-autopost/pkg/textutil"
)

// State 发布流程的状态
type State string

const (
	StateInit             State = "Init"
	StateLoggedIn         State = "LoggedIn"
	StateComposerOpen     State = "ComposerOpen"
	StateTitleSet         State = "TitleSet"
	StateModeSwitched     State = "ModeSwitched"
	StateContentInjected  State = "ContentInjected"
	StateMetaSet          State = "MetaSet"
	StateSubmitted        State = "Submitted"
	StatePublishConfirmed State = "PublishConfirmed"
	StateDone             State = "Done"
)

// 纯文本降级时补充的说明
const (
	fallbackNotice = "본 글은 자동으로 생성된 뉴스 요약입니다."
	fallbackMore   = "더 자세한 내용은 원문을 확인해주세요."
)

const jsScrollBottom = `() => { window.scrollTo(0, document.body.scrollHeight); return true; }`

// Publisher 驱动登录到发布的完整流程。同一个 Publisher 发布多篇时复用登录状态。
type Publisher struct {
	s         *Session
	login     *LoginAction
	nav       *NavigateAction
	mode      *ModeSwitch
	injector  *Injector
	retryOpts []RetryOption

	loggedIn bool
	trace    []State
}

func NewPublisher(s *Session, opts ...RetryOption) *Publisher {
	retryOpts := []RetryOption{
		OnRetry(func(operation string, _ uint, _ error) {
			s.Observer.StepRetried(operation)
		}),
	}
	return &Publisher{
		s:         s,
		login:     NewLogin(s),
		nav:       NewNavigate(s),
		mode:      NewModeSwitch(s),
		injector:  NewInjector(DefaultStrategies(s.Page, s.Resolver), s.Options.MinLength),
		retryOpts: append(retryOpts, opts...),
	}
}

// Publish 发布一篇文章。失败时返回 Aborted 结果，不会返回看起来成功的部分结果。
func (p *Publisher) Publish(ctx context.Context, creds Credentials, req PostRequest) Result {
	p.trace = nil
	p.enter(StateInit)

	if err := creds.Validate(); err != nil {
		return p.abort(ctx, StateInit, err)
	}
	if err := req.Validate(); err != nil {
		return p.abort(ctx, StateInit, err)
	}

	policies := p.s.Options.Retry

	// Init -> LoggedIn
	if p.loggedIn {
		logrus.Info("复用已登录的会话")
		p.enter(StateLoggedIn)
	} else {
		if err := p.step(ctx, StateLoggedIn, policies.Login, func(ctx context.Context) error {
			return p.login.Login(ctx, creds)
		}); err != nil {
			return p.abort(ctx, StateLoggedIn, err)
		}
		p.loggedIn = true
	}

	// LoggedIn -> ComposerOpen
	if err := p.step(ctx, StateComposerOpen, policies.Navigate, func(ctx context.Context) error {
		return p.nav.OpenComposer(ctx, creds)
	}); err != nil {
		return p.abort(ctx, StateComposerOpen, err)
	}

	// ComposerOpen -> TitleSet
	if err := p.step(ctx, StateTitleSet, singleAttempt(StateTitleSet), func(ctx context.Context) error {
		return p.nav.SetTitle(ctx, req.Title)
	}); err != nil {
		return p.abort(ctx, StateTitleSet, err)
	}

	// TitleSet -> ModeSwitched，失败不终止，降级为纯文本
	rawMode := true
	if err := p.step(ctx, StateModeSwitched, singleAttempt(StateModeSwitched), p.mode.SwitchToRawMode); err != nil {
		logrus.Warnf("切换 HTML 模式失败，改用纯文本: %v", err)
		rawMode = false
	}

	// -> ContentInjected
	var outcome InjectionOutcome
	htmlInjected := false
	if err := p.step(ctx, StateContentInjected, policies.Write, func(ctx context.Context) error {
		var err error
		outcome, htmlInjected, err = p.writeContent(ctx, req.BodyHTML, &rawMode)
		return err
	}); err != nil {
		return p.abort(ctx, StateContentInjected, err)
	}

	// -> MetaSet，尽力而为
	if req.Category != "" || len(req.Tags) > 0 {
		start := time.Now()
		p.s.setMeta(ctx, req.Category, req.Tags)
		p.s.Observer.StepFinished(string(StateMetaSet), time.Since(start), nil)
		p.enter(StateMetaSet)
	}

	// -> Submitted
	if err := p.step(ctx, StateSubmitted, policies.Publish, p.submit); err != nil {
		return p.abort(ctx, StateSubmitted, err)
	}

	// -> PublishConfirmed
	if err := p.step(ctx, StatePublishConfirmed, policies.Publish, p.confirm); err != nil {
		return p.abort(ctx, StatePublishConfirmed, err)
	}

	// -> Done
	u := p.s.currentURL(ctx)
	if strings.Contains(u, p.s.Options.Site.ComposerPath) {
		logrus.Warnf("发布后仍停留在写作页: %s", u)
	}
	p.enter(StateDone)
	logrus.Infof("发布完成: %s", u)

	return Result{
		Success:      true,
		URL:          u,
		Trace:        p.Trace(),
		HTMLInjected: htmlInjected,
		Strategy:     outcome.Strategy,
	}
}

// singleAttempt 不重试的步骤，日志和指标以状态名区分
func singleAttempt(state State) RetryPolicy {
	return RetryPolicy{OperationName: string(state), MaxAttempts: 1}
}

// Trace 本次发布依次经过的状态
func (p *Publisher) Trace() []State {
	return append([]State(nil), p.trace...)
}

func (p *Publisher) enter(state State) {
	p.trace = append(p.trace, state)
	logrus.WithField("step", state).Info("state reached")
}

// step 在重试包装下执行一个步骤，处理弹窗时的错误也算作该步骤失败
func (p *Publisher) step(ctx context.Context, state State, policy RetryPolicy, op func(context.Context) error) error {
	start := time.Now()
	logrus.WithField("step", state).Debug("step start")

	err := WithRetry(ctx, policy, func(ctx context.Context) error {
		if stale := p.s.Dialogs.TakeError(); stale != nil {
			logrus.Warnf("忽略之前的弹窗错误: %v", stale)
		}
		if err := op(ctx); err != nil {
			return err
		}
		return p.s.Dialogs.TakeError()
	}, p.retryOpts...)

	p.s.Observer.StepFinished(string(state), time.Since(start), err)
	if err != nil {
		return err
	}
	p.enter(state)
	return nil
}

func (p *Publisher) abort(ctx context.Context, step State, err error) Result {
	logrus.WithFields(logrus.Fields{
		"step": step,
		"kind": KindOf(err),
	}).Errorf("发布终止: %v", err)
	if !IsKind(err, KindPrecondition) {
		p.s.screenshot(ctx, string(step)+"-failure")
	}

	res := Aborted(step, err)
	res.Trace = p.Trace()
	return res
}

// writeContent HTML 模式下先写 HTML，校验不通过再降级为纯文本
func (p *Publisher) writeContent(ctx context.Context, html string, rawMode *bool) (InjectionOutcome, bool, error) {
	if *rawMode {
		out := p.injector.Inject(ctx, html)
		if out.OK {
			return out, true, nil
		}
		logrus.Warn("HTML 写入未通过校验，降级为纯文本")
		if err := p.mode.SwitchToVisualMode(ctx); err != nil {
			logrus.Warnf("切回可视模式失败，继续在当前模式写入: %v", err)
		} else {
			*rawMode = false
		}
	}

	out := p.injector.Inject(ctx, PlainTextBody(html, p.s.Options.MinLength))
	if out.OK {
		return out, false, nil
	}
	return out, false, newError(KindContent, "all injection strategies failed verification", nil)
}

// submit 点击发布按钮，候选都找不到时扫描页面上所有按钮
func (p *Publisher) submit(ctx context.Context) error {
	s := p.s

	btn, ok := s.Resolver.Resolve(ctx, "publish", submitCandidates)
	if !ok {
		btn, ok = p.scanPublishControl(ctx)
	}
	if !ok {
		return newError(KindPublish, "publish control not found", nil)
	}

	if err := btn.Click(ctx); err != nil {
		return newError(KindPublish, "click publish control", err)
	}
	sleep(ctx, s.timings().AfterClick)
	return nil
}

// confirm 处理发布后的确认层，可能还有一层最终确认
func (p *Publisher) confirm(ctx context.Context) error {
	s := p.s

	btn, ok := s.Resolver.Resolve(ctx, "publish confirm", confirmCandidates)
	if !ok {
		if s.Options.ConfirmPolicy == ConfirmStrict {
			return newError(KindPublish, "no publish confirmation observed", nil)
		}
		logrus.Warn("未找到发布确认按钮，可能已经直接发布")
		return nil
	}

	if err := btn.Click(ctx); err != nil {
		return newError(KindPublish, "click publish confirm", err)
	}
	s.settle(ctx)
	sleep(ctx, s.timings().PublishSettle)

	// 仍停留在写作页时检查是否还有一层确认
	if !strings.Contains(s.currentURL(ctx), s.Options.Site.ComposerPath) {
		return nil
	}
	if final, ok := s.Resolver.Resolve(ctx, "final publish", finalPublishCandidates); ok {
		logrus.Info("点击最终发布按钮")
		if err := final.Click(ctx); err != nil {
			return newError(KindPublish, "click final publish", err)
		}
		s.settle(ctx)
	}
	return nil
}

// scanPublishControl 滚动到底部后按文字优先级挑选按钮
func (p *Publisher) scanPublishControl(ctx context.Context) (Element, bool) {
	if _, err := p.s.Page.Eval(ctx, jsScrollBottom); err != nil {
		logrus.Debugf("scroll to bottom: %v", err)
	}

	elems, err := p.s.Page.Query(ctx, clickableSelector)
	if err != nil {
		logrus.Warnf("扫描按钮失败: %v", err)
		return nil, false
	}

	var best Element
	bestRank := 0
	for _, el := range elems {
		if visible, err := el.Visible(ctx); err != nil || !visible {
			continue
		}
		label, _ := el.Text(ctx)
		if strings.TrimSpace(label) == "" {
			label, _ = el.Attribute(ctx, "value")
		}
		id, _ := el.Attribute(ctx, "id")
		if rank := publishRank(label, id); rank > bestRank {
			best, bestRank = el, rank
		}
	}

	if best == nil {
		return nil, false
	}
	logrus.Infof("扫描到发布按钮，优先级 %d", bestRank)
	return best, true
}

// publishRank 保存 > 发布 > 发表/完成，0 表示不相关
func publishRank(label, id string) int {
	label = strings.ToLower(strings.TrimSpace(label))
	id = strings.ToLower(id)
	switch {
	case strings.Contains(label, "저장") || strings.Contains(label, "save") || strings.Contains(id, "save"):
		return 3
	case strings.Contains(label, "발행") || strings.Contains(label, "publish") || strings.Contains(id, "publish"):
		return 2
	case strings.Contains(label, "게시") || strings.Contains(label, "완료") || strings.Contains(label, "post") || strings.Contains(label, "done"):
		return 1
	}
	return 0
}

// PlainTextBody 去掉标签，内容过短时补充说明文字
func PlainTextBody(html string, minLength int) string {
	text := textutil.HTMLToText(html)
	if minLength <= 0 {
		minLength = MinVerifiedLength
	}
	if utf8.RuneCountInString(text) > minLength*2 {
		return text
	}

	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\n")
	b.WriteString(fallbackNotice)
	b.WriteString("\n\n")
	b.WriteString(strings.Repeat(fallbackMore+" ", 3))
	return strings.TrimSpace(b.String())
}
