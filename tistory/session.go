package tistory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// 默认站点地址
const (
	DefaultLoginURL     = "https://www.tistory.com/auth/login"
	DefaultComposerPath = "/manage/newpost/"
)

var defaultLoginPattern = regexp.MustCompile(`(?i)(tistory\.com/auth/login|accounts\.kakao\.com/login|/login(\?|$|/))`)

// Site 目标站点的固定入口
type Site struct {
	LoginURL     string
	LoginPattern *regexp.Regexp
	ComposerPath string
}

func DefaultSite() Site {
	return Site{
		LoginURL:     DefaultLoginURL,
		LoginPattern: defaultLoginPattern,
		ComposerPath: DefaultComposerPath,
	}
}

// IsLoginURL 判断当前地址是否仍在登录页
func (s Site) IsLoginURL(u string) bool {
	pattern := s.LoginPattern
	if pattern == nil {
		pattern = defaultLoginPattern
	}
	return pattern.MatchString(u)
}

// Timings 各步骤之间的等待时间，全部为 0 时不做任何等待
type Timings struct {
	Settle            time.Duration `mapstructure:"settle" yaml:"settle"`
	MenuOpen          time.Duration `mapstructure:"menu_open" yaml:"menu_open"`
	ModeSettle        time.Duration `mapstructure:"mode_settle" yaml:"mode_settle"`
	AfterClick        time.Duration `mapstructure:"after_click" yaml:"after_click"`
	PublishSettle     time.Duration `mapstructure:"publish_settle" yaml:"publish_settle"`
	Keystroke         time.Duration `mapstructure:"keystroke" yaml:"keystroke"`
	TagCommit         time.Duration `mapstructure:"tag_commit" yaml:"tag_commit"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	LoginTimeout      time.Duration `mapstructure:"login_timeout" yaml:"login_timeout"`
}

func DefaultTimings() Timings {
	return Timings{
		Settle:            2 * time.Second,
		MenuOpen:          2 * time.Second,
		ModeSettle:        3 * time.Second,
		AfterClick:        1 * time.Second,
		PublishSettle:     3 * time.Second,
		Keystroke:         100 * time.Millisecond,
		TagCommit:         300 * time.Millisecond,
		NavigationTimeout: 30 * time.Second,
		LoginTimeout:      15 * time.Second,
	}
}

// ConfirmPolicy 找不到发布确认按钮时的处理方式
type ConfirmPolicy string

const (
	// ConfirmOptimistic 记录警告并视为成功
	ConfirmOptimistic ConfirmPolicy = "optimistic"
	// ConfirmStrict 视为 PublishError
	ConfirmStrict ConfirmPolicy = "strict"
)

// Options 会话级配置
type Options struct {
	Site          Site
	Timings       Timings
	Retry         RetryPolicies
	MinLength     int
	ConfirmPolicy ConfirmPolicy
	ScreenshotDir string
	Dialogs       DialogPolicy
	Resolver      []ResolverOption
	Observer      Observer
}

func DefaultOptions() Options {
	return Options{
		Site:          DefaultSite(),
		Timings:       DefaultTimings(),
		Retry:         DefaultRetryPolicies(),
		MinLength:     MinVerifiedLength,
		ConfirmPolicy: ConfirmOptimistic,
		Dialogs:       DefaultDialogPolicy(),
	}
}

// Observer 接收步骤、重试和选择器查找事件，用于指标统计
type Observer interface {
	StepFinished(step string, d time.Duration, err error)
	StepRetried(operation string)
	SelectorResolved(purpose string, found bool)
}

type nopObserver struct{}

func (nopObserver) StepFinished(string, time.Duration, error) {}
func (nopObserver) StepRetried(string)                        {}
func (nopObserver) SelectorResolved(string, bool)             {}

// Session 一次自动化运行独占的页面及其组件，显式传给每个组件。
type Session struct {
	Page     Page
	Resolver *Resolver
	Dialogs  *DialogInterceptor
	Options  Options
	Observer Observer
}

// NewSession 创建会话并在任何导航之前安装弹窗处理器
func NewSession(ctx context.Context, page Page, opts Options) (*Session, error) {
	if opts.Site.LoginURL == "" {
		opts.Site = DefaultSite()
	}
	if opts.MinLength <= 0 {
		opts.MinLength = MinVerifiedLength
	}
	if opts.ConfirmPolicy == "" {
		opts.ConfirmPolicy = ConfirmOptimistic
	}

	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	resolverOpts := append([]ResolverOption{
		WithLookupObserver(func(purpose string, _ SelectorCandidate, found bool) {
			observer.SelectorResolved(purpose, found)
		}),
	}, opts.Resolver...)

	s := &Session{
		Page:     page,
		Resolver: NewResolver(page, resolverOpts...),
		Dialogs:  NewDialogInterceptor(opts.Dialogs),
		Options:  opts,
		Observer: observer,
	}

	if err := s.Dialogs.Install(ctx, page); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) timings() Timings {
	return s.Options.Timings
}

// currentURL 读取失败时返回空字符串
func (s *Session) currentURL(ctx context.Context) string {
	u, err := s.Page.URL(ctx)
	if err != nil {
		logrus.Warnf("读取当前 URL 失败: %v", err)
		return ""
	}
	return u
}

// navigate 导航并等待页面稳定，稳定超时不算失败
func (s *Session) navigate(ctx context.Context, url string) error {
	logrus.Infof("打开页面: %s", url)
	if err := s.Page.Navigate(ctx, url); err != nil {
		return newError(KindNavigation, fmt.Sprintf("navigate to %s", url), err)
	}
	s.settle(ctx)
	return nil
}

func (s *Session) settle(ctx context.Context) {
	if err := s.Page.WaitSettle(ctx, s.timings().NavigationTimeout); err != nil {
		logrus.Debugf("wait settle: %v", err)
	}
	sleep(ctx, s.timings().Settle)
}

// screenshot 失败截图，尽力而为
func (s *Session) screenshot(ctx context.Context, name string) {
	dir := s.Options.ScreenshotDir
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		logrus.Warnf("创建截图目录失败: %v", err)
		return
	}

	file := fmt.Sprintf("%s-%s.png", time.Now().Format("20060102-150405"), strings.ToLower(name))
	path := filepath.Join(dir, file)
	if err := s.Page.Screenshot(ctx, path); err != nil {
		logrus.Warnf("截图失败: %v", err)
		return
	}
	logrus.Infof("已保存截图: %s", path)
}

// dismissPopups 关闭不可预期的页面内弹窗，找不到关闭按钮时按 Esc
func (s *Session) dismissPopups(ctx context.Context) {
	if !s.Resolver.Exists(ctx, popupCandidates) {
		return
	}

	logrus.Info("检测到弹窗，尝试关闭")
	if btn, ok := s.Resolver.Resolve(ctx, "popup close", popupCloseCandidates); ok {
		if err := btn.Click(ctx); err == nil {
			sleep(ctx, s.timings().AfterClick)
			return
		}
	}
	if err := s.Page.Press(ctx, escapeKey); err != nil {
		logrus.Debugf("press escape: %v", err)
	}
}
