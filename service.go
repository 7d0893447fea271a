package main

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-rod/rod"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xpzouying/tistory-autopost/browser"
	"github.com/xpzouying/tistory-autopost/configs"
	"github.com/xpzouying/tistory-autopost/content"
	"github.com/xpzouying/tistory-autopost/cookies"
	"github.com/xpzouying/tistory-autopost/feed"
	"github.com/xpzouying/tistory-autopost/pkg/downloader"
	"github.com/xpzouying/tistory-autopost/pkg/metrics"
	"github.com/xpzouying/tistory-autopost/runner"
	"github.com/xpzouying/tistory-autopost/tistory"
)

// TistoryService 发布服务，CLI 和 HTTP/MCP 共用
type TistoryService struct {
	cfg        *configs.Config
	configPath string
	// pool 服务模式下共享浏览器，CLI 模式为 nil，每次发布启动独立浏览器
	pool    *browser.Pool
	metrics *metrics.Metrics
	webhook *WebhookSender

	runnerOnce sync.Once
	runner     *runner.Runner
	runnerErr  error
}

type ServiceOption func(*TistoryService)

// WithPool 使用共享浏览器
func WithPool(p *browser.Pool) ServiceOption {
	return func(s *TistoryService) {
		s.pool = p
	}
}

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *TistoryService) {
		s.metrics = m
	}
}

// WithConfigPath 隔离模式下传给子进程的配置文件
func WithConfigPath(path string) ServiceOption {
	return func(s *TistoryService) {
		s.configPath = path
	}
}

// NewTistoryService 创建服务实例
func NewTistoryService(cfg *configs.Config, opts ...ServiceOption) *TistoryService {
	s := &TistoryService{
		cfg:     cfg,
		webhook: NewWebhookSender(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TistoryService) cookiesPath() string {
	if s.cfg.Browser.CookiesPath != "" {
		return s.cfg.Browser.CookiesPath
	}
	return cookies.GetCookiesFilePath()
}

// withPage 借出或启动浏览器页面执行 fn，结束后归还
func (s *TistoryService) withPage(ctx context.Context, fn func(*rod.Page) error) error {
	if s.pool != nil {
		page, release, err := s.pool.Acquire(ctx)
		if err != nil {
			return err
		}
		defer release()
		return fn(page)
	}

	b := browser.NewBrowser(configs.IsHeadless(),
		browser.WithBinPath(configs.GetBinPath()),
		browser.WithProxy(s.cfg.Browser.Proxy),
		browser.WithCookiesPath(s.cookiesPath()),
	)
	defer b.Close()

	page := b.NewPage()
	defer page.Close()

	if err := browser.PreparePage(page, s.cfg.Browser.Lang); err != nil {
		logrus.Warnf("设置页面环境失败: %v", err)
	}
	return fn(page)
}

func (s *TistoryService) newSession(ctx context.Context, page *rod.Page) (*tistory.Session, error) {
	opts := s.cfg.SessionOptions()
	if s.metrics != nil {
		opts.Observer = s.metrics
	}
	return tistory.NewSession(ctx, tistory.NewRodPage(page), opts)
}

func (s *TistoryService) saveCookies(page *rod.Page) {
	var err error
	if s.pool != nil {
		err = s.pool.SaveCookies()
	} else {
		err = browser.SaveCookies(page.Browser(), s.cookiesPath())
	}
	if err != nil {
		logrus.Errorf("failed to save cookies: %v", err)
	}
}

// Post 登录并发布一篇文章。凭证和请求在启动浏览器之前校验。
func (s *TistoryService) Post(ctx context.Context, req tistory.PostRequest) tistory.Result {
	creds := s.cfg.TistoryCredentials()
	if err := creds.Validate(); err != nil {
		return tistory.Aborted(tistory.StateInit, err)
	}
	if err := req.Validate(); err != nil {
		return tistory.Aborted(tistory.StateInit, err)
	}

	var res tistory.Result
	err := s.withPage(ctx, func(page *rod.Page) error {
		sess, err := s.newSession(ctx, page)
		if err != nil {
			return err
		}
		res = tistory.NewPublisher(sess).Publish(ctx, creds, req)
		if res.Success {
			s.saveCookies(page)
		}
		return nil
	})
	if err != nil {
		return tistory.Aborted(tistory.StateInit, errors.Wrap(err, "prepare browser"))
	}

	if res.Success {
		logrus.Infof("发布成功: %s -> %s", req.Title, res.URL)
	} else {
		logrus.Errorf("发布失败: title=%s %v", req.Title, res.Err())
	}
	return res
}

// CheckLoginStatus 检查登录状态，未登录时不会尝试登录
func (s *TistoryService) CheckLoginStatus(ctx context.Context) (*LoginStatusResponse, error) {
	creds := s.cfg.TistoryCredentials()
	if creds.BaseURL == "" {
		return nil, errors.Errorf("%s is not set", tistory.EnvBlogAddress)
	}

	var loggedIn bool
	err := s.withPage(ctx, func(page *rod.Page) error {
		sess, err := s.newSession(ctx, page)
		if err != nil {
			return err
		}
		loggedIn, err = tistory.NewLogin(sess).CheckLoginStatus(ctx, creds)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &LoginStatusResponse{
		IsLoggedIn: loggedIn,
		Blog:       creds.BlogURL(),
		Username:   creds.LoginID,
	}, nil
}

// Login 执行登录并保存 cookies，后续运行复用登录状态
func (s *TistoryService) Login(ctx context.Context) error {
	creds := s.cfg.TistoryCredentials()
	if err := creds.Validate(); err != nil {
		return err
	}

	return s.withPage(ctx, func(page *rod.Page) error {
		sess, err := s.newSession(ctx, page)
		if err != nil {
			return err
		}
		if err := tistory.NewLogin(sess).Login(ctx, creds); err != nil {
			return err
		}
		s.saveCookies(page)
		return nil
	})
}

// DeleteCookies 删除 cookies 文件，用于登录重置
func (s *TistoryService) DeleteCookies(ctx context.Context) error {
	return cookies.NewLoadCookie(s.cookiesPath()).DeleteCookies()
}

// PublishContent 发布一篇文章并按需发送 webhook
func (s *TistoryService) PublishContent(ctx context.Context, req *PublishRequest) (*PublishResponse, error) {
	res := s.Post(ctx, req.PostRequest())

	response := &PublishResponse{
		Title:    req.Title,
		Status:   runner.StatusPublished,
		URL:      res.URL,
		Strategy: res.Strategy,
		Failure:  res.Failure,
		Trace:    res.Trace,
	}
	event := EventPostPublished
	if !res.Success {
		response.Status = runner.StatusFailed
		event = EventPostFailed
	}

	webhookURL := req.Webhook
	if webhookURL == "" {
		webhookURL = s.cfg.Webhook.URL
	}
	if webhookURL != "" {
		s.webhook.SendAsync(webhookURL, WebhookPayload{Event: event, Data: response})
	}

	if !res.Success {
		return response, res.Err()
	}
	return response, nil
}

// Runner 按配置构建订阅源运行器，整个进程共用一个，保证同一时间只有一次运行
func (s *TistoryService) Runner() (*runner.Runner, error) {
	s.runnerOnce.Do(func() {
		s.runner, s.runnerErr = s.buildRunner()
	})
	return s.runner, s.runnerErr
}

func (s *TistoryService) buildRunner() (*runner.Runner, error) {
	cfg := s.cfg

	completer, err := content.NewCompleter(cfg.AI)
	if err != nil {
		return nil, err
	}
	var improver *content.Improver
	if completer != nil {
		improver = content.NewImprover(completer, cfg.AI, cfg.Content.DefaultTags)
	}
	builder := content.NewBuilder(cfg.Content, improver,
		content.WithImageProbe(downloader.NewImageProbe(&http.Client{Timeout: cfg.Feed.Timeout})),
	)

	var poster runner.Poster = s
	if cfg.Runner.Isolate {
		poster = &runner.ProcessPoster{BaseArgs: s.childArgs()}
	}

	return runner.New(runner.Config{
		FeedURL:     cfg.Feed.URL,
		MaxArticles: cfg.Feed.MaxArticlesPerRun,
		Interval:    cfg.Feed.IntervalBetweenPosts,
		DryRun:      cfg.Runner.DryRun,
		LedgerPath:  cfg.Ledger.Path,
	}, feed.NewFetcher(cfg.Feed), builder, poster,
		runner.WithMetrics(s.metrics),
		runner.WithHook(newWebhookHook(s.webhook, cfg.Webhook.URL)),
	), nil
}

// childArgs 子进程沿用当前进程的配置
func (s *TistoryService) childArgs() []string {
	var args []string
	if s.configPath != "" {
		args = append(args, "--config", s.configPath)
	}
	args = append(args, "--headless-mode", string(configs.GetHeadlessMode()))
	if bin := configs.GetBinPath(); bin != "" {
		args = append(args, "--bin", bin)
	}
	return args
}

// RunFeed 处理一次订阅源
func (s *TistoryService) RunFeed(ctx context.Context) (*runner.Summary, error) {
	if s.cfg.Feed.URL == "" {
		return nil, errors.New("feed.url is not set")
	}
	r, err := s.Runner()
	if err != nil {
		return nil, err
	}
	return r.RunOnce(ctx)
}

// Close 关闭共享浏览器
func (s *TistoryService) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
