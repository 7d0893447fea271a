package browser

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xpzouying/tistory-autopost/configs"
	"github.com/xpzouying/tistory-autopost/cookies"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// PoolConfig 共享浏览器的启动参数
type PoolConfig struct {
	Proxy       string
	Lang        string
	CookiesPath string
	// ProfileDir 非空时启动前清理其中残留的 SingletonLock
	ProfileDir string
}

// Pool 服务模式下共享的浏览器。
// 同一时间只借出一个页面，一次自动化运行独占该页面直到归还。
type Pool struct {
	cfg PoolConfig

	// sem 容量为 1，持有即独占页面
	sem chan struct{}

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func NewPool(cfg PoolConfig) *Pool {
	if cfg.Lang == "" {
		cfg.Lang = DefaultLang
	}
	return &Pool{cfg: cfg, sem: make(chan struct{}, 1)}
}

// Acquire 借出一个新的 stealth 页面，前一个页面归还前会阻塞。
// release 关闭页面并唤醒下一个等待者，必须调用。
func (p *Pool) Acquire(ctx context.Context) (*rod.Page, func(), error) {
	select {
	case p.sem <- struct{}{}:
	default:
		logrus.Info("浏览器正在使用中，等待释放...")
		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}

	p.mu.Lock()
	page, err := p.newPageLocked()
	p.mu.Unlock()
	if err != nil {
		<-p.sem
		return nil, nil, err
	}
	if err := PreparePage(page, p.cfg.Lang); err != nil {
		logrus.Warnf("设置页面环境失败: %v", err)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			if err := page.Close(); err != nil {
				logrus.Debugf("close page: %v", err)
			}
			<-p.sem
		})
	}
	return page, release, nil
}

func (p *Pool) newPageLocked() (*rod.Page, error) {
	if err := p.ensureBrowser(); err != nil {
		return nil, errors.Wrap(err, "获取浏览器失败")
	}

	page, err := stealth.Page(p.browser)
	if err == nil {
		return page, nil
	}

	// 浏览器可能已崩溃，重建
	logrus.Warnf("创建页面失败，尝试重建浏览器: %v", err)
	p.closeLocked()
	if err := p.ensureBrowser(); err != nil {
		return nil, errors.Wrap(err, "重建浏览器失败")
	}
	page, err = stealth.Page(p.browser)
	if err != nil {
		return nil, errors.Wrap(err, "重建后仍无法创建页面")
	}
	return page, nil
}

// ensureBrowser 必须在持有锁时调用
func (p *Pool) ensureBrowser() error {
	if p.browser != nil {
		_, err := p.browser.Version()
		if err == nil {
			return nil
		}
		logrus.Warnf("浏览器连接已断开: %v, 准备重建", err)
		p.closeLocked()
	}

	p.removeSingletonLock()

	l := p.newLauncher()
	u, err := l.Launch()
	if err != nil {
		return errors.Wrap(err, "启动浏览器失败")
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return errors.Wrap(err, "连接浏览器失败")
	}

	if err := p.loadCookies(b); err != nil {
		logrus.Warnf("加载 cookies 失败: %v", err)
	}

	p.browser = b
	p.launcher = l
	logrus.Info("全局浏览器实例已创建")
	return nil
}

func (p *Pool) newLauncher() *launcher.Launcher {
	l := launcher.New()
	switch configs.GetHeadlessMode() {
	case configs.HeadlessNew:
		l = l.HeadlessNew(true)
	case configs.HeadlessOld:
		l = l.Headless(true)
	default:
		l = l.Headless(false)
	}

	l = l.Set("no-sandbox").
		Set("lang", p.cfg.Lang).
		Set("user-agent", defaultUserAgent)

	if proxy := p.proxyURL(); proxy != "" {
		l = l.Proxy(proxy)
		logrus.Infof("Using proxy: %s", maskProxyCredentials(proxy))
	}
	if bin := configs.GetBinPath(); bin != "" {
		l = l.Bin(bin)
	}
	if p.cfg.ProfileDir != "" {
		l = l.UserDataDir(p.cfg.ProfileDir)
	}
	return l
}

func (p *Pool) proxyURL() string {
	if p.cfg.Proxy != "" {
		return p.cfg.Proxy
	}
	return os.Getenv(EnvProxy)
}

func (p *Pool) removeSingletonLock() {
	dir := p.cfg.ProfileDir
	if dir == "" {
		dir = os.Getenv("ROD_DIR")
	}
	if dir == "" {
		return
	}
	for _, lock := range []string{
		filepath.Join(dir, "SingletonLock"),
		filepath.Join(dir, "Default", "SingletonLock"),
	} {
		_ = os.Remove(lock)
	}
}

func (p *Pool) cookieStore() cookies.Cookier {
	path := p.cfg.CookiesPath
	if path == "" {
		path = cookies.GetCookiesFilePath()
	}
	return cookies.NewLoadCookie(path)
}

func (p *Pool) loadCookies(b *rod.Browser) error {
	data, err := p.cookieStore().LoadCookies()
	if err != nil {
		return err
	}
	params, err := DecodeCookies(data)
	if err != nil {
		return err
	}
	return b.SetCookies(params)
}

// SaveCookies 保存当前浏览器的 cookies，供下次启动复用登录状态
func (p *Pool) SaveCookies() error {
	p.mu.Lock()
	b := p.browser
	p.mu.Unlock()
	if b == nil {
		return errors.New("browser not started")
	}
	return SaveCookies(b, p.cfg.CookiesPath)
}

// Close 关闭共享浏览器
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

func (p *Pool) closeLocked() {
	if p.browser != nil {
		_ = p.browser.Close()
		p.browser = nil
	}
	if p.launcher != nil {
		p.launcher.Cleanup()
		p.launcher = nil
	}
}

// SaveCookies 把浏览器 cookies 写入文件，path 为空时使用默认路径
func SaveCookies(b *rod.Browser, path string) error {
	cks, err := b.GetCookies()
	if err != nil {
		return errors.Wrap(err, "get cookies")
	}
	data, err := json.Marshal(cks)
	if err != nil {
		return errors.Wrap(err, "marshal cookies")
	}
	if path == "" {
		path = cookies.GetCookiesFilePath()
	}
	return cookies.NewLoadCookie(path).SaveCookies(data)
}

// DecodeCookies 解析保存的 cookies 文件内容
func DecodeCookies(data []byte) ([]*proto.NetworkCookieParam, error) {
	var cks []*proto.NetworkCookie
	if err := json.Unmarshal(data, &cks); err != nil {
		return nil, errors.Wrap(err, "解析 cookies 失败")
	}
	return toNetworkCookieParams(cks), nil
}

func toNetworkCookieParams(cks []*proto.NetworkCookie) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(cks))
	for _, c := range cks {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
		}
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		params = append(params, p)
	}
	return params
}
