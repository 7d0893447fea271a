package browser

import (
	"net/url"
	"os"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xpzouying/headless_browser"
	"github.com/xpzouying/tistory-autopost/cookies"
)

// EnvProxy 代理地址的环境变量
const EnvProxy = "TISTORY_PROXY"

// 页面视口
const (
	ViewportWidth  = 1280
	ViewportHeight = 960
)

const DefaultLang = "ko-KR"

type browserConfig struct {
	binPath     string
	proxy       string
	cookiesPath string
}

type Option func(*browserConfig)

func WithBinPath(binPath string) Option {
	return func(c *browserConfig) {
		c.binPath = binPath
	}
}

// WithProxy 为空时读取 TISTORY_PROXY
func WithProxy(proxy string) Option {
	return func(c *browserConfig) {
		c.proxy = proxy
	}
}

// WithCookiesPath 指定启动时加载的 cookies 文件
func WithCookiesPath(path string) Option {
	return func(c *browserConfig) {
		c.cookiesPath = path
	}
}

// maskProxyCredentials masks username and password in proxy URL for safe logging.
func maskProxyCredentials(proxyURL string) string {
	u, err := url.Parse(proxyURL)
	if err != nil || u.User == nil {
		return proxyURL
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword("***", "***")
	} else {
		u.User = url.User("***")
	}
	return u.String()
}

func (c *browserConfig) proxyURL() string {
	if c.proxy != "" {
		return c.proxy
	}
	return os.Getenv(EnvProxy)
}

// NewBrowser 创建一次性使用的浏览器，用于单次发布
func NewBrowser(headless bool, options ...Option) *headless_browser.Browser {
	cfg := &browserConfig{}
	for _, opt := range options {
		opt(cfg)
	}

	opts := []headless_browser.Option{
		headless_browser.WithHeadless(headless),
	}
	if cfg.binPath != "" {
		opts = append(opts, headless_browser.WithChromeBinPath(cfg.binPath))
	}

	if proxy := cfg.proxyURL(); proxy != "" {
		opts = append(opts, headless_browser.WithProxy(proxy))
		logrus.Infof("Using proxy: %s", maskProxyCredentials(proxy))
	}

	cookiePath := cfg.cookiesPath
	if cookiePath == "" {
		cookiePath = cookies.GetCookiesFilePath()
	}
	if data, err := cookies.NewLoadCookie(cookiePath).LoadCookies(); err == nil {
		opts = append(opts, headless_browser.WithCookies(string(data)))
		logrus.WithField("cookies_path", cookiePath).Debug("loaded cookies from file successfully")
	} else {
		logrus.WithField("cookies_path", cookiePath).Debugf("no cookies loaded: %v", err)
	}

	return headless_browser.New(opts...)
}

// PreparePage 设置语言请求头和视口，登录页和编辑器按韩语环境渲染
func PreparePage(page *rod.Page, lang string) error {
	if lang == "" {
		lang = DefaultLang
	}
	if _, err := page.SetExtraHeaders([]string{"Accept-Language", lang}); err != nil {
		return errors.Wrap(err, "set accept-language")
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             ViewportWidth,
		Height:            ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return errors.Wrap(err, "set viewport")
	}
	return nil
}
