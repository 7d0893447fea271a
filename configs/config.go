package configs

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xpzouying/tistory-autopost/tistory"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigName 配置文件名（不含扩展名）
	ConfigName = "tistory-autopost"
	// EnvPrefix 环境变量前缀，例如 AUTOPOST_FEED_URL
	EnvPrefix = "AUTOPOST"
)

// Config 全部配置
type Config struct {
	Credentials CredentialsConfig     `mapstructure:"credentials" yaml:"-"`
	Browser     BrowserConfig         `mapstructure:"browser" yaml:"browser"`
	Timings     tistory.Timings       `mapstructure:"timings" yaml:"timings"`
	Retry       tistory.RetryPolicies `mapstructure:"retry" yaml:"retry"`
	Automation  AutomationConfig      `mapstructure:"automation" yaml:"automation"`
	Feed        FeedConfig            `mapstructure:"feed" yaml:"feed"`
	Content     ContentConfig         `mapstructure:"content" yaml:"content"`
	AI          AIConfig              `mapstructure:"ai" yaml:"ai"`
	Schedule    ScheduleConfig        `mapstructure:"schedule" yaml:"schedule"`
	Runner      RunnerConfig          `mapstructure:"runner" yaml:"runner"`
	Ledger      LedgerConfig          `mapstructure:"ledger" yaml:"ledger"`
	Server      ServerConfig          `mapstructure:"server" yaml:"server"`
	Webhook     WebhookConfig         `mapstructure:"webhook" yaml:"webhook"`
	Log         LogConfig             `mapstructure:"log" yaml:"log"`
}

// CredentialsConfig 只从环境变量读取，不会写入配置文件
type CredentialsConfig struct {
	LoginID     string `mapstructure:"login_id"`
	Password    string `mapstructure:"password"`
	BlogAddress string `mapstructure:"blog_address"`
}

type BrowserConfig struct {
	Headless    string `mapstructure:"headless" yaml:"headless"`
	Bin         string `mapstructure:"bin" yaml:"bin"`
	Proxy       string `mapstructure:"proxy" yaml:"proxy"`
	Lang        string `mapstructure:"lang" yaml:"lang"`
	CookiesPath string `mapstructure:"cookies_path" yaml:"cookies_path"`
}

type AutomationConfig struct {
	MinContentLength     int    `mapstructure:"min_content_length" yaml:"min_content_length"`
	PublishConfirmPolicy string `mapstructure:"publish_confirm_policy" yaml:"publish_confirm_policy"`
	ScreenshotDir        string `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
}

type FeedConfig struct {
	URL                  string        `mapstructure:"url" yaml:"url"`
	Timeout              time.Duration `mapstructure:"timeout" yaml:"timeout"`
	CacheTTL             time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	MaxArticlesPerRun    int           `mapstructure:"max_articles_per_run" yaml:"max_articles_per_run"`
	IntervalBetweenPosts time.Duration `mapstructure:"interval_between_posts" yaml:"interval_between_posts"`
}

type ContentConfig struct {
	Template         string   `mapstructure:"template" yaml:"template"`
	RemoveMediaNames bool     `mapstructure:"remove_media_names" yaml:"remove_media_names"`
	DefaultCategory  string   `mapstructure:"default_category" yaml:"default_category"`
	DefaultTags      []string `mapstructure:"default_tags" yaml:"default_tags"`
	MinLength        int      `mapstructure:"min_length" yaml:"min_length"`
	MaxLength        int      `mapstructure:"max_length" yaml:"max_length"`
	MaxTitleWidth    int      `mapstructure:"max_title_width" yaml:"max_title_width"`
}

type AIConfig struct {
	// Provider openai / anthropic / none
	Provider       string  `mapstructure:"provider" yaml:"provider"`
	Model          string  `mapstructure:"model" yaml:"model"`
	APIKey         string  `mapstructure:"api_key" yaml:"-"`
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url"`
	MaxTokens      int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature    float64 `mapstructure:"temperature" yaml:"temperature"`
	ImproveTitle   bool    `mapstructure:"improve_title" yaml:"improve_title"`
	ImproveContent bool    `mapstructure:"improve_content" yaml:"improve_content"`
	GenerateTags   bool    `mapstructure:"generate_tags" yaml:"generate_tags"`
}

type ScheduleConfig struct {
	Type       string `mapstructure:"type" yaml:"type"`
	CustomCron string `mapstructure:"custom_cron" yaml:"custom_cron"`
}

type RunnerConfig struct {
	// Isolate 每篇文章在独立子进程中发布
	Isolate bool `mapstructure:"isolate" yaml:"isolate"`
	DryRun  bool `mapstructure:"dry_run" yaml:"dry_run"`
}

type LedgerConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type ServerConfig struct {
	Port string `mapstructure:"port" yaml:"port"`
}

type WebhookConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// AI 服务提供方
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"
)

// Default 默认配置
func Default() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:    string(HeadlessNew),
			Lang:        "ko-KR",
			CookiesPath: "tistory_cookies.json",
		},
		Timings: tistory.DefaultTimings(),
		Retry:   tistory.DefaultRetryPolicies(),
		Automation: AutomationConfig{
			MinContentLength:     tistory.MinVerifiedLength,
			PublishConfirmPolicy: string(tistory.ConfirmOptimistic),
			ScreenshotDir:        "screenshots",
		},
		Feed: FeedConfig{
			Timeout:              10 * time.Second,
			CacheTTL:             5 * time.Minute,
			MaxArticlesPerRun:    3,
			IntervalBetweenPosts: 30 * time.Second,
		},
		Content: ContentConfig{
			Template:         "rich",
			RemoveMediaNames: true,
			DefaultCategory:  "뉴스",
			DefaultTags:      []string{"구글뉴스", "자동포스팅", "뉴스"},
			MinLength:        50,
			MaxLength:        2000,
			MaxTitleWidth:    100,
		},
		AI: AIConfig{
			Provider:       ProviderNone,
			Model:          "gpt-3.5-turbo",
			MaxTokens:      1000,
			Temperature:    0.7,
			ImproveTitle:   true,
			ImproveContent: true,
			GenerateTags:   true,
		},
		Schedule: ScheduleConfig{
			Type:       "manual",
			CustomCron: "0 9,13,18 * * *",
		},
		Ledger: LedgerConfig{Path: "processed_articles.json"},
		Server: ServerConfig{Port: ":18070"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// 固定名称的环境变量，优先于 AUTOPOST_ 前缀
var envBindings = map[string][]string{
	"credentials.login_id":     {tistory.EnvLoginID},
	"credentials.password":     {tistory.EnvPassword},
	"credentials.blog_address": {tistory.EnvBlogAddress},
	"browser.bin":              {"AUTOPOST_BROWSER_BIN", "ROD_BROWSER_BIN"},
	"browser.proxy":            {"AUTOPOST_BROWSER_PROXY", "TISTORY_PROXY"},
	"browser.cookies_path":     {"AUTOPOST_BROWSER_COOKIES_PATH", "COOKIES_PATH"},
	"feed.url":                 {"AUTOPOST_FEED_URL", "RSS_FEED_URL"},
	"ai.api_key":               {"AUTOPOST_AI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY"},
}

// FlagBinding 命令行参数到配置项的绑定，参数显式设置时覆盖文件和环境变量
type FlagBinding struct {
	Key  string
	Flag *pflag.Flag
}

// Load 依次叠加默认值、配置文件、环境变量和命令行参数。
// path 为空时在当前目录和 $HOME/.config/tistory-autopost 中查找，找不到不算错误。
func Load(path string, flags ...FlagBinding) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	base, err := yaml.Marshal(Default())
	if err != nil {
		return nil, errors.Wrap(err, "marshal default config")
	}
	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return nil, errors.Wrap(err, "read default config")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("$HOME", ".config", ConfigName))
	}
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config file")
		}
		logrus.Debug("未找到配置文件，使用默认配置")
	} else {
		logrus.Infof("使用配置文件: %s", v.ConfigFileUsed())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, errors.Wrapf(err, "bind env %s", key)
		}
	}

	for _, b := range flags {
		if b.Flag == nil || !b.Flag.Changed {
			continue
		}
		if err := v.BindPFlag(b.Key, b.Flag); err != nil {
			return nil, errors.Wrapf(err, "bind flag %s", b.Flag.Name)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查取值范围，凭证在真正发布时才检查
func (c *Config) Validate() error {
	switch HeadlessMode(c.Browser.Headless) {
	case HeadlessNew, HeadlessOld, HeadlessOff:
	default:
		return errors.Errorf("browser.headless must be one of new/true/false, got %q", c.Browser.Headless)
	}

	switch tistory.ConfirmPolicy(c.Automation.PublishConfirmPolicy) {
	case tistory.ConfirmOptimistic, tistory.ConfirmStrict:
	default:
		return errors.Errorf("automation.publish_confirm_policy must be optimistic or strict, got %q", c.Automation.PublishConfirmPolicy)
	}

	switch c.AI.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderNone, "":
	default:
		return errors.Errorf("ai.provider must be openai, anthropic or none, got %q", c.AI.Provider)
	}

	if c.Feed.MaxArticlesPerRun < 1 {
		return errors.New("feed.max_articles_per_run must be at least 1")
	}
	if c.Content.MaxLength > 0 && c.Content.MinLength > c.Content.MaxLength {
		return errors.Errorf("content.min_length (%d) exceeds content.max_length (%d)", c.Content.MinLength, c.Content.MaxLength)
	}
	return nil
}

// TistoryCredentials 转为自动化使用的凭证
func (c *Config) TistoryCredentials() tistory.Credentials {
	return tistory.Credentials{
		LoginID:  c.Credentials.LoginID,
		Password: c.Credentials.Password,
		BaseURL:  c.Credentials.BlogAddress,
	}
}

// SessionOptions 转为自动化会话配置
func (c *Config) SessionOptions() tistory.Options {
	opts := tistory.DefaultOptions()
	opts.Timings = c.Timings
	opts.Retry = c.Retry
	opts.MinLength = c.Automation.MinContentLength
	opts.ConfirmPolicy = tistory.ConfirmPolicy(c.Automation.PublishConfirmPolicy)
	opts.ScreenshotDir = c.Automation.ScreenshotDir
	return opts
}

// Apply 把浏览器相关配置写入全局设置
func (c *Config) Apply() {
	InitHeadlessMode(c.Browser.Headless)
	SetBinPath(c.Browser.Bin)
	SetupLogging(c.Log)
}

const defaultFileHeader = `# tistory-autopost 配置
# 凭证只从环境变量读取: TISTORY_ID / TISTORY_PW / BLOG_ADDRESS
# 其他配置项都可以用 AUTOPOST_ 前缀的环境变量覆盖，例如 AUTOPOST_FEED_URL
`

// WriteDefault 写出默认配置文件，文件已存在且未指定 force 时返回错误
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errors.Errorf("%s already exists", path)
		}
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return errors.Wrap(err, "marshal default config")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "create config dir")
		}
	}
	return os.WriteFile(path, append([]byte(defaultFileHeader), data...), 0644)
}

// SetupLogging 设置日志级别和格式
func SetupLogging(c LogConfig) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(c.Format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}
