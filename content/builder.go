package content

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xpzouying/tistory-autopost/configs"
	"github.com/xpzouying/tistory-autopost/feed"
	"github.com/xpzouying/tistory-autopost/pkg/downloader"
	"github.com/xpzouying/tistory-autopost/pkg/textutil"
	"github.com/xpzouying/tistory-autopost/tistory"
)

// ErrTooShort 改写后的正文短于最小长度，文章应被跳过
var ErrTooShort = errors.New("content too short")

// Post 待发布的文章及其来源
type Post struct {
	ArticleID string              `json:"article_id"`
	Link      string              `json:"link"`
	Template  string              `json:"template"`
	Request   tistory.PostRequest `json:"request"`
}

// Builder 把订阅源文章转换为发布请求
type Builder struct {
	cfg       configs.ContentConfig
	improver  *Improver
	probe     *downloader.ImageProbe
	converter *md.Converter
	now       func() time.Time
}

type BuilderOption func(*Builder)

// WithImageProbe 校验封面图，探测失败的图片不会放入正文
func WithImageProbe(p *downloader.ImageProbe) BuilderOption {
	return func(b *Builder) {
		b.probe = p
	}
}

func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.now = now
	}
}

func NewBuilder(cfg configs.ContentConfig, improver *Improver, opts ...BuilderOption) *Builder {
	if improver == nil {
		improver = NewImprover(nil, configs.AIConfig{}, cfg.DefaultTags)
	}
	b := &Builder{
		cfg:       cfg,
		improver:  improver,
		converter: md.NewConverter("", true, nil),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build 清理标题、AI 改写、校验长度并渲染模板
func (b *Builder) Build(ctx context.Context, a feed.Article) (*Post, error) {
	title := a.Title
	if b.cfg.RemoveMediaNames {
		title = CleanTitle(title)
	}

	improved := b.improver.Improve(ctx, title, b.sourceText(a))

	if n := utf8.RuneCountInString(improved.Body); n < b.cfg.MinLength {
		return nil, errors.Wrapf(ErrTooShort, "%d < %d", n, b.cfg.MinLength)
	}
	body := truncateRunes(improved.Body, b.cfg.MaxLength)

	tmpl := b.cfg.Template
	if !IsTemplate(tmpl) {
		logrus.Warnf("未知模板 %q，使用 plain", tmpl)
		tmpl = TemplatePlain
	}

	data := TemplateData{
		Title:     textutil.TruncateTitle(improved.Title, b.cfg.MaxTitleWidth),
		Link:      a.Link,
		Body:      body,
		ImageURL:  b.coverImage(ctx, a.ImageURL),
		Published: a.Published,
		PostedAt:  b.now(),
	}
	data.Description = b.description(a.Description, tmpl)
	if strings.TrimSpace(data.Description) == strings.TrimSpace(body) {
		data.Description = ""
	}

	html, err := Render(tmpl, data)
	if err != nil {
		return nil, err
	}

	return &Post{
		ArticleID: a.ID,
		Link:      a.Link,
		Template:  tmpl,
		Request: tistory.PostRequest{
			Title:    data.Title,
			BodyHTML: html,
			Category: b.cfg.DefaultCategory,
			Tags:     improved.Tags,
		},
	}, nil
}

// sourceText 正文优先使用 content:encoded，没有时用描述
func (b *Builder) sourceText(a feed.Article) string {
	text := textutil.HTMLToText(a.Description)
	if full := textutil.HTMLToText(a.Content); utf8.RuneCountInString(full) > utf8.RuneCountInString(text) {
		text = full
	}
	return text
}

func (b *Builder) description(html, tmpl string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	if tmpl == TemplatePlain {
		markdown, err := b.converter.ConvertString(html)
		if err == nil {
			return strings.TrimSpace(markdown)
		}
		logrus.Debugf("convert description to markdown: %v", err)
	}
	return textutil.HTMLToText(html)
}

func (b *Builder) coverImage(ctx context.Context, imageURL string) string {
	if imageURL == "" {
		return ""
	}
	if b.probe == nil {
		if downloader.IsImageURL(imageURL) {
			return imageURL
		}
		return ""
	}
	info, err := b.probe.Probe(ctx, imageURL)
	if err != nil {
		logrus.Debugf("封面图不可用 %s: %v", imageURL, err)
		return ""
	}
	return info.URL
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max])) + "..."
}
