package feed

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mmcdole/gofeed"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xpzouying/tistory-autopost/configs"
)

const (
	defaultCacheSize = 16
	defaultTimeout   = 10 * time.Second
	userAgent        = "tistory-autopost/1.0 (+rss)"
)

// Article 从订阅源中解析出的一篇文章
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description"`
	Content     string    `json:"content,omitempty"`
	Published   time.Time `json:"published"`
	ImageURL    string    `json:"image_url,omitempty"`
}

// ArticleID 链接摘要 base64 编码后的前 16 个字符，作为去重账本的键。
// 直接截取链接本身的编码会让同一站点的链接得到相同的 ID。
func ArticleID(link string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(link)))
	return base64.RawURLEncoding.EncodeToString(sum[:])[:16]
}

// Fetcher 拉取并解析 RSS/Atom，结果按 URL 缓存 CacheTTL
type Fetcher struct {
	parser *gofeed.Parser
	now    func() time.Time
	// cache 为 nil 表示不缓存
	cache *expirable.LRU[string, []Article]
}

func NewFetcher(cfg configs.FeedConfig) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return NewFetcherWithClient(&http.Client{Timeout: timeout}, cfg.CacheTTL)
}

// NewFetcherWithClient ttl<=0 时不缓存
func NewFetcherWithClient(client *http.Client, ttl time.Duration) *Fetcher {
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = userAgent

	f := &Fetcher{
		parser: parser,
		now:    time.Now,
	}
	if ttl > 0 {
		f.cache = expirable.NewLRU[string, []Article](defaultCacheSize, nil, ttl)
	}
	return f
}

// Fetch 返回订阅源中带标题和链接的文章，保持源中的顺序
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]Article, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("feed url is empty")
	}

	if articles, ok := f.cached(url); ok {
		logrus.WithField("url", url).Debug("feed cache hit")
		return articles, nil
	}

	parsed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "解析订阅源失败: %s", url)
	}

	articles := make([]Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if a, ok := toArticle(item, f.now()); ok {
			articles = append(articles, a)
		}
	}
	logrus.WithFields(logrus.Fields{
		"url":      url,
		"items":    len(parsed.Items),
		"articles": len(articles),
	}).Info("订阅源解析完成")

	f.store(url, articles)
	return articles, nil
}

// Invalidate 丢弃所有缓存
func (f *Fetcher) Invalidate() {
	if f.cache != nil {
		f.cache.Purge()
	}
}

func (f *Fetcher) cached(url string) ([]Article, bool) {
	if f.cache == nil {
		return nil, false
	}
	return f.cache.Get(url)
}

func (f *Fetcher) store(url string, articles []Article) {
	if f.cache != nil {
		f.cache.Add(url, articles)
	}
}

func toArticle(item *gofeed.Item, now time.Time) (Article, bool) {
	title := strings.TrimSpace(item.Title)
	link := strings.TrimSpace(item.Link)
	if title == "" || link == "" {
		return Article{}, false
	}

	published := now
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	return Article{
		ID:          ArticleID(link),
		Title:       title,
		Link:        link,
		Description: strings.TrimSpace(item.Description),
		Content:     strings.TrimSpace(item.Content),
		Published:   published,
		ImageURL:    imageURL(item),
	}, true
}

func imageURL(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}
