package runner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xpzouying/tistory-autopost/content"
	"github.com/xpzouying/tistory-autopost/feed"
	"github.com/xpzouying/tistory-autopost/ledger"
	"github.com/xpzouying/tistory-autopost/pkg/metrics"
	"github.com/xpzouying/tistory-autopost/pkg/textutil"
	"github.com/xpzouying/tistory-autopost/tistory"
)

// ErrAlreadyRunning 上一次运行尚未结束
var ErrAlreadyRunning = errors.New("a feed run is already in progress")

// 单篇文章的处理状态
const (
	StatusPublished = "published"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
	StatusDryRun    = "dry_run"
)

// Source 拉取订阅源
type Source interface {
	Fetch(ctx context.Context, url string) ([]feed.Article, error)
}

// Builder 把文章转换成发布请求
type Builder interface {
	Build(ctx context.Context, a feed.Article) (*content.Post, error)
}

// Poster 发布一篇文章
type Poster interface {
	Post(ctx context.Context, req tistory.PostRequest) tistory.Result
}

// Hook 每篇文章处理完成后回调
type Hook interface {
	OnItem(runID string, item Item)
}

// Config 一次运行的参数
type Config struct {
	FeedURL     string
	MaxArticles int
	Interval    time.Duration
	DryRun      bool
	LedgerPath  string
}

// Item 单篇文章的处理结果
type Item struct {
	ArticleID string          `json:"article_id"`
	Title     string          `json:"title"`
	Link      string          `json:"link"`
	Status    string          `json:"status"`
	URL       string          `json:"url,omitempty"`
	Error     string          `json:"error,omitempty"`
	Result    *tistory.Result `json:"result,omitempty"`
}

// Summary 一次运行的汇总
type Summary struct {
	RunID     string    `json:"run_id"`
	Found     int       `json:"found"`
	New       int       `json:"new"`
	Published int       `json:"published"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	DryRun    int       `json:"dry_run"`
	Items     []Item    `json:"items"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}

// Runner 执行 拉取 → 过滤 → 改写 → 渲染 → 发布 → 记录
type Runner struct {
	cfg     Config
	source  Source
	builder Builder
	poster  Poster
	metrics *metrics.Metrics
	hooks   []Hook
	sleep   func(ctx context.Context, d time.Duration)

	running sync.Mutex
}

type Option func(*Runner)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

func WithHook(h Hook) Option {
	return func(r *Runner) {
		if h != nil {
			r.hooks = append(r.hooks, h)
		}
	}
}

func New(cfg Config, source Source, builder Builder, poster Poster, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		source:  source,
		builder: builder,
		poster:  poster,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Running 是否有运行正在进行
func (r *Runner) Running() bool {
	if r.running.TryLock() {
		r.running.Unlock()
		return false
	}
	return true
}

// RunOnce 处理一批新文章。发布失败的文章不记录，下次运行会重试。
func (r *Runner) RunOnce(ctx context.Context) (summary *Summary, err error) {
	if !r.running.TryLock() {
		return nil, ErrAlreadyRunning
	}
	defer r.running.Unlock()

	start := time.Now()
	summary = &Summary{RunID: uuid.NewString(), StartedAt: start}
	log := logrus.WithField("run_id", summary.RunID)

	done := r.metrics.RunStarted()
	defer func() {
		summary.Duration = time.Since(start).Round(time.Millisecond).String()
		done(err)
	}()

	log.Infof("开始处理订阅源: %s", r.cfg.FeedURL)
	articles, err := r.source.Fetch(ctx, r.cfg.FeedURL)
	if err != nil {
		return summary, errors.Wrap(err, "fetch feed")
	}
	summary.Found = len(articles)

	l, err := ledger.Open(r.cfg.LedgerPath)
	if err != nil {
		return summary, err
	}

	fresh := newArticles(articles, l, r.cfg.MaxArticles)
	summary.New = len(fresh)
	log.Infof("共 %d 篇文章，新文章 %d 篇", summary.Found, summary.New)

	for i, a := range fresh {
		if ctx.Err() != nil {
			log.Warn("运行被取消，停止处理剩余文章")
			break
		}

		log.Infof("处理中 (%d/%d): %s", i+1, len(fresh), a.Title)
		item := r.process(ctx, log, a)
		summary.add(item)
		r.metrics.RecordPost(item.Status)
		for _, h := range r.hooks {
			h.OnItem(summary.RunID, item)
		}

		if item.Status != StatusPublished {
			continue
		}
		l.Add(a.ID)
		if err := l.Save(); err != nil {
			log.Errorf("保存处理记录失败: %v", err)
		}

		if i < len(fresh)-1 && r.cfg.Interval > 0 {
			log.Infof("等待 %s 后发布下一篇", r.cfg.Interval)
			r.sleep(ctx, r.cfg.Interval)
		}
	}

	if err := l.Save(); err != nil {
		return summary, err
	}
	log.Infof("运行结束: 发布 %d, 失败 %d, 跳过 %d", summary.Published, summary.Failed, summary.Skipped)
	return summary, ctx.Err()
}

func (r *Runner) process(ctx context.Context, log *logrus.Entry, a feed.Article) Item {
	item := Item{ArticleID: a.ID, Title: a.Title, Link: a.Link}

	post, err := r.builder.Build(ctx, a)
	if errors.Is(err, content.ErrTooShort) {
		log.Warnf("内容太短，跳过: %v", err)
		item.Status = StatusSkipped
		item.Error = err.Error()
		return item
	}
	if err != nil {
		log.Errorf("生成文章失败: %v", err)
		item.Status = StatusFailed
		item.Error = err.Error()
		return item
	}
	item.Title = post.Request.Title

	log.WithFields(logrus.Fields{
		"title":    post.Request.Title,
		"length":   len(post.Request.BodyHTML),
		"tags":     post.Request.Tags,
		"template": post.Template,
	}).Info("内容准备完成")

	if r.cfg.DryRun {
		log.Infof("演练模式，不实际发布。预览: %s", textutil.Preview(post.Request.BodyHTML, 300))
		item.Status = StatusDryRun
		return item
	}

	res := r.poster.Post(ctx, post.Request)
	item.Result = &res
	if !res.Success {
		item.Status = StatusFailed
		if res.Failure != nil {
			item.Error = res.Failure.Message
		}
		log.Errorf("发布失败: %v", res.Err())
		return item
	}

	item.Status = StatusPublished
	item.URL = res.URL
	log.Infof("发布成功: %s", res.URL)
	return item
}

func (s *Summary) add(item Item) {
	s.Items = append(s.Items, item)
	switch item.Status {
	case StatusPublished:
		s.Published++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	case StatusDryRun:
		s.DryRun++
	}
}

func newArticles(articles []feed.Article, l *ledger.Ledger, max int) []feed.Article {
	var fresh []feed.Article
	seen := map[string]bool{}
	for _, a := range articles {
		if l.Contains(a.ID) || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		fresh = append(fresh, a)
		if max > 0 && len(fresh) >= max {
			break
		}
	}
	return fresh
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
