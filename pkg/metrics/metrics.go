package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xpzouying/tistory-autopost/tistory"
)

const namespace = "tistory_autopost"

// 文章处理结果
const (
	PostPublished = "published"
	PostFailed    = "failed"
	PostSkipped   = "skipped"
	PostDryRun    = "dry_run"
)

// Metrics 发布流程的 Prometheus 指标，同时实现 tistory.Observer
type Metrics struct {
	stepDuration    *prometheus.HistogramVec
	stepFailures    *prometheus.CounterVec
	stepRetries     *prometheus.CounterVec
	selectorLookups *prometheus.CounterVec
	posts           *prometheus.CounterVec
	runs            *prometheus.CounterVec
	runsActive      prometheus.Gauge
}

var _ tistory.Observer = (*Metrics)(nil)

var (
	defaultOnce sync.Once
	shared      *Metrics
)

// Default 注册到全局 registry 的实例，多次调用返回同一个
func Default() *Metrics {
	defaultOnce.Do(func() {
		shared = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return shared
}

// MustNewMetrics 注册全部指标，已注册的同名指标直接复用
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of each publish step.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"step", "status"}),
		stepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_failures_total",
			Help:      "Publish steps that failed, by error kind.",
		}, []string{"step", "kind"}),
		stepRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_retries_total",
			Help:      "Retried attempts per operation.",
		}, []string{"operation"}),
		selectorLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selector_lookups_total",
			Help:      "Selector candidate lookups by purpose and result.",
		}, []string{"purpose", "result"}),
		posts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_total",
			Help:      "Feed articles processed, by result.",
		}, []string{"result"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Feed runs, by status.",
		}, []string{"status"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Feed runs currently executing.",
		}),
	}

	register := func(c prometheus.Collector) prometheus.Collector {
		if err := reg.Register(c); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				return already.ExistingCollector
			}
			panic(err)
		}
		return c
	}
	m.stepDuration = register(m.stepDuration).(*prometheus.HistogramVec)
	m.stepFailures = register(m.stepFailures).(*prometheus.CounterVec)
	m.stepRetries = register(m.stepRetries).(*prometheus.CounterVec)
	m.selectorLookups = register(m.selectorLookups).(*prometheus.CounterVec)
	m.posts = register(m.posts).(*prometheus.CounterVec)
	m.runs = register(m.runs).(*prometheus.CounterVec)
	m.runsActive = register(m.runsActive).(prometheus.Gauge)
	return m
}

func (m *Metrics) StepFinished(step string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		m.stepFailures.WithLabelValues(step, string(tistory.KindOf(err))).Inc()
	}
	m.stepDuration.WithLabelValues(step, status).Observe(d.Seconds())
}

func (m *Metrics) StepRetried(operation string) {
	if m == nil {
		return
	}
	m.stepRetries.WithLabelValues(operation).Inc()
}

func (m *Metrics) SelectorResolved(purpose string, found bool) {
	if m == nil {
		return
	}
	result := "miss"
	if found {
		result = "hit"
	}
	m.selectorLookups.WithLabelValues(purpose, result).Inc()
}

// RecordPost 记录一篇文章的处理结果
func (m *Metrics) RecordPost(result string) {
	if m == nil {
		return
	}
	m.posts.WithLabelValues(result).Inc()
}

// RunStarted 返回的函数在运行结束时调用
func (m *Metrics) RunStarted() func(err error) {
	if m == nil {
		return func(error) {}
	}
	m.runsActive.Inc()
	return func(err error) {
		m.runsActive.Dec()
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.runs.WithLabelValues(status).Inc()
	}
}
