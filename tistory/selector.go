package tistory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultPollInterval = 100 * time.Millisecond

// SelectorCandidate 一个候选定位方式。
// Texts 非空时，Selector 匹配到的元素还需要文本（或 value）包含其中之一。
type SelectorCandidate struct {
	Selector string
	Texts    []string
	Timeout  time.Duration
}

// CSS 结构化选择器候选
func CSS(selector string, timeout time.Duration) SelectorCandidate {
	return SelectorCandidate{Selector: selector, Timeout: timeout}
}

// Text 按文本匹配的候选，scope 限定元素类型，例如 "button"
func Text(scope string, timeout time.Duration, texts ...string) SelectorCandidate {
	return SelectorCandidate{Selector: scope, Texts: texts, Timeout: timeout}
}

func (c SelectorCandidate) String() string {
	if len(c.Texts) == 0 {
		return c.Selector
	}
	return fmt.Sprintf("%s[text~%q]", c.Selector, strings.Join(c.Texts, "|"))
}

// ResolverOption Resolver 配置项
type ResolverOption func(*Resolver)

// WithTimeoutCap 限制每个候选的最长等待时间
func WithTimeoutCap(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.timeoutCap = d
	}
}

// WithPollInterval 设置轮询间隔
func WithPollInterval(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithLookupObserver 每个候选查找结束后回调
func WithLookupObserver(fn func(purpose string, c SelectorCandidate, found bool)) ResolverOption {
	return func(r *Resolver) {
		r.observe = fn
	}
}

// Resolver 按顺序尝试候选，返回第一个可见的元素
type Resolver struct {
	page         Page
	pollInterval time.Duration
	timeoutCap   time.Duration
	observe      func(purpose string, c SelectorCandidate, found bool)
}

func NewResolver(page Page, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		page:         page,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// On 返回作用于另一个页面（例如 iframe）的 Resolver，配置不变
func (r *Resolver) On(page Page) *Resolver {
	cp := *r
	cp.page = page
	return &cp
}

// Resolve 依次尝试候选，命中即返回，后面的候选不再查找。
// 全部未命中时返回 false，是否致命由调用方决定。
func (r *Resolver) Resolve(ctx context.Context, purpose string, candidates []SelectorCandidate) (Element, bool) {
	for i, c := range candidates {
		if ctx.Err() != nil {
			return nil, false
		}

		el := r.waitFor(ctx, c)
		found := el != nil
		logrus.WithFields(logrus.Fields{
			"purpose":   purpose,
			"candidate": c.String(),
			"index":     i,
			"found":     found,
		}).Debug("selector lookup")
		if r.observe != nil {
			r.observe(purpose, c, found)
		}
		if found {
			logrus.Infof("[%s] 命中候选 #%d: %s", purpose, i+1, c)
			return el, true
		}
	}

	logrus.Warnf("[%s] %d 个候选均未找到", purpose, len(candidates))
	return nil, false
}

// Exists 立即检查一次，不等待
func (r *Resolver) Exists(ctx context.Context, candidates []SelectorCandidate) bool {
	for _, c := range candidates {
		if el, _ := r.probe(ctx, c); el != nil {
			return true
		}
	}
	return false
}

func (r *Resolver) waitFor(ctx context.Context, c SelectorCandidate) Element {
	timeout := c.Timeout
	if r.timeoutCap > 0 && timeout > r.timeoutCap {
		timeout = r.timeoutCap
	}
	deadline := time.Now().Add(timeout)

	for {
		el, err := r.probe(ctx, c)
		if el != nil {
			return el
		}
		if err != nil {
			logrus.Debugf("probe %s failed: %v", c, err)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 || ctx.Err() != nil {
			return nil
		}
		if remaining > r.pollInterval {
			remaining = r.pollInterval
		}
		sleep(ctx, remaining)
	}
}

func (r *Resolver) probe(ctx context.Context, c SelectorCandidate) (Element, error) {
	elems, err := r.page.Query(ctx, c.Selector)
	if err != nil {
		return nil, err
	}

	for _, el := range elems {
		visible, err := el.Visible(ctx)
		if err != nil || !visible {
			continue
		}
		if len(c.Texts) > 0 && !matchesText(ctx, el, c.Texts) {
			continue
		}
		return el, nil
	}
	return nil, nil
}

func matchesText(ctx context.Context, el Element, texts []string) bool {
	content, err := el.Text(ctx)
	if err != nil {
		return false
	}
	if strings.TrimSpace(content) == "" {
		// input[type=submit] 之类没有文本，用 value 兜底
		content, _ = el.Attribute(ctx, "value")
	}
	return containsAny(content, texts)
}

func containsAny(s string, keywords []string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return false
	}
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
