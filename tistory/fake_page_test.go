package tistory

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/input"
	"github.com/ysmood/gson"
)

// fakePage 内存中的页面，按 URL 区分不同的"屏幕"
type fakePage struct {
	mu sync.Mutex

	url         string
	screens     map[string]map[string][]*fakeElement
	redirects   map[string]string
	scripts     map[string]func(args []interface{}) interface{}
	frames      []*fakePage
	onNavigate  func(url string)
	handlers    []func(Dialog)
	initScripts []string

	queries     []string
	navigations []string
	keys        [][]input.Key
	evals       []string
}

func newFakePage() *fakePage {
	return &fakePage{
		screens:   map[string]map[string][]*fakeElement{},
		redirects: map[string]string{},
		scripts:   map[string]func(args []interface{}) interface{}{},
	}
}

// add 在指定 URL 上注册元素，url 为空表示所有页面都有
func (p *fakePage) add(url, selector string, elems ...*fakeElement) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.screens[url] == nil {
		p.screens[url] = map[string][]*fakeElement{}
	}
	p.screens[url][selector] = append(p.screens[url][selector], elems...)
}

func (p *fakePage) script(js string, fn func(args []interface{}) interface{}) {
	p.scripts[js] = fn
}

func (p *fakePage) setURL(u string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = u
}

// fire 模拟页面弹出原生弹窗
func (p *fakePage) fire(kind DialogKind, message string) *fakeDialog {
	return p.fireDialog(&fakeDialog{kind: kind, message: message})
}

func (p *fakePage) fireDialog(d *fakeDialog) *fakeDialog {
	p.mu.Lock()
	handlers := append([]func(Dialog){}, p.handlers...)
	p.mu.Unlock()
	for _, h := range handlers {
		h(d)
	}
	return d
}

func (p *fakePage) queried(selector string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, q := range p.queries {
		if q == selector {
			return true
		}
	}
	return false
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	p.navigations = append(p.navigations, url)
	if to, ok := p.redirects[url]; ok {
		url = to
	}
	p.url = url
	hook := p.onNavigate
	p.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	return nil
}

func (p *fakePage) WaitSettle(context.Context, time.Duration) error { return nil }

func (p *fakePage) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *fakePage) Query(_ context.Context, selector string) ([]Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, selector)

	var out []Element
	for _, key := range []string{"", p.url} {
		for _, el := range p.screens[key][selector] {
			out = append(out, el)
		}
		if p.url == "" {
			break
		}
	}
	return out, nil
}

func (p *fakePage) Eval(_ context.Context, js string, args ...interface{}) (gson.JSON, error) {
	p.mu.Lock()
	p.evals = append(p.evals, js)
	fn := p.scripts[js]
	p.mu.Unlock()

	if fn == nil {
		return gson.New(nil), nil
	}
	return gson.New(fn(args)), nil
}

func (p *fakePage) Frames(context.Context) ([]Page, error) {
	out := make([]Page, 0, len(p.frames))
	for _, f := range p.frames {
		out = append(out, f)
	}
	return out, nil
}

func (p *fakePage) Press(_ context.Context, keys ...input.Key) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, keys)
	return nil
}

func (p *fakePage) OnDialog(_ context.Context, handle func(Dialog)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, handle)
	return nil
}

func (p *fakePage) EvalOnNewDocument(_ context.Context, js string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initScripts = append(p.initScripts, js)
	return nil
}

func (p *fakePage) Screenshot(context.Context, string) error { return nil }

// fakeElement 可见、可点击、可输入的元素
type fakeElement struct {
	mu sync.Mutex

	text   string
	attrs  map[string]string
	hidden bool
	value  string

	clicks int
	typed  []string

	onClick func()
	// setter/getter 覆盖 value 的读写，用于模拟写入后读不回来的编辑器
	setter func(content string) bool
	getter func() string
}

func newElement(text string) *fakeElement {
	return &fakeElement{text: text, attrs: map[string]string{}}
}

func (e *fakeElement) withAttr(name, value string) *fakeElement {
	e.attrs[name] = value
	return e
}

func (e *fakeElement) hide() *fakeElement {
	e.hidden = true
	return e
}

func (e *fakeElement) setHidden(hidden bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hidden = hidden
}

func (e *fakeElement) setText(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.text = text
}

func (e *fakeElement) currentText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text
}

func (e *fakeElement) clickCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

func (e *fakeElement) Click(context.Context) error {
	e.mu.Lock()
	e.clicks++
	hook := e.onClick
	e.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (e *fakeElement) Type(_ context.Context, text string, _ time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.typed = append(e.typed, text)
	return nil
}

func (e *fakeElement) Text(context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text, nil
}

func (e *fakeElement) Attribute(_ context.Context, name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attrs[name], nil
}

func (e *fakeElement) Visible(context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.hidden, nil
}

func (e *fakeElement) Eval(_ context.Context, js string, args ...interface{}) (gson.JSON, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch js {
	case jsSetValue, jsSetHTML:
		content, _ := args[0].(string)
		if e.setter != nil {
			return gson.New(e.setter(content)), nil
		}
		e.value = content
		return gson.New(true), nil
	case jsGetValue, jsGetHTML:
		if e.getter != nil {
			return gson.New(e.getter()), nil
		}
		return gson.New(e.value), nil
	}
	return gson.New(nil), nil
}

type fakeDialog struct {
	mu sync.Mutex

	kind       DialogKind
	message    string
	accepts    int
	dismisses  int
	promptText string
	acceptErr  error
}

func (d *fakeDialog) Kind() DialogKind { return d.kind }
func (d *fakeDialog) Message() string  { return d.message }

func (d *fakeDialog) Accept(promptText string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accepts++
	d.promptText = promptText
	return d.acceptErr
}

func (d *fakeDialog) Dismiss() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dismisses++
	return nil
}

// fastOptions 测试用配置：不等待，候选最多等 1ms，每步只尝试一次
func fastOptions() Options {
	opts := DefaultOptions()
	opts.Timings = Timings{}
	opts.Retry = RetryPolicies{
		Login:    RetryPolicy{OperationName: "login", MaxAttempts: 1},
		Navigate: RetryPolicy{OperationName: "navigate", MaxAttempts: 1},
		Write:    RetryPolicy{OperationName: "write", MaxAttempts: 1},
		Publish:  RetryPolicy{OperationName: "publish", MaxAttempts: 1},
	}
	opts.Resolver = []ResolverOption{WithTimeoutCap(time.Millisecond), WithPollInterval(time.Millisecond)}
	return opts
}

func newTestSession(page Page, opts Options) *Session {
	s, err := NewSession(context.Background(), page, opts)
	if err != nil {
		panic(err)
	}
	return s
}
