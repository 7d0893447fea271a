package tistory

import (
	"context"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/pkg/errors"
	"github.com/ysmood/gson"
)

// 可见性判断：已挂载、未隐藏、尺寸非零
const jsIsVisible = `() => {
	if (!this.isConnected) return false;
	const style = window.getComputedStyle(this);
	if (style.display === 'none' || style.visibility === 'hidden') return false;
	const rect = this.getBoundingClientRect();
	return rect.width > 0 && rect.height > 0;
}`

// rodPage 基于 go-rod 的 Page 实现
type rodPage struct {
	page *rod.Page
}

// NewRodPage 包装 rod 页面
func NewRodPage(page *rod.Page) Page {
	return &rodPage{page: page}
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	return p.page.Context(ctx).Navigate(url)
}

func (p *rodPage) WaitSettle(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pp := p.page.Context(ctx)
	if err := pp.WaitLoad(); err != nil {
		return errors.Wrap(err, "wait load")
	}
	if err := pp.WaitDOMStable(500*time.Millisecond, 0); err != nil {
		return errors.Wrap(err, "wait dom stable")
	}
	return nil
}

func (p *rodPage) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *rodPage) Query(ctx context.Context, selector string) ([]Element, error) {
	elems, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(elems))
	for _, el := range elems {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

func (p *rodPage) Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	res, err := p.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return gson.New(nil), err
	}
	return res.Value, nil
}

func (p *rodPage) Frames(ctx context.Context) ([]Page, error) {
	elems, err := p.page.Context(ctx).Elements("iframe")
	if err != nil {
		return nil, err
	}
	var frames []Page
	for _, el := range elems {
		f, err := el.Frame()
		if err != nil {
			continue
		}
		frames = append(frames, &rodPage{page: f})
	}
	return frames, nil
}

func (p *rodPage) Press(ctx context.Context, keys ...input.Key) error {
	kb := p.page.Context(ctx).Keyboard
	for _, k := range keys {
		if err := kb.Press(k); err != nil {
			return err
		}
	}
	for i := len(keys) - 1; i >= 0; i-- {
		if err := kb.Release(keys[i]); err != nil {
			return err
		}
	}
	return nil
}

func (p *rodPage) OnDialog(ctx context.Context, handle func(Dialog)) error {
	target := p.page
	wait := p.page.Context(ctx).EachEvent(func(e *proto.PageJavascriptDialogOpening) {
		handle(&rodDialog{page: target, event: e})
	})
	go wait()
	return nil
}

func (p *rodPage) EvalOnNewDocument(ctx context.Context, js string) error {
	_, err := p.page.Context(ctx).EvalOnNewDocument("(" + js + ")()")
	return err
}

func (p *rodPage) Screenshot(ctx context.Context, path string) error {
	data, err := p.page.Context(ctx).Screenshot(true, nil)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Click(ctx context.Context) error {
	el := e.el.Context(ctx)
	_ = el.ScrollIntoView()
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		// 被遮挡时退回 JS 点击
		if _, jsErr := el.Eval(`() => { this.click(); return true; }`); jsErr != nil {
			return errors.Wrap(err, "click")
		}
	}
	return nil
}

func (e *rodElement) Type(ctx context.Context, text string, delay time.Duration) error {
	el := e.el.Context(ctx)
	if err := el.Focus(); err != nil {
		return err
	}
	if delay <= 0 {
		return el.Input(text)
	}
	for _, r := range text {
		if err := el.Input(string(r)); err != nil {
			return err
		}
		sleep(ctx, delay)
	}
	return nil
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil || v == nil {
		return "", err
	}
	return *v, nil
}

func (e *rodElement) Visible(ctx context.Context) (bool, error) {
	res, err := e.el.Context(ctx).Eval(jsIsVisible)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (e *rodElement) Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	res, err := e.el.Context(ctx).Eval(js, args...)
	if err != nil {
		return gson.New(nil), err
	}
	return res.Value, nil
}

type rodDialog struct {
	page  *rod.Page
	event *proto.PageJavascriptDialogOpening
}

func (d *rodDialog) Kind() DialogKind {
	switch d.event.Type {
	case proto.PageDialogTypeAlert:
		return DialogAlert
	case proto.PageDialogTypeConfirm:
		return DialogConfirm
	case proto.PageDialogTypePrompt:
		return DialogPrompt
	case proto.PageDialogTypeBeforeunload:
		return DialogBeforeUnload
	}
	return DialogKind(d.event.Type)
}

func (d *rodDialog) Message() string {
	return d.event.Message
}

func (d *rodDialog) Accept(promptText string) error {
	return proto.PageHandleJavaScriptDialog{Accept: true, PromptText: promptText}.Call(d.page)
}

func (d *rodDialog) Dismiss() error {
	return proto.PageHandleJavaScriptDialog{Accept: false}.Call(d.page)
}
