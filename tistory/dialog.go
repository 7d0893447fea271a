package tistory

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// DialogKind 原生弹窗类型
type DialogKind string

const (
	DialogAlert        DialogKind = "alert"
	DialogConfirm      DialogKind = "confirm"
	DialogPrompt       DialogKind = "prompt"
	DialogBeforeUnload DialogKind = "beforeunload"
)

// DialogAction 对弹窗的处理方式
type DialogAction struct {
	Accept     bool
	PromptText string
}

// DialogPolicy 弹窗类型到处理方式的映射
type DialogPolicy map[DialogKind]DialogAction

// DefaultDialogPolicy 全部接受，prompt 输入空字符串
func DefaultDialogPolicy() DialogPolicy {
	return DialogPolicy{
		DialogAlert:        {Accept: true},
		DialogConfirm:      {Accept: true},
		DialogPrompt:       {Accept: true, PromptText: ""},
		DialogBeforeUnload: {Accept: true},
	}
}

// ActionFor 未配置的类型一律接受
func (p DialogPolicy) ActionFor(kind DialogKind) DialogAction {
	if action, ok := p[kind]; ok {
		return action
	}
	return DialogAction{Accept: true}
}

// 在页面脚本执行前移除 beforeunload 拦截
const jsNeutralizeBeforeUnload = `() => {
	window.addEventListener('beforeunload', (e) => {
		e.stopImmediatePropagation();
		delete e.returnValue;
	}, true);
	try {
		Object.defineProperty(window, 'onbeforeunload', {
			configurable: true,
			get: () => null,
			set: () => {},
		});
	} catch (e) {}
}`

// DialogInterceptor 自动处理原生弹窗。必须在第一次导航之前安装。
type DialogInterceptor struct {
	policy DialogPolicy

	mu        sync.Mutex
	installed map[Page]bool
	handled   map[DialogKind]int
	pending   error
}

func NewDialogInterceptor(policy DialogPolicy) *DialogInterceptor {
	if policy == nil {
		policy = DefaultDialogPolicy()
	}
	return &DialogInterceptor{
		policy:    policy,
		installed: map[Page]bool{},
		handled:   map[DialogKind]int{},
	}
}

// Install 在 page 上注册处理器，同一个 page 重复调用无副作用
func (d *DialogInterceptor) Install(ctx context.Context, page Page) error {
	d.mu.Lock()
	if d.installed[page] {
		d.mu.Unlock()
		return nil
	}
	d.installed[page] = true
	d.mu.Unlock()

	if err := page.OnDialog(ctx, d.handle); err != nil {
		d.mu.Lock()
		delete(d.installed, page)
		d.mu.Unlock()
		return newError(KindDialog, "subscribe dialog events", err)
	}

	if err := page.EvalOnNewDocument(ctx, jsNeutralizeBeforeUnload); err != nil {
		// 原生 beforeunload 弹窗仍会被上面的处理器接受
		logrus.Warnf("注入 beforeunload 处理脚本失败: %v", err)
	}

	logrus.Debug("dialog interceptor installed")
	return nil
}

func (d *DialogInterceptor) handle(dialog Dialog) {
	kind := dialog.Kind()
	action := d.policy.ActionFor(kind)
	logrus.Infof("native dialog [%s]: %q -> accept=%v", kind, dialog.Message(), action.Accept)

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		if action.Accept {
			err = dialog.Accept(action.PromptText)
		} else {
			err = dialog.Dismiss()
		}
	}()

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		logrus.Errorf("处理原生弹窗失败 [%s]: %v", kind, err)
		d.pending = newError(KindDialog, fmt.Sprintf("handle %s dialog", kind), err)
		return
	}
	d.handled[kind]++
}

// TakeError 取出并清除处理弹窗时产生的错误，由当前步骤作为失败上报
func (d *DialogInterceptor) TakeError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.pending
	d.pending = nil
	return err
}

// Handled 已处理的弹窗数量
func (d *DialogInterceptor) Handled(kind DialogKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handled[kind]
}
