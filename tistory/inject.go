package tistory

import (
	"context"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/go-rod/rod/lib/input"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// MinVerifiedLength 回读内容必须超过该长度才算写入成功
const MinVerifiedLength = 50

// Strategy 一种写入正文的方式
type Strategy interface {
	Name() string
	// Inject 返回 false 表示当前页面不适用该方式
	Inject(ctx context.Context, content string) (bool, error)
	// ReadBack 读取刚才写入的区域，用于校验
	ReadBack(ctx context.Context) (string, error)
}

// StrategyAttempt 一次尝试的记录
type StrategyAttempt struct {
	Strategy string
	Injected bool
	Length   int
	Err      error
}

// InjectionOutcome 注入结果
type InjectionOutcome struct {
	OK       bool
	Strategy string
	Attempts []StrategyAttempt
}

// Injector 按顺序尝试各个策略，第一个通过校验的即成功
type Injector struct {
	strategies []Strategy
	minLength  int
}

func NewInjector(strategies []Strategy, minLength int) *Injector {
	if minLength <= 0 {
		minLength = MinVerifiedLength
	}
	return &Injector{strategies: strategies, minLength: minLength}
}

// Inject 全部失败时 OK 为 false，是否降级由调用方决定
func (in *Injector) Inject(ctx context.Context, content string) InjectionOutcome {
	var out InjectionOutcome

	for _, s := range in.strategies {
		if ctx.Err() != nil {
			break
		}

		attempt := StrategyAttempt{Strategy: s.Name()}
		ok, err := s.Inject(ctx, content)
		attempt.Injected = ok
		attempt.Err = err
		if err != nil {
			logrus.Warnf("[inject] %s 执行失败: %v", s.Name(), err)
		}

		if ok {
			got, rerr := s.ReadBack(ctx)
			if rerr != nil {
				attempt.Err = errors.Wrap(rerr, "read back")
			}
			attempt.Length = utf8.RuneCountInString(strings.TrimSpace(got))
			if attempt.Length > in.minLength {
				out.Attempts = append(out.Attempts, attempt)
				out.OK = true
				out.Strategy = s.Name()
				logrus.Infof("[inject] %s 写入成功，回读 %d 字符", s.Name(), attempt.Length)
				return out
			}
			logrus.Warnf("[inject] %s 回读仅 %d 字符（需要 > %d），尝试下一种方式", s.Name(), attempt.Length, in.minLength)
		} else {
			logrus.Debugf("[inject] %s 不可用", s.Name())
		}

		out.Attempts = append(out.Attempts, attempt)
	}

	logrus.Errorf("[inject] 所有写入方式均未通过校验")
	return out
}

// DefaultStrategies 固定顺序：编辑器 API、textarea、contenteditable、iframe body、剪贴板
func DefaultStrategies(page Page, resolver *Resolver) []Strategy {
	return []Strategy{
		&editorAPIStrategy{page: page},
		&textareaStrategy{page: page, resolver: resolver},
		&contentEditableStrategy{page: page, resolver: resolver},
		&iframeBodyStrategy{page: page, resolver: resolver},
		&clipboardStrategy{page: page, resolver: resolver},
	}
}

// 定位 CodeMirror 实例
const jsFindEditor = `
	const findEditor = () => {
		const el = document.querySelector('.CodeMirror');
		if (el && el.CodeMirror) return el.CodeMirror;
		if (window.CodeMirror && Array.isArray(window.CodeMirror.instances) && window.CodeMirror.instances.length) {
			return window.CodeMirror.instances[0];
		}
		for (const ta of document.querySelectorAll('textarea')) {
			if (ta.nextSibling && ta.nextSibling.CodeMirror) return ta.nextSibling.CodeMirror;
		}
		return null;
	};`

const jsProbeEditor = `() => {` + jsFindEditor + `
	const cm = findEditor();
	return !!(cm && typeof cm.setValue === 'function' && typeof cm.getValue === 'function');
}`

const jsEditorSetValue = `(content) => {` + jsFindEditor + `
	const cm = findEditor();
	if (!cm) return false;
	cm.setValue(content);
	if (typeof cm.refresh === 'function') cm.refresh();
	if (typeof cm.save === 'function') cm.save();
	return true;
}`

const jsEditorGetValue = `() => {` + jsFindEditor + `
	const cm = findEditor();
	return cm ? cm.getValue() : '';
}`

// 以下在元素上执行，this 为目标元素
const jsSetValue = `(content) => {
	this.focus();
	this.value = content;
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
}`

const jsGetValue = `() => this.value || ''`

const jsSetHTML = `(content) => {
	this.focus();
	this.innerHTML = content;
	this.dispatchEvent(new Event('input', { bubbles: true }));
	return true;
}`

const jsGetHTML = `() => this.innerHTML || ''`

const jsClipboardWrite = `(content) => navigator.clipboard.writeText(content).then(() => true, () => false)`

// 取页面上所有编辑区域中最长的内容
const jsReadAnySurface = `() => {` + jsFindEditor + `
	let best = '';
	const cm = findEditor();
	if (cm) best = cm.getValue() || '';
	for (const ta of document.querySelectorAll('textarea')) {
		if (ta.id !== 'post-title-inp' && (ta.value || '').length > best.length) best = ta.value;
	}
	for (const el of document.querySelectorAll('[contenteditable="true"]')) {
		if ((el.innerHTML || '').length > best.length) best = el.innerHTML;
	}
	return best;
}`

// EditorAPI
type editorAPIStrategy struct {
	page Page
}

func (s *editorAPIStrategy) Name() string { return "EditorAPI" }

// probe 检查页面上是否有可用的编辑器实例
func (s *editorAPIStrategy) probe(ctx context.Context) bool {
	res, err := s.page.Eval(ctx, jsProbeEditor)
	return err == nil && res.Bool()
}

func (s *editorAPIStrategy) Inject(ctx context.Context, content string) (bool, error) {
	if !s.probe(ctx) {
		return false, nil
	}
	res, err := s.page.Eval(ctx, jsEditorSetValue, content)
	if err != nil {
		return false, err
	}
	return res.Bool(), nil
}

func (s *editorAPIStrategy) ReadBack(ctx context.Context) (string, error) {
	res, err := s.page.Eval(ctx, jsEditorGetValue)
	if err != nil {
		return "", err
	}
	return res.Str(), nil
}

// Textarea
type textareaStrategy struct {
	page     Page
	resolver *Resolver
	target   Element
}

func (s *textareaStrategy) Name() string { return "Textarea" }

func (s *textareaStrategy) Inject(ctx context.Context, content string) (bool, error) {
	el, ok := s.resolver.Resolve(ctx, "content textarea", textareaCandidates)
	if !ok {
		return false, nil
	}
	s.target = el
	res, err := el.Eval(ctx, jsSetValue, content)
	if err != nil {
		return false, err
	}
	return res.Bool(), nil
}

func (s *textareaStrategy) ReadBack(ctx context.Context) (string, error) {
	if s.target == nil {
		return "", nil
	}
	res, err := s.target.Eval(ctx, jsGetValue)
	if err != nil {
		return "", err
	}
	return res.Str(), nil
}

// ContentEditable
type contentEditableStrategy struct {
	page     Page
	resolver *Resolver
	target   Element
}

func (s *contentEditableStrategy) Name() string { return "ContentEditable" }

func (s *contentEditableStrategy) Inject(ctx context.Context, content string) (bool, error) {
	el, ok := s.resolver.Resolve(ctx, "contenteditable", editableCandidates)
	if !ok {
		return false, nil
	}
	s.target = el
	res, err := el.Eval(ctx, jsSetHTML, content)
	if err != nil {
		return false, err
	}
	return res.Bool(), nil
}

func (s *contentEditableStrategy) ReadBack(ctx context.Context) (string, error) {
	if s.target == nil {
		return "", nil
	}
	res, err := s.target.Eval(ctx, jsGetHTML)
	if err != nil {
		return "", err
	}
	return res.Str(), nil
}

// IFrameBody 同源 iframe 中可编辑的 body，例如 TinyMCE
type iframeBodyStrategy struct {
	page     Page
	resolver *Resolver
	target   Element
}

func (s *iframeBodyStrategy) Name() string { return "IFrameBody" }

func (s *iframeBodyStrategy) Inject(ctx context.Context, content string) (bool, error) {
	frames, err := s.page.Frames(ctx)
	if err != nil {
		return false, err
	}

	for i, frame := range frames {
		el, ok := s.resolver.On(frame).Resolve(ctx, "iframe body", frameBodyCandidates)
		if !ok {
			continue
		}
		res, err := el.Eval(ctx, jsSetHTML, content)
		if err != nil {
			logrus.Warnf("[inject] 第 %d 个 iframe 写入失败: %v", i, err)
			continue
		}
		if res.Bool() {
			s.target = el
			return true, nil
		}
	}
	return false, nil
}

func (s *iframeBodyStrategy) ReadBack(ctx context.Context) (string, error) {
	if s.target == nil {
		return "", nil
	}
	res, err := s.target.Eval(ctx, jsGetHTML)
	if err != nil {
		return "", err
	}
	return res.Str(), nil
}

// ClipboardPaste 最后的手段
type clipboardStrategy struct {
	page     Page
	resolver *Resolver
}

func (s *clipboardStrategy) Name() string { return "ClipboardPaste" }

func (s *clipboardStrategy) Inject(ctx context.Context, content string) (bool, error) {
	res, err := s.page.Eval(ctx, jsClipboardWrite, content)
	if err != nil {
		return false, err
	}
	if !res.Bool() {
		return false, nil
	}

	el, ok := s.resolver.Resolve(ctx, "paste target", pasteTargetCandidates)
	if !ok {
		return false, nil
	}
	if err := el.Click(ctx); err != nil {
		return false, err
	}
	if err := s.page.Press(ctx, pasteModifier(), input.KeyV); err != nil {
		return false, err
	}
	return true, nil
}

func (s *clipboardStrategy) ReadBack(ctx context.Context) (string, error) {
	res, err := s.page.Eval(ctx, jsReadAnySurface)
	if err != nil {
		return "", err
	}
	return res.Str(), nil
}

func pasteModifier() input.Key {
	if runtime.GOOS == "darwin" {
		return input.MetaLeft
	}
	return input.ControlLeft
}
