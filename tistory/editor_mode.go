package tistory

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// EditorMode 编辑器当前模式
type EditorMode string

const (
	ModeVisual  EditorMode = "visual"
	ModeRaw     EditorMode = "html"
	ModeUnknown EditorMode = "unknown"
)

// 直接调用编辑器的切换入口
const jsForceRawMode = `() => {
	if (window.Editor && typeof window.Editor.setMode === 'function') {
		window.Editor.setMode('html');
		return true;
	}
	return false;
}`

// ModeSwitch 在可视模式和 HTML 模式之间切换
type ModeSwitch struct {
	s *Session
}

func NewModeSwitch(s *Session) *ModeSwitch {
	return &ModeSwitch{s: s}
}

// CurrentMode 读取模式指示按钮的文字
func (m *ModeSwitch) CurrentMode(ctx context.Context) (EditorMode, Element, error) {
	indicator, ok := m.s.Resolver.Resolve(ctx, "mode indicator", modeIndicatorCandidates)
	if !ok {
		return ModeUnknown, nil, newError(KindModeSwitch, "mode indicator not found", nil)
	}
	text, err := indicator.Text(ctx)
	if err != nil {
		return ModeUnknown, indicator, newError(KindModeSwitch, "read mode indicator", err)
	}
	if strings.Contains(strings.ToUpper(text), "HTML") {
		return ModeRaw, indicator, nil
	}
	return ModeVisual, indicator, nil
}

// SwitchToRawMode 切换到 HTML 模式，已是 HTML 模式时直接返回
func (m *ModeSwitch) SwitchToRawMode(ctx context.Context) error {
	mode, indicator, err := m.CurrentMode(ctx)
	if err != nil {
		return err
	}
	if mode == ModeRaw {
		logrus.Info("编辑器已处于 HTML 模式")
		return nil
	}

	logrus.Info("切换编辑器到 HTML 模式")
	if err := m.selectEntry(ctx, indicator, rawModeEntryCandidates); err != nil {
		m.s.screenshot(ctx, "html-mode-error")
		return err
	}

	// 只有这一次切换可能弹出"格式可能丢失"的确认框
	m.s.confirmModal(ctx)
	sleep(ctx, m.s.timings().ModeSettle)

	if m.isRaw(ctx) {
		logrus.Info("已切换到 HTML 模式")
		return nil
	}

	logrus.Warn("HTML 模式未生效，尝试强制切换")
	if m.forceRaw(ctx) && m.isRaw(ctx) {
		logrus.Info("强制切换到 HTML 模式成功")
		return nil
	}

	m.s.screenshot(ctx, "html-mode-error")
	return newError(KindModeSwitch, "editor did not enter html mode", nil)
}

// SwitchToVisualMode 切回可视模式，尽力而为
func (m *ModeSwitch) SwitchToVisualMode(ctx context.Context) error {
	mode, indicator, err := m.CurrentMode(ctx)
	if err != nil {
		return err
	}
	if mode == ModeVisual {
		return nil
	}

	if err := m.selectEntry(ctx, indicator, visualModeEntryCandidates); err != nil {
		return err
	}
	m.s.confirmModal(ctx)
	sleep(ctx, m.s.timings().ModeSettle)

	if mode, _, _ := m.CurrentMode(ctx); mode != ModeVisual {
		return newError(KindModeSwitch, "editor did not leave html mode", nil)
	}
	return nil
}

// selectEntry 打开模式菜单并点击目标项
func (m *ModeSwitch) selectEntry(ctx context.Context, trigger Element, entries []SelectorCandidate) error {
	if err := trigger.Click(ctx); err != nil {
		return newError(KindModeSwitch, "open mode menu", err)
	}
	sleep(ctx, m.s.timings().MenuOpen)

	entry, ok := m.s.Resolver.Resolve(ctx, "mode entry", entries)
	if !ok {
		return newError(KindModeSwitch, "mode menu entry not found", nil)
	}
	if err := entry.Click(ctx); err != nil {
		return newError(KindModeSwitch, "click mode menu entry", err)
	}
	return nil
}

func (m *ModeSwitch) isRaw(ctx context.Context) bool {
	mode, _, err := m.CurrentMode(ctx)
	return err == nil && mode == ModeRaw
}

// forceRaw 再点一次 HTML 菜单项，不行就调用编辑器自己的 setMode
func (m *ModeSwitch) forceRaw(ctx context.Context) bool {
	if entry, ok := m.s.Resolver.Resolve(ctx, "mode entry (forced)", rawModeEntryCandidates); ok {
		if err := entry.Click(ctx); err == nil {
			m.s.confirmModal(ctx)
			sleep(ctx, m.s.timings().ModeSettle)
			if m.isRaw(ctx) {
				return true
			}
		}
	}

	res, err := m.s.Page.Eval(ctx, jsForceRawMode)
	if err != nil {
		logrus.Warnf("调用 Editor.setMode 失败: %v", err)
		return false
	}
	if !res.Bool() {
		return false
	}
	sleep(ctx, m.s.timings().ModeSettle)
	return true
}
