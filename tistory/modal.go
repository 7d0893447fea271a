package tistory

import (
	"context"

	"github.com/go-rod/rod/lib/input"
	"github.com/sirupsen/logrus"
)

var (
	escapeKey = input.Escape
	enterKey  = input.Enter
)

// confirmModal 等待页面内确认框并点击确认按钮。
// 没有出现确认框属于正常情况，返回 false。
func (s *Session) confirmModal(ctx context.Context) bool {
	if _, ok := s.Resolver.Resolve(ctx, "mode modal", modeModalCandidates); !ok {
		logrus.Info("未出现确认框")
		return false
	}

	if btn, ok := s.Resolver.Resolve(ctx, "modal confirm", modalConfirmCandidates); ok {
		err := btn.Click(ctx)
		if err == nil {
			logrus.Info("已点击确认框的确认按钮")
			sleep(ctx, s.timings().AfterClick)
			return true
		}
		logrus.Warnf("点击确认按钮失败: %v", err)
	}

	// 最后按回车确认
	if err := s.Page.Press(ctx, enterKey); err != nil {
		logrus.Warnf("回车确认失败: %v", err)
		return false
	}
	sleep(ctx, s.timings().AfterClick)
	return true
}
