package tistory

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type LoginAction struct {
	s *Session
}

func NewLogin(s *Session) *LoginAction {
	return &LoginAction{s: s}
}

// CheckLoginStatus 打开管理页，没有被重定向到登录页即视为已登录
func (a *LoginAction) CheckLoginStatus(ctx context.Context, creds Credentials) (bool, error) {
	if err := a.s.navigate(ctx, creds.BlogURL()+"/manage"); err != nil {
		return false, err
	}
	u := a.s.currentURL(ctx)
	if u == "" {
		return false, newError(KindNavigation, "current url unavailable", nil)
	}
	return !a.s.Options.Site.IsLoginURL(u), nil
}

// Login 走完登录流程，成功的标志是离开登录页
func (a *LoginAction) Login(ctx context.Context, creds Credentials) error {
	s := a.s
	site := s.Options.Site

	if err := s.navigate(ctx, site.LoginURL); err != nil {
		return newError(KindLogin, "open login page", err)
	}

	// cookie 仍有效时登录页会直接跳走
	if u := s.currentURL(ctx); u != "" && !site.IsLoginURL(u) {
		logrus.Infof("已处于登录状态: %s", u)
		return nil
	}

	if sso, ok := s.Resolver.Resolve(ctx, "kakao sso", kakaoLoginCandidates); ok {
		logrus.Info("点击 Kakao 登录入口")
		if err := sso.Click(ctx); err != nil {
			return newError(KindLogin, "click sso entry", err)
		}
		s.settle(ctx)
	}

	idField, ok := s.Resolver.Resolve(ctx, "login id", loginIDCandidates)
	if !ok {
		s.screenshot(ctx, "login-form")
		return newError(KindLogin, "form not found", nil)
	}
	pwField, ok := s.Resolver.Resolve(ctx, "password", passwordCandidates)
	if !ok {
		s.screenshot(ctx, "login-form")
		return newError(KindLogin, "form not found", nil)
	}

	keystroke := s.timings().Keystroke
	if err := idField.Type(ctx, creds.LoginID, keystroke); err != nil {
		return newError(KindLogin, "type login id", err)
	}
	if err := pwField.Type(ctx, creds.Password, keystroke); err != nil {
		return newError(KindLogin, "type password", err)
	}

	submit, ok := s.Resolver.Resolve(ctx, "login submit", loginSubmitCandidates)
	if !ok {
		s.screenshot(ctx, "login-form")
		return newError(KindLogin, "form not found", nil)
	}
	if err := submit.Click(ctx); err != nil {
		return newError(KindLogin, "click submit", err)
	}

	if err := s.Page.WaitSettle(ctx, s.timings().NavigationTimeout); err != nil {
		logrus.Warnf("等待登录跳转超时，改为轮询 URL: %v", err)
	}

	if u, ok := a.waitLeaveLogin(ctx); ok {
		logrus.Infof("登录成功: %s", u)
		return nil
	}

	s.screenshot(ctx, "login-failure")
	return newError(KindLogin, "still on login page after submit", nil)
}

// waitLeaveLogin 轮询当前 URL，直到离开登录页或超时
func (a *LoginAction) waitLeaveLogin(ctx context.Context) (string, bool) {
	deadline := time.Now().Add(a.s.timings().LoginTimeout)
	for {
		u := a.s.currentURL(ctx)
		if u != "" && !a.s.Options.Site.IsLoginURL(u) {
			return u, true
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return u, false
		}
		sleep(ctx, 500*time.Millisecond)
	}
}
