package tistory

import (
	"context"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

type NavigateAction struct {
	s *Session
}

func NewNavigate(s *Session) *NavigateAction {
	return &NavigateAction{s: s}
}

// OpenComposer 从博客首页进入写作页，找不到入口时直接打开固定的写作地址
func (n *NavigateAction) OpenComposer(ctx context.Context, creds Credentials) error {
	s := n.s
	blog := creds.BlogURL()

	if err := s.navigate(ctx, blog); err != nil {
		return err
	}
	s.dismissPopups(ctx)

	if link, ok := s.Resolver.Resolve(ctx, "new post", newPostCandidates); ok {
		// 优先跟随链接地址，避免 target=_blank 打开新标签页
		href, _ := link.Attribute(ctx, "href")
		if target := absoluteURL(blog, href); target != "" {
			if err := s.navigate(ctx, target); err != nil {
				return err
			}
		} else {
			if err := link.Click(ctx); err != nil {
				return newError(KindNavigation, "click new post", err)
			}
			s.settle(ctx)
		}
	} else {
		composer := blog + s.Options.Site.ComposerPath
		logrus.Warnf("未找到写作入口，直接打开 %s", composer)
		if err := s.navigate(ctx, composer); err != nil {
			return err
		}
	}

	u := s.currentURL(ctx)
	if u != "" && s.Options.Site.IsLoginURL(u) {
		return newError(KindNavigation, "redirected to login page while opening composer", nil)
	}

	s.dismissPopups(ctx)
	logrus.Infof("已打开写作页: %s", u)
	return nil
}

// SetTitle 找到标题输入框并输入标题
func (n *NavigateAction) SetTitle(ctx context.Context, title string) error {
	s := n.s

	input, ok := s.Resolver.Resolve(ctx, "title", titleCandidates)
	if !ok {
		n.logInputs(ctx)
		s.screenshot(ctx, "title-missing")
		return newError(KindNavigation, "title input not found", nil)
	}

	if err := input.Type(ctx, title, s.timings().Keystroke/2); err != nil {
		return newError(KindNavigation, "type title", err)
	}
	sleep(ctx, s.timings().AfterClick)
	return nil
}

// logInputs 找不到标题框时输出页面上的输入框，便于更新候选列表
func (n *NavigateAction) logInputs(ctx context.Context) {
	elems, err := n.s.Page.Query(ctx, "input, textarea")
	if err != nil {
		return
	}
	for i, el := range elems {
		id, _ := el.Attribute(ctx, "id")
		name, _ := el.Attribute(ctx, "name")
		placeholder, _ := el.Attribute(ctx, "placeholder")
		logrus.Infof("input #%d: id=%q name=%q placeholder=%q", i, id, name, placeholder)
	}
}

func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}
