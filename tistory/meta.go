package tistory

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// setMeta 设置分类和标签，失败只记录日志
func (s *Session) setMeta(ctx context.Context, category string, tags []string) {
	if category != "" {
		if err := s.selectCategory(ctx, category); err != nil {
			logrus.Warnf("设置分类失败（忽略）: %v", err)
		}
	}
	if len(tags) > 0 {
		if err := s.typeTags(ctx, tags); err != nil {
			logrus.Warnf("设置标签失败（忽略）: %v", err)
		}
	}
}

func (s *Session) selectCategory(ctx context.Context, category string) error {
	btn, ok := s.Resolver.Resolve(ctx, "category button", categoryButtonCandidates)
	if !ok {
		return errors.New("category button not found")
	}
	if err := btn.Click(ctx); err != nil {
		return errors.Wrap(err, "open category list")
	}
	sleep(ctx, s.timings().AfterClick)

	option, ok := s.Resolver.Resolve(ctx, "category option", categoryOptionCandidates(category))
	if !ok {
		_ = s.Page.Press(ctx, escapeKey)
		return errors.Errorf("category %q not found", category)
	}
	if err := option.Click(ctx); err != nil {
		return errors.Wrap(err, "click category option")
	}
	logrus.Infof("已选择分类: %s", category)
	return nil
}

func (s *Session) typeTags(ctx context.Context, tags []string) error {
	input, ok := s.Resolver.Resolve(ctx, "tag input", tagInputCandidates)
	if !ok {
		return errors.New("tag input not found")
	}

	added := 0
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if err := input.Type(ctx, tag, s.timings().Keystroke/4); err != nil {
			return errors.Wrapf(err, "type tag %q", tag)
		}
		if err := s.Page.Press(ctx, enterKey); err != nil {
			return errors.Wrapf(err, "commit tag %q", tag)
		}
		added++
		sleep(ctx, s.timings().TagCommit)
	}
	logrus.Infof("已添加 %d 个标签", added)
	return nil
}
