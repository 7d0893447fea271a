package content

import (
	"regexp"
	"strings"
)

// 标题末尾的媒体名，例如 "... - 연합뉴스"、"... [KBS]"
var mediaSuffixes = []*regexp.Regexp{
	regexp.MustCompile(` - [가-힣A-Za-z0-9\s]+$`),
	regexp.MustCompile(` \| [가-힣A-Za-z0-9\s]+$`),
	regexp.MustCompile(` / [가-힣A-Za-z0-9\s]+$`),
	regexp.MustCompile(` · [가-힣A-Za-z0-9\s]+$`),
	regexp.MustCompile(`\[[가-힣A-Za-z0-9\s]+\]$`),
	regexp.MustCompile(` \([가-힣A-Za-z0-9\s]+\)$`),
}

// CleanTitle 依次去掉标题末尾的媒体名
func CleanTitle(title string) string {
	title = strings.TrimSpace(title)
	for _, re := range mediaSuffixes {
		title = strings.TrimSpace(re.ReplaceAllString(title, ""))
	}
	return title
}

// cleanAIText 去掉模型回复两端的引号和空白
func cleanAIText(s string) string {
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.NewReplacer(`"`, "", `'`, "", "“", "", "”", "").Replace(s))
}

// splitTags 逗号分隔，去掉空白、# 前缀和重复项
func splitTags(s string) []string {
	var tags []string
	seen := map[string]bool{}
	for _, tag := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' || r == '，' }) {
		tag = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

// MergeTags 默认标签在前，去重后最多 limit 个
func MergeTags(defaults, extra []string, limit int) []string {
	merged := splitTags(strings.Join(append(append([]string{}, defaults...), extra...), ","))
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
