package textutil

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// TitleWidth 计算标题显示宽度
// 规则：韩文、中文等全角字符算 2，ASCII 字符算 1
func TitleWidth(s string) int {
	return runewidth.StringWidth(s)
}

// TruncateTitle 按显示宽度截断标题，超出部分用 "..." 代替
func TruncateTitle(s string, maxWidth int) string {
	s = strings.TrimSpace(s)
	if maxWidth <= 0 || runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// Preview 单行预览，用于日志
func Preview(s string, maxWidth int) string {
	s = strings.Join(strings.Fields(s), " ")
	return TruncateTitle(s, maxWidth)
}
