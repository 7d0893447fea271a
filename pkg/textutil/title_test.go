package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleWidth(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{name: "空字符串", input: "", want: 0},
		{name: "纯韩文", input: "안녕하세요", want: 10},
		{name: "纯英文", input: "hello", want: 5},
		{name: "纯数字", input: "12345", want: 5},
		{name: "韩英混合", input: "AI 뉴스", want: 7},
		{name: "中文", input: "你好世界", want: 8},
		{name: "半角符号", input: "!?", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleWidth(tt.input))
		})
	}
}

func TestTruncateTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxWidth int
		want     string
	}{
		{name: "未超出", input: "hello", maxWidth: 10, want: "hello"},
		{name: "不限制", input: "hello world", maxWidth: 0, want: "hello world"},
		{name: "英文截断", input: "hello world", maxWidth: 6, want: "hel..."},
		{name: "去掉首尾空白", input: "  뉴스  ", maxWidth: 10, want: "뉴스"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateTitle(tt.input, tt.maxWidth)
			assert.Equal(t, tt.want, got)
			if tt.maxWidth > 0 {
				assert.LessOrEqual(t, TitleWidth(got), tt.maxWidth)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b c", Preview("a\n  b\t c", 20))
}
