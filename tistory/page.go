package tistory

import (
	"context"
	"time"

	"github.com/go-rod/rod/lib/input"
	"github.com/ysmood/gson"
)

// Page 自动化用到的页面能力，真实实现见 driver_rod.go。
// 所有方法都在同一个页面上顺序调用，不支持并发。
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitSettle 等待页面加载并稳定，最多等待 timeout
	WaitSettle(ctx context.Context, timeout time.Duration) error
	URL(ctx context.Context) (string, error)
	// Query 立即返回当前匹配 selector 的元素，不等待
	Query(ctx context.Context, selector string) ([]Element, error)
	Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error)
	// Frames 返回页面内可访问的 iframe
	Frames(ctx context.Context) ([]Page, error)
	// Press 按下组合键后按相反顺序释放
	Press(ctx context.Context, keys ...input.Key) error
	// OnDialog 订阅原生弹窗事件
	OnDialog(ctx context.Context, handle func(Dialog)) error
	// EvalOnNewDocument 在每个新文档的页面脚本执行前运行 js
	EvalOnNewDocument(ctx context.Context, js string) error
	Screenshot(ctx context.Context, path string) error
}

// Element 页面元素
type Element interface {
	Click(ctx context.Context) error
	// Type 逐字输入，每个字符之间间隔 delay
	Type(ctx context.Context, text string, delay time.Duration) error
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, error)
	// Visible 已挂载、尺寸非零、未被 display/visibility 隐藏
	Visible(ctx context.Context) (bool, error)
	Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error)
}

// Dialog 原生弹窗
type Dialog interface {
	Kind() DialogKind
	Message() string
	Accept(promptText string) error
	Dismiss() error
}

// sleep 可被 ctx 打断的等待
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
