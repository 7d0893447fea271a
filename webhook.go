package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xpzouying/tistory-autopost/runner"
)

// webhook 事件类型
const (
	EventPostPublished = "post_published"
	EventPostFailed    = "post_failed"
	EventPostSkipped   = "post_skipped"
	EventPostDryRun    = "post_dry_run"
	EventRunFinished   = "run_finished"
)

// WebhookPayload webhook 发送的数据结构
type WebhookPayload struct {
	Event     string `json:"event"`
	Timestamp int64  `json:"timestamp"`
	RunID     string `json:"run_id,omitempty"`
	Data      any    `json:"data"`
}

// WebhookSender webhook 发送器
type WebhookSender struct {
	client  *http.Client
	timeout time.Duration
}

// NewWebhookSender 创建 webhook 发送器
func NewWebhookSender() *WebhookSender {
	return &WebhookSender{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		timeout: 10 * time.Second,
	}
}

// SendAsync 异步发送 webhook，失败只记录日志，不影响发布结果
func (w *WebhookSender) SendAsync(webhookURL string, payload WebhookPayload) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logrus.Errorf("webhook panic: %v", r)
			}
		}()

		if err := w.Send(context.Background(), webhookURL, payload); err != nil {
			logrus.Errorf("webhook 发送失败 [%s]: %v", webhookURL, err)
		} else {
			logrus.Infof("webhook 发送成功 [%s] %s", webhookURL, payload.Event)
		}
	}()
}

// Send 同步发送 webhook
func (w *WebhookSender) Send(ctx context.Context, webhookURL string, payload WebhookPayload) error {
	if err := validateWebhookURL(webhookURL); err != nil {
		return fmt.Errorf("无效的 webhook URL: %w", err)
	}

	if payload.Timestamp == 0 {
		payload.Timestamp = time.Now().Unix()
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化 payload 失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "tistory-autopost-webhook/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook 返回非成功状态码: %d", resp.StatusCode)
	}

	return nil
}

// validateWebhookURL 只允许带 host 的 http/https 地址
func validateWebhookURL(webhookURL string) error {
	if webhookURL == "" {
		return fmt.Errorf("webhook URL 不能为空")
	}

	u, err := url.Parse(webhookURL)
	if err != nil {
		return fmt.Errorf("URL 格式错误: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("只支持 http 和 https 协议")
	}

	if u.Host == "" {
		return fmt.Errorf("URL 必须包含 host")
	}

	return nil
}

// webhookHook 把每篇文章的处理结果推送到配置的 webhook
type webhookHook struct {
	sender *WebhookSender
	url    string
}

func newWebhookHook(sender *WebhookSender, url string) runner.Hook {
	if sender == nil || url == "" {
		return nil
	}
	return &webhookHook{sender: sender, url: url}
}

func (h *webhookHook) OnItem(runID string, item runner.Item) {
	h.sender.SendAsync(h.url, WebhookPayload{
		Event: itemEvent(item.Status),
		RunID: runID,
		Data:  item,
	})
}

func itemEvent(status string) string {
	switch status {
	case runner.StatusPublished:
		return EventPostPublished
	case runner.StatusSkipped:
		return EventPostSkipped
	case runner.StatusDryRun:
		return EventPostDryRun
	default:
		return EventPostFailed
	}
}
