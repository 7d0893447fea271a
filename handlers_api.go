package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/xpzouying/tistory-autopost/runner"
)

const (
	publishTimeout = 30 * time.Minute
	runTimeout     = 2 * time.Hour
)

// respondError 返回错误响应
func respondError(c *gin.Context, statusCode int, code, message string, details any) {
	logrus.Errorf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, statusCode, code)

	c.JSON(statusCode, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// respondSuccess 返回成功响应
func respondSuccess(c *gin.Context, data any, message string) {
	logrus.Infof("%s %s %d", c.Request.Method, c.Request.URL.Path, http.StatusOK)

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// respondAccepted 异步任务已接受
func respondAccepted(c *gin.Context, data any, message string) {
	c.JSON(http.StatusAccepted, SuccessResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// goAsync 在独立 context 中执行后台任务，等待 goroutine 真正启动后返回
func goAsync(timeout time.Duration, fn func(ctx context.Context)) {
	started := make(chan struct{})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		close(started)
		fn(ctx)
	}()

	select {
	case <-started:
	case <-time.After(100 * time.Millisecond):
		logrus.Warn("等待异步任务启动超时")
	}
}

// checkLoginStatusHandler 检查登录状态
func (s *AppServer) checkLoginStatusHandler(c *gin.Context) {
	status, err := s.service.CheckLoginStatus(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "STATUS_CHECK_FAILED",
			"检查登录状态失败", err.Error())
		return
	}

	respondSuccess(c, status, "检查登录状态成功")
}

// deleteCookiesHandler 删除 cookies，重置登录状态
func (s *AppServer) deleteCookiesHandler(c *gin.Context) {
	if err := s.service.DeleteCookies(c.Request.Context()); err != nil {
		respondError(c, http.StatusInternalServerError, "DELETE_COOKIES_FAILED",
			"删除 cookies 失败", err.Error())
		return
	}

	respondSuccess(c, map[string]any{
		"cookie_path": s.service.cookiesPath(),
	}, "删除 cookies 成功，下次发布时重新登录")
}

// publishHandler 发布文章（异步模式）。
// 立即返回 202，发布结果通过 webhook 通知，请求或配置中必须有 webhook 地址。
func (s *AppServer) publishHandler(c *gin.Context) {
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST",
			"请求参数错误", err.Error())
		return
	}

	if err := req.PostRequest().Validate(); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST",
			"请求参数错误", err.Error())
		return
	}

	webhookURL := req.Webhook
	if webhookURL == "" {
		webhookURL = s.service.cfg.Webhook.URL
	}
	if webhookURL == "" {
		respondError(c, http.StatusBadRequest, "WEBHOOK_REQUIRED",
			"异步发布模式需要提供 webhook 参数", "请在请求中添加 webhook URL 以接收发布结果")
		return
	}
	if err := validateWebhookURL(webhookURL); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_WEBHOOK",
			"webhook 地址无效", err.Error())
		return
	}
	req.Webhook = webhookURL

	respondAccepted(c, map[string]any{
		"status":  "accepted",
		"webhook": webhookURL,
	}, "请求已接受，发布结果将通过 webhook 通知")

	goAsync(publishTimeout, func(ctx context.Context) {
		logrus.Infof("开始异步发布: %s, webhook: %s", req.Title, webhookURL)
		// webhook 在 service 层发送
		if _, err := s.service.PublishContent(ctx, &req); err != nil {
			logrus.Errorf("异步发布失败: %v", err)
		}
	})
}

// runHandler 手动触发一次订阅源处理。
// 默认异步执行，?wait=true 时等待运行结束并返回汇总。
func (s *AppServer) runHandler(c *gin.Context) {
	var req RunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST",
				"请求参数错误", err.Error())
			return
		}
	}
	if req.Webhook != "" {
		if err := validateWebhookURL(req.Webhook); err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_WEBHOOK",
				"webhook 地址无效", err.Error())
			return
		}
	}

	if s.service.cfg.Feed.URL == "" {
		respondError(c, http.StatusBadRequest, "FEED_NOT_CONFIGURED",
			"未配置订阅源", "请设置 feed.url 或 RSS_FEED_URL")
		return
	}
	r, err := s.service.Runner()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "RUNNER_INIT_FAILED",
			"初始化运行器失败", err.Error())
		return
	}
	if r.Running() {
		respondError(c, http.StatusConflict, "RUN_IN_PROGRESS",
			"已有运行正在进行", runner.ErrAlreadyRunning.Error())
		return
	}

	if c.Query("wait") == "true" {
		summary, err := r.RunOnce(c.Request.Context())
		s.notifyRunFinished(req.Webhook, summary, err)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "RUN_FAILED",
				"运行失败", map[string]any{"error": err.Error(), "summary": summary})
			return
		}
		respondSuccess(c, summary, "运行完成")
		return
	}

	respondAccepted(c, map[string]any{"status": "accepted"}, "运行已开始")

	goAsync(runTimeout, func(ctx context.Context) {
		summary, err := r.RunOnce(ctx)
		if err != nil {
			logrus.Errorf("手动运行失败: %v", err)
		}
		s.notifyRunFinished(req.Webhook, summary, err)
	})
}

// notifyRunFinished 推送运行汇总，没有 webhook 地址时忽略
func (s *AppServer) notifyRunFinished(webhookURL string, summary *runner.Summary, err error) {
	if webhookURL == "" {
		webhookURL = s.service.cfg.Webhook.URL
	}
	if webhookURL == "" || summary == nil {
		return
	}

	data := map[string]any{"summary": summary}
	if err != nil {
		data["error"] = err.Error()
	}
	s.service.webhook.SendAsync(webhookURL, WebhookPayload{
		Event: EventRunFinished,
		RunID: summary.RunID,
		Data:  data,
	})
}

// scheduleHandler 定时任务状态
func (s *AppServer) scheduleHandler(c *gin.Context) {
	if s.scheduler == nil {
		respondSuccess(c, map[string]any{"type": s.service.cfg.Schedule.Type, "enabled": false}, "未启用定时任务")
		return
	}
	respondSuccess(c, map[string]any{
		"type":     s.service.cfg.Schedule.Type,
		"enabled":  true,
		"cron":     s.scheduler.Expr(),
		"next_run": s.scheduler.Next(),
	}, "获取定时任务成功")
}

// healthHandler 健康检查
func (s *AppServer) healthHandler(c *gin.Context) {
	respondSuccess(c, map[string]any{
		"status":    "healthy",
		"service":   "tistory-autopost",
		"blog":      s.service.cfg.TistoryCredentials().BlogURL(),
		"timestamp": time.Now().Unix(),
	}, "服务正常")
}
