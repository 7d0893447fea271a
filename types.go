package main

import "github.com/xpzouying/tistory-autopost/tistory"

// HTTP API 响应类型

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// SuccessResponse 成功响应
type SuccessResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

// MCP 相关类型（用于内部转换）

// MCPToolResult MCP 工具结果（内部使用）
type MCPToolResult struct {
	Content []MCPContent `json:"content"`
	IsError bool         `json:"isError,omitempty"`
}

// MCPContent MCP 内容（内部使用）
type MCPContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// PublishRequest 发布文章请求，Content 为 HTML 正文
type PublishRequest struct {
	Title    string   `json:"title" binding:"required"`
	Content  string   `json:"content" binding:"required"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	// Webhook 可选：发布完成后回调的 URL，为空时使用配置中的地址
	Webhook string `json:"webhook,omitempty"`
}

func (r *PublishRequest) PostRequest() tistory.PostRequest {
	return tistory.PostRequest{
		Title:    r.Title,
		BodyHTML: r.Content,
		Category: r.Category,
		Tags:     r.Tags,
	}
}

// PublishResponse 发布结果
type PublishResponse struct {
	Title    string           `json:"title"`
	Status   string           `json:"status"`
	URL      string           `json:"url,omitempty"`
	Strategy string           `json:"strategy,omitempty"`
	Failure  *tistory.Failure `json:"failure,omitempty"`
	Trace    []tistory.State  `json:"trace,omitempty"`
}

// LoginStatusResponse 登录状态响应
type LoginStatusResponse struct {
	IsLoggedIn bool   `json:"is_logged_in"`
	Blog       string `json:"blog"`
	Username   string `json:"username,omitempty"`
}

// RunRequest 手动触发一次订阅源处理
type RunRequest struct {
	// Webhook 可选：运行结束后推送汇总
	Webhook string `json:"webhook,omitempty"`
}
