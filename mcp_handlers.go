package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
)

// MCP 工具处理函数

func textResult(text string) *MCPToolResult {
	return &MCPToolResult{Content: []MCPContent{{Type: "text", Text: text}}}
}

func errorResult(prefix string, err error) *MCPToolResult {
	return &MCPToolResult{
		Content: []MCPContent{{Type: "text", Text: prefix + ": " + err.Error()}},
		IsError: true,
	}
}

func jsonResult(prefix string, v any) *MCPToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("序列化结果失败", err)
	}
	return textResult(prefix + "\n" + string(data))
}

// handleCheckLoginStatus 处理检查登录状态
func (s *AppServer) handleCheckLoginStatus(ctx context.Context) *MCPToolResult {
	logrus.Info("MCP: 检查登录状态")

	status, err := s.service.CheckLoginStatus(ctx)
	if err != nil {
		return errorResult("检查登录状态失败", err)
	}

	if status.IsLoggedIn {
		return textResult(fmt.Sprintf("已登录: %s", status.Blog))
	}
	return textResult(fmt.Sprintf("未登录: %s，发布时会自动登录", status.Blog))
}

// handlePublishPost 处理发布文章
func (s *AppServer) handlePublishPost(ctx context.Context, args PublishPostArgs) *MCPToolResult {
	req := &PublishRequest{
		Title:    args.Title,
		Content:  args.Content,
		Category: args.Category,
		Tags:     args.Tags,
	}

	resp, err := s.service.PublishContent(ctx, req)
	if err != nil {
		result := jsonResult("发布失败: "+err.Error(), resp)
		result.IsError = true
		return result
	}
	return jsonResult("发布成功: "+resp.URL, resp)
}

// handleRunFeed 处理一次订阅源
func (s *AppServer) handleRunFeed(ctx context.Context) *MCPToolResult {
	logrus.Info("MCP: 处理订阅源")

	summary, err := s.service.RunFeed(ctx)
	if err != nil {
		if summary == nil {
			return errorResult("运行失败", err)
		}
		result := jsonResult("运行失败: "+err.Error(), summary)
		result.IsError = true
		return result
	}

	return jsonResult(fmt.Sprintf("运行完成: 发布 %d, 失败 %d, 跳过 %d",
		summary.Published, summary.Failed, summary.Skipped), summary)
}

// handleDeleteCookies 处理删除 cookies
func (s *AppServer) handleDeleteCookies(ctx context.Context) *MCPToolResult {
	if err := s.service.DeleteCookies(ctx); err != nil {
		return errorResult("删除 cookies 失败", err)
	}
	return textResult("cookies 已删除: " + s.service.cookiesPath())
}
