package main

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
)

// MCP 工具参数结构体定义

// PublishPostArgs 发布文章的参数
type PublishPostArgs struct {
	Title    string   `json:"title" jsonschema:"文章标题"`
	Content  string   `json:"content" jsonschema:"HTML 格式的正文，会直接写入 Tistory 编辑器的 HTML 模式"`
	Category string   `json:"category,omitempty" jsonschema:"分类名称（可选），不存在时使用博客默认分类"`
	Tags     []string `json:"tags,omitempty" jsonschema:"标签列表（可选），如 [뉴스, IT]"`
}

// RunFeedArgs 处理订阅源的参数
type RunFeedArgs struct{}

// InitMCPServer 初始化 MCP Server
func InitMCPServer(appServer *AppServer) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "tistory-autopost",
			Version: "1.0.0",
		},
		nil,
	)

	registerTools(server, appServer)

	logrus.Debug("MCP Server initialized")
	return server
}

// registerTools 注册所有 MCP 工具
func registerTools(server *mcp.Server, appServer *AppServer) {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "check_login_status",
			Description: "检查 Tistory 博客的登录状态",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, _ any) (*mcp.CallToolResult, any, error) {
			result := appServer.handleCheckLoginStatus(ctx)
			return convertToMCPResult(result), nil, nil
		},
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "publish_post",
			Description: "登录 Tistory 并发布一篇 HTML 文章，返回文章地址和执行的步骤",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, args PublishPostArgs) (*mcp.CallToolResult, any, error) {
			logrus.Infof("MCP: 收到发布请求: %s", args.Title)
			result := appServer.handlePublishPost(ctx, args)
			return convertToMCPResult(result), nil, nil
		},
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "run_feed_once",
			Description: "处理一次订阅源：抓取新文章、生成正文并发布，返回运行汇总",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, _ RunFeedArgs) (*mcp.CallToolResult, any, error) {
			result := appServer.handleRunFeed(ctx)
			return convertToMCPResult(result), nil, nil
		},
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "delete_cookies",
			Description: "删除保存的登录 cookies，下次发布时重新登录",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, _ any) (*mcp.CallToolResult, any, error) {
			result := appServer.handleDeleteCookies(ctx)
			return convertToMCPResult(result), nil, nil
		},
	)
}

// convertToMCPResult 将内部的 MCPToolResult 转换为 SDK 的格式
func convertToMCPResult(result *MCPToolResult) *mcp.CallToolResult {
	contents := make([]mcp.Content, 0, len(result.Content))
	for _, c := range result.Content {
		contents = append(contents, &mcp.TextContent{Text: c.Text})
	}

	return &mcp.CallToolResult{
		Content: contents,
		IsError: result.IsError,
	}
}
