package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes 设置路由配置
func setupRoutes(appServer *AppServer) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.Use(errorHandlingMiddleware())
	router.Use(corsMiddleware())

	router.GET("/health", appServer.healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// MCP 端点，每个会话使用独立的 MCP Server 实例。
	// 客户端通过 X-Session-Id 指定会话，没有时使用远程地址。
	mcpHandler := mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server {
			sessionID := r.Header.Get("X-Session-Id")
			if sessionID == "" {
				sessionID = r.RemoteAddr
			}
			return appServer.sessionManager.GetOrCreateSession(sessionID)
		},
		&mcp.StreamableHTTPOptions{
			JSONResponse: true,
		},
	)
	router.POST("/mcp", gin.WrapH(mcpHandler))
	router.POST("/mcp/*path", gin.WrapH(mcpHandler))

	api := router.Group("/api/v1")
	{
		api.GET("/login/status", appServer.checkLoginStatusHandler)
		api.DELETE("/login/cookies", appServer.deleteCookiesHandler)
		api.POST("/publish", appServer.publishHandler)
		api.POST("/run", appServer.runHandler)
		api.GET("/schedule", appServer.scheduleHandler)
	}

	return router
}
