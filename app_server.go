package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/xpzouying/tistory-autopost/scheduler"
)

// AppServer 应用服务器结构体，封装所有服务和处理器
type AppServer struct {
	service        *TistoryService
	mcpServer      *mcp.Server
	sessionManager *SessionManager
	scheduler      *scheduler.Scheduler
	router         *gin.Engine
	httpServer     *http.Server
}

// NewAppServer 创建新的应用服务器实例，sched 为 nil 时只响应手动触发
func NewAppServer(service *TistoryService, sched *scheduler.Scheduler) *AppServer {
	appServer := &AppServer{
		service:   service,
		scheduler: sched,
	}

	// 工具注册需要访问 appServer
	appServer.mcpServer = InitMCPServer(appServer)
	appServer.sessionManager = NewSessionManager(appServer)

	return appServer
}

// Start 启动服务器，收到 SIGINT/SIGTERM 后关闭
func (s *AppServer) Start(port string) error {
	s.router = setupRoutes(s)

	s.httpServer = &http.Server{
		Addr:    port,
		Handler: s.router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if s.scheduler != nil {
		if err := s.scheduler.Start(ctx); err != nil {
			return err
		}
	}

	go func() {
		logrus.Infof("启动 HTTP 服务器: %s", port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Errorf("服务器启动失败: %v", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logrus.Infof("正在关闭服务器...")

	if s.scheduler != nil {
		s.scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.Warnf("等待连接关闭超时，强制退出: %v", err)
	} else {
		logrus.Infof("服务器已优雅关闭")
	}

	s.service.Close()
	return nil
}
