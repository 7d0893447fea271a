package main

import (
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SessionManager 为每个 MCP 会话维护独立的 Server 实例
type SessionManager struct {
	mu        sync.RWMutex
	sessions  map[string]*mcp.Server
	appServer *AppServer
}

func NewSessionManager(appServer *AppServer) *SessionManager {
	return &SessionManager{
		sessions:  make(map[string]*mcp.Server),
		appServer: appServer,
	}
}

// GetOrCreateSession 获取或创建会话
func (sm *SessionManager) GetOrCreateSession(sessionID string) *mcp.Server {
	sm.mu.RLock()
	server, exists := sm.sessions[sessionID]
	sm.mu.RUnlock()

	if exists {
		return server
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	// 再次检查，避免竞态条件
	if server, exists = sm.sessions[sessionID]; exists {
		return server
	}

	server = InitMCPServer(sm.appServer)
	sm.sessions[sessionID] = server
	return server
}

// RemoveSession 删除会话
func (sm *SessionManager) RemoveSession(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, sessionID)
}

// Len 当前会话数
func (sm *SessionManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}
