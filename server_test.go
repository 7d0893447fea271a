package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xpzouying/tistory-autopost/configs"
	"github.com/xpzouying/tistory-autopost/runner"
	"github.com/xpzouying/tistory-autopost/tistory"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>테스트 뉴스</title>
  <item>
    <title>반도체 수출 3개월 연속 증가</title>
    <link>https://news.example.com/a/1</link>
    <description>산업통상자원부에 따르면 지난달 반도체 수출은 작년 같은 기간보다 크게 늘어 석 달 연속 증가세를 이어갔다. 업계는 하반기에도 회복세가 이어질 것으로 보고 있다.</description>
  </item>
  <item>
    <title>짧은 기사</title>
    <link>https://news.example.com/a/2</link>
    <description>요약</description>
  </item>
</channel>
</rss>`

func newTestServer(t *testing.T, modify func(*configs.Config)) (*AppServer, *gin.Engine) {
	t.Helper()
	cfg := configs.Default()
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "processed.json")
	cfg.Browser.CookiesPath = filepath.Join(t.TempDir(), "cookies.json")
	if modify != nil {
		modify(cfg)
	}
	app := NewAppServer(NewTistoryService(cfg), nil)
	return app, setupRoutes(app)
}

func doRequest(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	_, router := newTestServer(t, func(c *configs.Config) {
		c.Credentials.BlogAddress = "https://demo.tistory.com/"
	})

	w := doRequest(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, "https://demo.tistory.com", data["blog"])
}

func TestMetricsEndpoint(t *testing.T) {
	_, router := newTestServer(t, nil)

	w := doRequest(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	_, router := newTestServer(t, nil)

	w := doRequest(router, http.MethodOptions, "/api/v1/publish", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPublishHandlerValidation(t *testing.T) {
	_, router := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "missing content", body: `{"title":"t"}`, code: "INVALID_REQUEST"},
		{name: "blank title", body: `{"title":"  ","content":"<p>x</p>"}`, code: "INVALID_REQUEST"},
		{name: "no webhook", body: `{"title":"t","content":"<p>x</p>"}`, code: "WEBHOOK_REQUIRED"},
		{name: "bad webhook", body: `{"title":"t","content":"<p>x</p>","webhook":"ftp://example.com/hook"}`, code: "INVALID_WEBHOOK"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/api/v1/publish", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestPublishHandlerReportsFailureToWebhook(t *testing.T) {
	received := make(chan WebhookPayload, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p WebhookPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		received <- p
	}))
	defer hook.Close()

	// 没有凭证，发布在启动浏览器之前失败
	_, router := newTestServer(t, nil)
	w := doRequest(router, http.MethodPost, "/api/v1/publish",
		`{"title":"t","content":"<p>x</p>","webhook":"`+hook.URL+`"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	select {
	case p := <-received:
		assert.Equal(t, EventPostFailed, p.Event)
		data := p.Data.(map[string]any)
		assert.Equal(t, runner.StatusFailed, data["status"])
		failure := data["failure"].(map[string]any)
		assert.Equal(t, string(tistory.StateInit), failure["step"])
		assert.Equal(t, string(tistory.KindPrecondition), failure["kind"])
	case <-time.After(5 * time.Second):
		t.Fatal("webhook not received")
	}
}

func TestRunHandlerRequiresFeed(t *testing.T) {
	_, router := newTestServer(t, nil)

	w := doRequest(router, http.MethodPost, "/api/v1/run", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "FEED_NOT_CONFIGURED", decodeError(t, w).Code)
}

func TestRunHandlerDryRun(t *testing.T) {
	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		_, _ = w.Write([]byte(testRSS))
	}))
	defer feedSrv.Close()

	app, router := newTestServer(t, func(c *configs.Config) {
		c.Feed.URL = feedSrv.URL
		c.Runner.DryRun = true
	})

	w := doRequest(router, http.MethodPost, "/api/v1/run?wait=true", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success bool           `json:"success"`
		Data    runner.Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Data.Found)
	assert.Equal(t, 2, resp.Data.New)
	assert.Equal(t, 1, resp.Data.DryRun)
	assert.Equal(t, 1, resp.Data.Skipped)
	assert.Zero(t, resp.Data.Published)
	require.Len(t, resp.Data.Items, 2)
	assert.Equal(t, runner.StatusDryRun, resp.Data.Items[0].Status)
	assert.Equal(t, runner.StatusSkipped, resp.Data.Items[1].Status)

	// 演练不写处理记录
	_, err := os.Stat(app.service.cfg.Ledger.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestScheduleHandlerDisabled(t *testing.T) {
	_, router := newTestServer(t, nil)

	w := doRequest(router, http.MethodGet, "/api/v1/schedule", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"enabled":false`)
}

func TestDeleteCookiesHandler(t *testing.T) {
	app, router := newTestServer(t, nil)
	path := app.service.cookiesPath()
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0600))

	w := doRequest(router, http.MethodDelete, "/api/v1/login/cookies", "")
	require.Equal(t, http.StatusOK, w.Code)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestMCPHandlers(t *testing.T) {
	app, _ := newTestServer(t, nil)
	ctx := context.Background()

	res := app.handlePublishPost(ctx, PublishPostArgs{Title: "t", Content: "<p>x</p>"})
	assert.True(t, res.IsError)
	require.Len(t, res.Content, 1)
	assert.Contains(t, res.Content[0].Text, tistory.EnvLoginID)

	res = app.handleRunFeed(ctx)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "feed.url")

	converted := convertToMCPResult(res)
	assert.True(t, converted.IsError)
	assert.Len(t, converted.Content, 1)
}

func TestSessionManager(t *testing.T) {
	app, _ := newTestServer(t, nil)
	sm := app.sessionManager

	a := sm.GetOrCreateSession("a")
	assert.Same(t, a, sm.GetOrCreateSession("a"))
	assert.NotSame(t, a, sm.GetOrCreateSession("b"))
	assert.Equal(t, 2, sm.Len())

	sm.RemoveSession("a")
	assert.Equal(t, 1, sm.Len())
}
