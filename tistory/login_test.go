package tistory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginThroughKakao(t *testing.T) {
	site := newFakeSite()
	s := newTestSession(site.page, fastOptions())

	require.NoError(t, NewLogin(s).Login(context.Background(), site.credentials()))

	assert.Equal(t, 1, site.ssoButton.clickCount())
	assert.Equal(t, []string{"user@example.com"}, site.loginID.typed)
	assert.Equal(t, []string{"secret"}, site.password.typed)
	assert.Equal(t, 1, site.loginSubmit.clickCount())

	u, _ := site.page.URL(context.Background())
	assert.Equal(t, siteManage, u)
}

func TestLoginAlreadyLoggedIn(t *testing.T) {
	site := newFakeSite()
	site.page.redirects[DefaultLoginURL] = siteManage
	s := newTestSession(site.page, fastOptions())

	require.NoError(t, NewLogin(s).Login(context.Background(), site.credentials()))
	assert.Equal(t, 0, site.ssoButton.clickCount())
	assert.Empty(t, site.loginID.typed)
}

func TestLoginFormNotFound(t *testing.T) {
	page := newFakePage()
	s := newTestSession(page, fastOptions())

	err := NewLogin(s).Login(context.Background(), Credentials{LoginID: "id", Password: "pw", BaseURL: siteBase})
	require.Error(t, err)
	assert.Equal(t, KindLogin, KindOf(err))
	assert.Contains(t, err.Error(), "form not found")
}

func TestLoginRejected(t *testing.T) {
	site := newFakeSite()
	// 密码错误时停留在登录页
	site.loginSubmit.onClick = nil
	s := newTestSession(site.page, fastOptions())

	err := NewLogin(s).Login(context.Background(), site.credentials())
	require.Error(t, err)
	assert.Equal(t, KindLogin, KindOf(err))
	assert.Contains(t, err.Error(), "still on login page")
}

func TestCheckLoginStatus(t *testing.T) {
	t.Run("已登录", func(t *testing.T) {
		site := newFakeSite()
		s := newTestSession(site.page, fastOptions())

		ok, err := NewLogin(s).CheckLoginStatus(context.Background(), site.credentials())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("未登录", func(t *testing.T) {
		site := newFakeSite()
		site.page.redirects[siteManage] = DefaultLoginURL + "?redirectUrl=" + siteManage
		s := newTestSession(site.page, fastOptions())

		ok, err := NewLogin(s).CheckLoginStatus(context.Background(), site.credentials())
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSiteIsLoginURL(t *testing.T) {
	site := DefaultSite()
	tests := []struct {
		url  string
		want bool
	}{
		{url: DefaultLoginURL, want: true},
		{url: siteKakao, want: true},
		{url: "https://example.com/login?next=/", want: true},
		{url: siteManage, want: false},
		{url: sitePost, want: false},
		{url: "https://demo.tistory.com/loginhelp", want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, site.IsLoginURL(tt.url), tt.url)
	}
}
