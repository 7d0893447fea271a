package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xpzouying/tistory-autopost/configs"
	"github.com/xpzouying/tistory-autopost/feed"
	"github.com/xpzouying/tistory-autopost/pkg/downloader"
)

func testContentConfig() configs.ContentConfig {
	return configs.Default().Content
}

func sampleArticle() feed.Article {
	link := "https://news.example.com/a/1"
	return feed.Article{
		ID:          feed.ArticleID(link),
		Title:       "반도체 수출 3개월 연속 증가 - 연합뉴스",
		Link:        link,
		Description: "<p>" + strings.Repeat("반도체 수출이 석 달 연속 늘었다. ", 5) + "</p>",
		Published:   time.Date(2025, 10, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestBuild(t *testing.T) {
	b := NewBuilder(testContentConfig(), nil, WithClock(func() time.Time {
		return time.Date(2025, 10, 15, 8, 0, 0, 0, time.UTC)
	}))

	post, err := b.Build(context.Background(), sampleArticle())
	require.NoError(t, err)

	assert.Equal(t, sampleArticle().ID, post.ArticleID)
	assert.Equal(t, TemplateRich, post.Template)
	assert.Equal(t, "반도체 수출 3개월 연속 증가", post.Request.Title)
	assert.Equal(t, "뉴스", post.Request.Category)
	assert.Equal(t, []string{"구글뉴스", "자동포스팅", "뉴스"}, post.Request.Tags)
	assert.NoError(t, post.Request.Validate())

	html := post.Request.BodyHTML
	assert.Contains(t, html, "반도체 수출이 석 달 연속 늘었다.")
	assert.Contains(t, html, "2025. 10. 15.")
	assert.NotContains(t, html, "<p><p>")
	// 描述与正文相同时不重复
	assert.NotContains(t, html, "font-style: italic")
}

func TestBuildTooShort(t *testing.T) {
	a := sampleArticle()
	a.Description = "<p>짧은 요약</p>"

	_, err := NewBuilder(testContentConfig(), nil).Build(context.Background(), a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooShort))
}

func TestBuildTruncatesBody(t *testing.T) {
	cfg := testContentConfig()
	cfg.MaxLength = 60
	cfg.Template = TemplatePlain
	cfg.RemoveMediaNames = false

	post, err := NewBuilder(cfg, nil).Build(context.Background(), sampleArticle())
	require.NoError(t, err)
	assert.Equal(t, "반도체 수출 3개월 연속 증가 - 연합뉴스", post.Request.Title)
	assert.Contains(t, post.Request.BodyHTML, "늘었다....")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "가나다", truncateRunes("가나다", 3))
	assert.Equal(t, "가나...", truncateRunes("가나 다라", 3))
	assert.Equal(t, "가나다라", truncateRunes("가나다라", 0))
}

func TestBuildPrefersFullContent(t *testing.T) {
	a := sampleArticle()
	a.Description = "<p>" + strings.Repeat("요", 60) + "</p>"
	a.Content = "<p>" + strings.Repeat("본문 내용입니다. ", 20) + "</p>"

	post, err := NewBuilder(testContentConfig(), nil).Build(context.Background(), a)
	require.NoError(t, err)
	assert.Contains(t, post.Request.BodyHTML, "본문 내용입니다.")
	assert.Contains(t, post.Request.BodyHTML, strings.Repeat("요", 60))
}

func TestBuildCoverImage(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 0x49, 0x48, 0x44, 0x52}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/cover.png" {
			_, _ = w.Write(png)
			return
		}
		_, _ = w.Write([]byte("<html>not an image</html>"))
	}))
	defer srv.Close()

	b := NewBuilder(testContentConfig(), nil, WithImageProbe(downloader.NewImageProbe(srv.Client())))

	a := sampleArticle()
	a.ImageURL = srv.URL + "/cover.png"
	post, err := b.Build(context.Background(), a)
	require.NoError(t, err)
	assert.Contains(t, post.Request.BodyHTML, `<img src="`+srv.URL+`/cover.png"`)

	a.ImageURL = srv.URL + "/page.html"
	post, err = b.Build(context.Background(), a)
	require.NoError(t, err)
	assert.NotContains(t, post.Request.BodyHTML, "<img")
}

func TestBuildWithImprover(t *testing.T) {
	stub := &stubCompleter{replies: map[string]string{
		titleKey:   "더 나은 제목",
		contentKey: strings.Repeat("요약 문장입니다. ", 10),
		tagsKey:    "반도체",
	}}
	cfg := testContentConfig()
	im := NewImprover(stub, allFeatures(), cfg.DefaultTags)

	post, err := NewBuilder(cfg, im).Build(context.Background(), sampleArticle())
	require.NoError(t, err)
	assert.Equal(t, "더 나은 제목", post.Request.Title)
	assert.Contains(t, post.Request.BodyHTML, "요약 문장입니다.")
	assert.Equal(t, []string{"구글뉴스", "자동포스팅", "뉴스", "반도체"}, post.Request.Tags)
	// 原描述作为斜体摘要保留
	assert.Contains(t, post.Request.BodyHTML, "font-style: italic")
	assert.Contains(t, stub.prompts[0], "반도체 수출 3개월 연속 증가\"")
}
