package tistory

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepRecorder 记录每个步骤的结果
type stepRecorder struct {
	mu      sync.Mutex
	steps   map[string]error
	retries map[string]int
}

func newStepRecorder() *stepRecorder {
	return &stepRecorder{steps: map[string]error{}, retries: map[string]int{}}
}

func (r *stepRecorder) StepFinished(step string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[step] = err
}

func (r *stepRecorder) StepRetried(operation string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries[operation]++
}

func (r *stepRecorder) SelectorResolved(string, bool) {}

func TestPublishHappyPath(t *testing.T) {
	site := newFakeSite()
	opts := fastOptions()
	opts.MinLength = 5
	p := NewPublisher(newTestSession(site.page, opts))

	res := p.Publish(context.Background(), site.credentials(), PostRequest{
		Title:    "Hello",
		BodyHTML: "<p>World</p>",
		Tags:     []string{"a", "b"},
	})

	require.True(t, res.Success, "failure: %+v", res.Failure)
	assert.Nil(t, res.Failure)
	assert.Equal(t, sitePost, res.URL)
	assert.True(t, res.HTMLInjected)
	assert.Equal(t, "EditorAPI", res.Strategy)
	assert.Equal(t, []State{
		StateInit, StateLoggedIn, StateComposerOpen, StateTitleSet, StateModeSwitched,
		StateContentInjected, StateMetaSet, StateSubmitted, StatePublishConfirmed, StateDone,
	}, res.Trace)

	assert.Equal(t, []string{"Hello"}, site.title.typed)
	assert.Equal(t, "<p>World</p>", site.editorValue)
	assert.Equal(t, []string{"a", "b"}, site.tagInput.typed)
	assert.Equal(t, 1, site.submit.clickCount())
	assert.Equal(t, 1, site.confirm.clickCount())

	require.Len(t, site.dialogs, 2)
	for _, d := range site.dialogs {
		assert.Equal(t, 1, d.accepts, d.message)
		assert.Equal(t, 0, d.dismisses, d.message)
	}
}

func TestPublishFallsBackToPlainText(t *testing.T) {
	site := newFakeSite(withoutRawMode(), withVisualFrame())
	recorder := newStepRecorder()
	opts := fastOptions()
	opts.Observer = recorder
	p := NewPublisher(newTestSession(site.page, opts))

	res := p.Publish(context.Background(), site.credentials(), PostRequest{
		Title:    "Hello",
		BodyHTML: "<p>World</p>",
	})

	require.True(t, res.Success, "failure: %+v", res.Failure)
	assert.False(t, res.HTMLInjected)
	assert.Equal(t, "IFrameBody", res.Strategy)
	assert.Contains(t, res.Trace, StateContentInjected)
	assert.NotContains(t, res.Trace, StateModeSwitched)
	assert.NotContains(t, res.Trace, StateMetaSet)

	assert.Equal(t, KindModeSwitch, KindOf(recorder.steps[string(StateModeSwitched)]))
	assert.Empty(t, site.editorValue)
}

func TestPublishAbortsWhenContentUnverified(t *testing.T) {
	site := newFakeSite(withBrokenEditor())
	p := NewPublisher(newTestSession(site.page, fastOptions()))

	res := p.Publish(context.Background(), site.credentials(), PostRequest{
		Title:    "Hello",
		BodyHTML: "<p>" + strings.Repeat("내용 ", 40) + "</p>",
	})

	assert.False(t, res.Success)
	require.NotNil(t, res.Failure)
	assert.Equal(t, StateContentInjected, res.Failure.Step)
	assert.Equal(t, KindContent, res.Failure.Kind)
	assert.Empty(t, res.URL)
	assert.Equal(t, 0, site.submit.clickCount())
	assert.NotContains(t, res.Trace, StateContentInjected)

	err := res.Err()
	require.Error(t, err)
	assert.Equal(t, KindContent, KindOf(err))
}

func TestPublishConfirmPolicy(t *testing.T) {
	newSite := func() *fakeSite {
		site := newFakeSite()
		// 发布层一直不出现
		site.submit.onClick = nil
		return site
	}

	t.Run("optimistic", func(t *testing.T) {
		site := newSite()
		opts := fastOptions()
		opts.MinLength = 5
		res := NewPublisher(newTestSession(site.page, opts)).Publish(context.Background(), site.credentials(), PostRequest{Title: "t", BodyHTML: "<p>World</p>"})

		require.True(t, res.Success, "failure: %+v", res.Failure)
		assert.Equal(t, siteComposer, res.URL)
		assert.Contains(t, res.Trace, StatePublishConfirmed)
	})

	t.Run("strict", func(t *testing.T) {
		site := newSite()
		opts := fastOptions()
		opts.MinLength = 5
		opts.ConfirmPolicy = ConfirmStrict
		res := NewPublisher(newTestSession(site.page, opts)).Publish(context.Background(), site.credentials(), PostRequest{Title: "t", BodyHTML: "<p>World</p>"})

		assert.False(t, res.Success)
		require.NotNil(t, res.Failure)
		assert.Equal(t, StatePublishConfirmed, res.Failure.Step)
		assert.Equal(t, KindPublish, res.Failure.Kind)
	})
}

func TestPublishRetriesStepOnDialogFailure(t *testing.T) {
	t.Run("retried", func(t *testing.T) {
		site := newFakeSite(withFailingDraftDialog(1))
		recorder := newStepRecorder()
		opts := fastOptions()
		opts.MinLength = 5
		opts.Observer = recorder
		opts.Retry.Navigate.MaxAttempts = 2
		p := NewPublisher(newTestSession(site.page, opts))

		res := p.Publish(context.Background(), site.credentials(), PostRequest{Title: "t", BodyHTML: "<p>World</p>"})

		require.True(t, res.Success, "failure: %+v", res.Failure)
		assert.Equal(t, []State{
			StateInit, StateLoggedIn, StateComposerOpen, StateTitleSet, StateModeSwitched,
			StateContentInjected, StateSubmitted, StatePublishConfirmed, StateDone,
		}, res.Trace)
		assert.Equal(t, 1, recorder.retries["navigate"])

		composerVisits := 0
		for _, u := range site.page.navigations {
			if u == siteComposer {
				composerVisits++
			}
		}
		assert.Equal(t, 2, composerVisits)
	})

	t.Run("single attempt aborts", func(t *testing.T) {
		site := newFakeSite(withFailingDraftDialog(1))
		recorder := newStepRecorder()
		opts := fastOptions()
		opts.Observer = recorder
		p := NewPublisher(newTestSession(site.page, opts))

		res := p.Publish(context.Background(), site.credentials(), PostRequest{Title: "t", BodyHTML: "<p>World</p>"})

		assert.False(t, res.Success)
		require.NotNil(t, res.Failure)
		assert.Equal(t, StateComposerOpen, res.Failure.Step)
		assert.Equal(t, KindDialog, res.Failure.Kind)
		assert.Contains(t, res.Failure.Message, "dialog handle lost")
		assert.NotContains(t, res.Trace, StateComposerOpen)
		assert.Zero(t, recorder.retries["navigate"])
		assert.Empty(t, site.title.typed)
	})
}

func TestSingleAttemptPolicyNamedByState(t *testing.T) {
	for _, state := range []State{StateTitleSet, StateModeSwitched} {
		policy := singleAttempt(state)
		assert.Equal(t, string(state), policy.OperationName)
		assert.EqualValues(t, 1, policy.MaxAttempts)
	}
}

func TestPublishPreconditions(t *testing.T) {
	site := newFakeSite()
	p := NewPublisher(newTestSession(site.page, fastOptions()))

	res := p.Publish(context.Background(), Credentials{BaseURL: siteBase}, PostRequest{Title: "t", BodyHTML: "b"})
	require.NotNil(t, res.Failure)
	assert.Equal(t, StateInit, res.Failure.Step)
	assert.Equal(t, KindPrecondition, res.Failure.Kind)
	assert.Contains(t, res.Failure.Message, EnvLoginID)
	assert.Contains(t, res.Failure.Message, EnvPassword)
	assert.Empty(t, site.page.navigations)

	res = p.Publish(context.Background(), site.credentials(), PostRequest{Title: " ", BodyHTML: "b"})
	require.NotNil(t, res.Failure)
	assert.Equal(t, KindPrecondition, res.Failure.Kind)
	assert.Empty(t, site.page.navigations)
}

func TestPublishReusesLogin(t *testing.T) {
	site := newFakeSite()
	opts := fastOptions()
	opts.MinLength = 5
	p := NewPublisher(newTestSession(site.page, opts))
	req := PostRequest{Title: "t", BodyHTML: "<p>World</p>"}

	first := p.Publish(context.Background(), site.credentials(), req)
	require.True(t, first.Success, "failure: %+v", first.Failure)

	// 第二篇之前编辑器恢复为可视模式
	site.indicator.setText("기본모드")
	second := p.Publish(context.Background(), site.credentials(), req)
	require.True(t, second.Success, "failure: %+v", second.Failure)

	logins := 0
	for _, u := range site.page.navigations {
		if u == DefaultLoginURL {
			logins++
		}
	}
	assert.Equal(t, 1, logins)
	assert.Equal(t, 1, site.loginSubmit.clickCount())
	assert.Equal(t, StateLoggedIn, second.Trace[1])
}

func TestPublishScansForPublishControl(t *testing.T) {
	page := newFakePage()
	save := newElement("임시저장")
	publish := newElement("").withAttr("value", "발행")
	cancel := newElement("취소")
	page.add("", clickableSelector, cancel, publish, save)

	p := NewPublisher(newTestSession(page, fastOptions()))
	el, ok := p.scanPublishControl(context.Background())
	require.True(t, ok)
	assert.Same(t, save, el)
}

func TestPublishRank(t *testing.T) {
	tests := []struct {
		label string
		id    string
		want  int
	}{
		{label: "저장", want: 3},
		{label: "Save draft", want: 3},
		{id: "save-btn", want: 3},
		{label: "발행", want: 2},
		{label: "공개 발행", want: 2},
		{id: "publish-layer-btn", want: 2},
		{label: "게시", want: 1},
		{label: "완료", want: 1},
		{label: "Done", want: 1},
		{label: "취소", want: 0},
		{label: "", want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, publishRank(tt.label, tt.id), "%q/%q", tt.label, tt.id)
	}
}

func TestAbsoluteURL(t *testing.T) {
	assert.Equal(t, siteComposer, absoluteURL(siteBase, "/manage/newpost/"))
	assert.Equal(t, "https://other.example.com/write", absoluteURL(siteBase, "https://other.example.com/write"))
	assert.Empty(t, absoluteURL(siteBase, "javascript:void(0)"))
	assert.Empty(t, absoluteURL(siteBase, "#"))
	assert.Empty(t, absoluteURL(siteBase, ""))
}

func TestCredentials(t *testing.T) {
	c := Credentials{LoginID: "me", Password: "pw", BaseURL: "https://demo.tistory.com/"}
	assert.NoError(t, c.Validate())
	assert.Equal(t, "https://demo.tistory.com", c.BlogURL())
	assert.NotContains(t, c.String(), "pw")

	err := Credentials{LoginID: "me"}.Validate()
	require.Error(t, err)
	assert.True(t, IsKind(err, KindPrecondition))
	assert.Contains(t, err.Error(), EnvPassword)
	assert.Contains(t, err.Error(), EnvBlogAddress)
	assert.NotContains(t, err.Error(), EnvLoginID)
}
