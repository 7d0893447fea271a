package tistory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookup struct {
	candidate string
	found     bool
}

func newRecordingResolver(page Page) (*Resolver, *[]lookup) {
	var seen []lookup
	r := NewResolver(page,
		WithTimeoutCap(time.Millisecond),
		WithPollInterval(time.Millisecond),
		WithLookupObserver(func(_ string, c SelectorCandidate, found bool) {
			seen = append(seen, lookup{candidate: c.String(), found: found})
		}),
	)
	return r, &seen
}

func TestResolveFallsBackInOrder(t *testing.T) {
	page := newFakePage()
	third := newElement("")
	page.add("", "#third", third)

	r, seen := newRecordingResolver(page)
	candidates := []SelectorCandidate{
		CSS("#first", time.Second),
		CSS("#second", time.Second),
		CSS("#third", time.Second),
	}

	el, ok := r.Resolve(context.Background(), "test", candidates)
	require.True(t, ok)
	assert.Same(t, third, el)
	assert.Equal(t, []lookup{
		{candidate: "#first", found: false},
		{candidate: "#second", found: false},
		{candidate: "#third", found: true},
	}, *seen)
}

func TestResolveStopsAtFirstMatch(t *testing.T) {
	page := newFakePage()
	first := newElement("")
	page.add("", "#first", first)
	page.add("", "#second", newElement(""))

	r, seen := newRecordingResolver(page)
	el, ok := r.Resolve(context.Background(), "test", []SelectorCandidate{
		CSS("#first", time.Second),
		CSS("#second", time.Second),
		CSS("#third", time.Second),
	})

	require.True(t, ok)
	assert.Same(t, first, el)
	assert.Len(t, *seen, 1)
	assert.False(t, page.queried("#second"))
	assert.False(t, page.queried("#third"))
}

func TestResolveSkipsHiddenElements(t *testing.T) {
	page := newFakePage()
	hidden := newElement("").hide()
	visible := newElement("")
	page.add("", "button", hidden, visible)

	r, _ := newRecordingResolver(page)
	el, ok := r.Resolve(context.Background(), "test", []SelectorCandidate{CSS("button", time.Second)})
	require.True(t, ok)
	assert.Same(t, visible, el)
}

func TestResolveNotFoundIsNormal(t *testing.T) {
	page := newFakePage()
	page.add("", "#only", newElement("").hide())

	r, seen := newRecordingResolver(page)
	el, ok := r.Resolve(context.Background(), "test", []SelectorCandidate{
		CSS("#missing", time.Second),
		CSS("#only", time.Second),
	})
	assert.False(t, ok)
	assert.Nil(t, el)
	assert.Len(t, *seen, 2)
}

func TestResolveTextCandidate(t *testing.T) {
	page := newFakePage()
	cancel := newElement("취소")
	ok := newElement(" 확인 ")
	submit := newElement("").withAttr("value", "발행")
	page.add("", "button", cancel, ok)
	page.add("", "input", submit)

	r, _ := newRecordingResolver(page)

	el, found := r.Resolve(context.Background(), "confirm", []SelectorCandidate{Text("button", time.Second, "확인", "OK")})
	require.True(t, found)
	assert.Same(t, ok, el)

	el, found = r.Resolve(context.Background(), "publish", []SelectorCandidate{Text("input", time.Second, "발행")})
	require.True(t, found)
	assert.Same(t, submit, el)
}

func TestResolveWaitsForLateElement(t *testing.T) {
	page := newFakePage()
	late := newElement("").hide()
	page.add("", "#late", late)

	go func() {
		time.Sleep(20 * time.Millisecond)
		late.setHidden(false)
	}()

	r := NewResolver(page, WithPollInterval(5*time.Millisecond))
	el, ok := r.Resolve(context.Background(), "late", []SelectorCandidate{CSS("#late", 2*time.Second)})
	require.True(t, ok)
	assert.Same(t, late, el)
}

func TestResolveHonoursCandidateTimeout(t *testing.T) {
	page := newFakePage()
	r := NewResolver(page, WithPollInterval(5*time.Millisecond))

	start := time.Now()
	_, ok := r.Resolve(context.Background(), "missing", []SelectorCandidate{
		CSS("#a", 30*time.Millisecond),
		CSS("#b", 30*time.Millisecond),
	})
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestSelectorCandidateString(t *testing.T) {
	assert.Equal(t, "#title", CSS("#title", time.Second).String())
	assert.Equal(t, `button[text~"확인|OK"]`, Text("button", time.Second, "확인", "OK").String())
}
