package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xpzouying/tistory-autopost/tistory"
)

// TestHelperProcess 充当 `post` 子命令，由 ProcessPoster 启动
func TestHelperProcess(t *testing.T) {
	if os.Getenv("AUTOPOST_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}
	flags := map[string]string{}
	for i := 0; i < len(args); i++ {
		if args[i] == "post" || args[i] == "--json" {
			continue
		}
		if i+1 < len(args) {
			flags[args[i]] = args[i+1]
			i++
		}
	}

	body, err := os.ReadFile(flags["--body-file"])
	if err != nil {
		fmt.Fprintf(os.Stderr, "read body: %v", err)
		os.Exit(2)
	}

	switch flags["--title"] {
	case "crash":
		fmt.Fprint(os.Stderr, "browser crashed")
		os.Exit(1)
	case "reject":
		out, _ := json.Marshal(tistory.Aborted(tistory.StateLoggedIn, &tistory.AutomationError{Kind: tistory.KindLogin, Reason: "still on login page"}))
		fmt.Println("log line before result")
		fmt.Println(string(out))
		os.Exit(1)
	case "silent":
		os.Exit(0)
	}

	out, _ := json.Marshal(tistory.Result{
		Success:  true,
		URL:      "https://demo.tistory.com/" + flags["--category"] + "?tags=" + flags["--tags"] + "&len=" + fmt.Sprint(len(body)),
		Strategy: "EditorAPI",
	})
	fmt.Println(string(out))
	os.Exit(0)
}

func helperPoster(t *testing.T) *ProcessPoster {
	t.Helper()
	t.Setenv("AUTOPOST_HELPER_PROCESS", "1")
	return &ProcessPoster{
		Executable: os.Args[0],
		BaseArgs:   []string{"-test.run=TestHelperProcess", "--"},
		TempDir:    t.TempDir(),
	}
}

func TestProcessPoster(t *testing.T) {
	p := helperPoster(t)

	res := p.Post(context.Background(), tistory.PostRequest{
		Title:    "hello",
		BodyHTML: "<p>World</p>",
		Category: "news",
		Tags:     []string{"a", "b"},
	})
	require.True(t, res.Success, "failure: %+v", res.Failure)
	assert.Equal(t, "https://demo.tistory.com/news?tags=a,b&len=12", res.URL)
	assert.Equal(t, "EditorAPI", res.Strategy)

	// 临时正文文件已清理
	entries, err := os.ReadDir(p.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcessPosterFailures(t *testing.T) {
	p := helperPoster(t)
	req := func(title string) tistory.PostRequest {
		return tistory.PostRequest{Title: title, BodyHTML: "<p>x</p>"}
	}

	res := p.Post(context.Background(), req("reject"))
	assert.False(t, res.Success)
	require.NotNil(t, res.Failure)
	assert.Equal(t, tistory.StateLoggedIn, res.Failure.Step)
	assert.Equal(t, tistory.KindLogin, res.Failure.Kind)

	res = p.Post(context.Background(), req("crash"))
	assert.False(t, res.Success)
	require.NotNil(t, res.Failure)
	assert.Contains(t, res.Failure.Message, "browser crashed")

	res = p.Post(context.Background(), req("silent"))
	assert.False(t, res.Success)
	assert.Empty(t, res.URL)
	require.NotNil(t, res.Failure)
	assert.Equal(t, tistory.KindPublish, res.Failure.Kind)
	assert.Contains(t, res.Failure.Message, "without a result")

	res = p.Post(context.Background(), tistory.PostRequest{Title: "x"})
	require.NotNil(t, res.Failure)
	assert.Equal(t, tistory.KindPrecondition, res.Failure.Kind)

	entries, err := os.ReadDir(p.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParseResult(t *testing.T) {
	_, ok := parseResult([]byte("no json here\n"))
	assert.False(t, ok)

	res, ok := parseResult([]byte("{\"success\":false}\nlog\n{\"success\":true,\"url\":\"u\"}\n"))
	require.True(t, ok)
	assert.True(t, res.Success)
	assert.Equal(t, "u", res.URL)
}
