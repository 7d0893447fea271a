package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xpzouying/tistory-autopost/tistory"
)

const defaultProcessTimeout = 10 * time.Minute

// ProcessPoster 在子进程中运行 `post` 子命令发布文章，浏览器崩溃不会影响调度进程。
// 正文写入临时文件，通过 --body-file 传递。
type ProcessPoster struct {
	// Executable 为空时使用当前程序
	Executable string
	// BaseArgs 放在 post 子命令之前的参数，例如 --config
	BaseArgs []string
	Timeout  time.Duration
	TempDir  string
}

func (p *ProcessPoster) Post(ctx context.Context, req tistory.PostRequest) tistory.Result {
	if err := req.Validate(); err != nil {
		return tistory.Aborted(tistory.StateInit, err)
	}

	bodyFile, cleanup, err := p.stageBody(req.BodyHTML)
	if err != nil {
		return tistory.Aborted(tistory.StateInit, err)
	}
	defer cleanup()

	exe := p.Executable
	if exe == "" {
		if exe, err = os.Executable(); err != nil {
			return tistory.Aborted(tistory.StateInit, errors.Wrap(err, "locate executable"))
		}
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProcessTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, p.BaseArgs...), "post",
		"--title", req.Title,
		"--body-file", bodyFile,
		"--json",
	)
	if req.Category != "" {
		args = append(args, "--category", req.Category)
	}
	if len(req.Tags) > 0 {
		args = append(args, "--tags", strings.Join(req.Tags, ","))
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logrus.Infof("启动发布子进程: %s post --title %q", exe, req.Title)
	runErr := cmd.Run()

	res, parsed := parseResult(stdout.Bytes())
	if runErr == nil {
		if !parsed {
			// 没有结果行就无法确认已发布
			return tistory.Aborted(tistory.StateInit, &tistory.AutomationError{
				Kind:   tistory.KindPublish,
				Reason: "post process exited without a result",
			})
		}
		return res
	}

	if parsed && res.Failure != nil {
		return res
	}
	msg := strings.TrimSpace(stderr.String())
	if len(msg) > 500 {
		msg = msg[len(msg)-500:]
	}
	return tistory.Aborted(tistory.StateInit, errors.Wrapf(runErr, "post process failed: %s", msg))
}

func (p *ProcessPoster) stageBody(body string) (string, func(), error) {
	f, err := os.CreateTemp(p.TempDir, "tistory-post-*.html")
	if err != nil {
		return "", nil, errors.Wrap(err, "create body file")
	}
	cleanup := func() {
		if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
			logrus.Warnf("删除临时文件失败: %v", err)
		}
	}
	if _, err := f.WriteString(body); err != nil {
		f.Close()
		cleanup()
		return "", nil, errors.Wrap(err, "write body file")
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, errors.Wrap(err, "close body file")
	}
	return f.Name(), cleanup, nil
}

// parseResult 取 stdout 最后一个 JSON 行作为结果
func parseResult(out []byte) (tistory.Result, bool) {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var res tistory.Result
		if err := json.Unmarshal([]byte(line), &res); err == nil {
			return res, true
		}
	}
	return tistory.Result{}, false
}
