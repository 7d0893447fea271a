package tistory

import (
	"fmt"
	"strings"
)

// 凭证对应的环境变量名
const (
	EnvLoginID     = "TISTORY_ID"
	EnvPassword    = "TISTORY_PW"
	EnvBlogAddress = "BLOG_ADDRESS"
)

// Credentials 登录凭证，只保存在内存中。
type Credentials struct {
	LoginID  string
	Password string
	BaseURL  string
}

// Validate 检查必填项，缺失时返回 PreconditionError。
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.LoginID) == "" {
		missing = append(missing, EnvLoginID)
	}
	if c.Password == "" {
		missing = append(missing, EnvPassword)
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		missing = append(missing, EnvBlogAddress)
	}
	if len(missing) > 0 {
		return newError(KindPrecondition, fmt.Sprintf("missing required settings: %s", strings.Join(missing, ", ")), nil)
	}
	return nil
}

// BlogURL 去掉末尾斜杠的博客地址
func (c Credentials) BlogURL() string {
	return strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
}

// String 打日志用，不输出密码
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{loginId=%s, baseUrl=%s}", c.LoginID, c.BaseURL)
}

// PostRequest 一篇待发布的文章
type PostRequest struct {
	Title    string   `json:"title"`
	BodyHTML string   `json:"body_html"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Validate 标题和正文不能为空
func (r PostRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return newError(KindPrecondition, "title is required", nil)
	}
	if strings.TrimSpace(r.BodyHTML) == "" {
		return newError(KindPrecondition, "body html is required", nil)
	}
	return nil
}

// Failure 失败的步骤和原因
type Failure struct {
	Step    State     `json:"step"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Result 一次发布的最终结果，Success 和 Failure 二选一。
type Result struct {
	Success      bool     `json:"success"`
	URL          string   `json:"url,omitempty"`
	Failure      *Failure `json:"failure,omitempty"`
	Trace        []State  `json:"trace,omitempty"`
	HTMLInjected bool     `json:"html_injected"`
	Strategy     string   `json:"strategy,omitempty"`
}

// Aborted 构造失败结果
func Aborted(step State, err error) Result {
	return Result{
		Failure: &Failure{
			Step:    step,
			Kind:    KindOf(err),
			Message: err.Error(),
		},
	}
}

// Err 失败时返回对应的错误
func (r Result) Err() error {
	if r.Success || r.Failure == nil {
		return nil
	}
	return newError(r.Failure.Kind, fmt.Sprintf("aborted at %s: %s", r.Failure.Step, r.Failure.Message), nil)
}
