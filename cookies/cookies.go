package cookies

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// EnvCookiesPath cookies 文件路径的环境变量
const EnvCookiesPath = "COOKIES_PATH"

// DefaultFileName 默认保存在当前目录
const DefaultFileName = "tistory_cookies.json"

// Cookier 登录会话 cookies 的存取
type Cookier interface {
	LoadCookies() ([]byte, error)
	SaveCookies(data []byte) error
	DeleteCookies() error
}

type localCookie struct {
	path string
}

func NewLoadCookie(path string) Cookier {
	if path == "" {
		panic("path is required")
	}

	return &localCookie{
		path: path,
	}
}

// LoadCookies 从文件中加载 cookies。
func (c *localCookie) LoadCookies() ([]byte, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read cookies from %s", c.path)
	}
	return data, nil
}

// SaveCookies 保存 cookies 到文件中，文件只对当前用户可读。
func (c *localCookie) SaveCookies(data []byte) error {
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return errors.Wrap(err, "failed to create cookies dir")
		}
	}
	return os.WriteFile(c.path, data, 0600)
}

// DeleteCookies 删除 cookies 文件。
func (c *localCookie) DeleteCookies() error {
	if _, err := os.Stat(c.path); os.IsNotExist(err) {
		// 文件不存在，认为已经删除
		return nil
	}
	return os.Remove(c.path)
}

// GetCookiesFilePath 获取 cookies 文件路径，COOKIES_PATH 优先，否则使用当前目录
func GetCookiesFilePath() string {
	if path := os.Getenv(EnvCookiesPath); path != "" {
		return path
	}
	return DefaultFileName
}
