package downloader

import (
	"os"
	"unicode/utf8"

	"github.com/h2non/filetype"
	"github.com/pkg/errors"
)

// MaxBodyFileSize 正文文件大小上限
const MaxBodyFileSize = 5 << 20

// ReadTextFile 读取正文文件，拒绝图片、压缩包等二进制文件
func ReadTextFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Wrap(err, "stat body file")
	}
	if info.IsDir() {
		return "", errors.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxBodyFileSize {
		return "", errors.Errorf("body file too large: %d bytes", info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "read body file")
	}

	if kind, _ := filetype.Match(data); kind != filetype.Unknown {
		return "", errors.Errorf("body file is %s, expected text", kind.MIME.Value)
	}
	if !utf8.Valid(data) {
		return "", errors.New("body file is not valid UTF-8 text")
	}
	return string(data), nil
}
