package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/pkg/errors"
)

// 识别文件类型只需要文件头
const sniffSize = 8192

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// ImageInfo 探测到的图片信息
type ImageInfo struct {
	URL       string `json:"url"`
	MIME      string `json:"mime"`
	Extension string `json:"extension"`
}

// ImageProbe 检查远程地址是否真的是图片，只读取文件头，不落盘
type ImageProbe struct {
	httpClient *http.Client
}

// NewImageProbe 创建图片探测器，client 为空时使用默认超时的客户端
func NewImageProbe(client *http.Client) *ImageProbe {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &ImageProbe{httpClient: client}
}

// Probe 请求图片并根据文件头判断类型
func (p *ImageProbe) Probe(ctx context.Context, imageURL string) (*ImageInfo, error) {
	if !IsImageURL(imageURL) {
		return nil, errors.New("invalid image URL format")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", sniffSize-1))
	// 部分图床校验 Referer
	if u, _ := url.Parse(imageURL); u != nil {
		req.Header.Set("Referer", fmt.Sprintf("%s://%s/", u.Scheme, u.Host))
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch image from %s", imageURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("probe failed with status %d for URL: %s", resp.StatusCode, imageURL)
	}

	head, err := io.ReadAll(io.LimitReader(resp.Body, sniffSize))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read image data")
	}

	if !filetype.IsImage(head) {
		return nil, errors.New("remote file is not a valid image")
	}
	kind, err := filetype.Image(head)
	if err != nil {
		return nil, errors.Wrap(err, "failed to detect file type")
	}

	return &ImageInfo{
		URL:       imageURL,
		MIME:      kind.MIME.Value,
		Extension: kind.Extension,
	}, nil
}

// IsImageURL 判断字符串是否为 http/https 地址
func IsImageURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	u, err := url.Parse(rawURL)
	return err == nil && u.Host != ""
}
