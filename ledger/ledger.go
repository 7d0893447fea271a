package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Ledger 已处理文章 ID 的记录，文件内容为 JSON 字符串数组。
// 只记录发布成功的文章，失败的文章下次运行会重试。
type Ledger struct {
	path string

	mu    sync.Mutex
	ids   []string
	index map[string]struct{}
	dirty bool
}

// Open 读取账本文件，文件不存在时返回空账本
func Open(path string) (*Ledger, error) {
	l := &Ledger{path: path, index: map[string]struct{}{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logrus.Infof("新建处理记录文件: %s", path)
		return l, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read ledger %s", path)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, errors.Wrapf(err, "parse ledger %s", path)
	}
	for _, id := range ids {
		l.add(id)
	}
	return l, nil
}

func (l *Ledger) Contains(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.index[id]
	return ok
}

// Add 记录一篇文章，重复添加无效果
func (l *Ledger) Add(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.add(id) {
		l.dirty = true
	}
}

func (l *Ledger) add(id string) bool {
	if _, ok := l.index[id]; ok || id == "" {
		return false
	}
	l.index[id] = struct{}{}
	l.ids = append(l.ids, id)
	return true
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ids)
}

// IDs 按记录顺序返回副本
func (l *Ledger) IDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ids...)
}

// Save 写临时文件后重命名，没有新增时不写盘
func (l *Ledger) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.dirty {
		return nil
	}

	data, err := json.MarshalIndent(l.ids, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal ledger")
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "create ledger dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return errors.Wrap(err, "create temp ledger")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp ledger")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp ledger")
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return errors.Wrapf(err, "replace ledger %s", l.path)
	}

	l.dirty = false
	return nil
}
