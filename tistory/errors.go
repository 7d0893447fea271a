package tistory

import (
	"github.com/pkg/errors"
)

// ErrorKind 错误分类
type ErrorKind string

const (
	KindPrecondition ErrorKind = "PreconditionError"
	KindLogin        ErrorKind = "LoginError"
	KindNavigation   ErrorKind = "NavigationError"
	KindModeSwitch   ErrorKind = "ModeSwitchError"
	KindContent      ErrorKind = "ContentError"
	KindPublish      ErrorKind = "PublishError"
	KindDialog       ErrorKind = "DialogError"
	KindUnknown      ErrorKind = "UnknownError"
)

// AutomationError 自动化过程中的错误
type AutomationError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *AutomationError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Reason + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Reason
}

func (e *AutomationError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, reason string, cause error) *AutomationError {
	return &AutomationError{Kind: kind, Reason: reason, Err: cause}
}

// KindOf 取出错误分类，不是 AutomationError 时返回 KindUnknown
func KindOf(err error) ErrorKind {
	var ae *AutomationError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// IsKind 判断错误分类
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// retryable 前置条件错误和模式切换错误不重试
func retryable(err error) bool {
	switch KindOf(err) {
	case KindPrecondition, KindModeSwitch:
		return false
	}
	return true
}
