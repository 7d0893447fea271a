package tistory

import (
	"context"
	"math"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"
)

// RetryPolicy 单个步骤的重试策略
type RetryPolicy struct {
	OperationName     string        `mapstructure:"operation_name" yaml:"operation_name"`
	MaxAttempts       uint          `mapstructure:"max_attempts" yaml:"max_attempts"`
	InitialDelay      time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier" yaml:"backoff_multiplier"`
}

// Delay 第 failures 次失败之后的等待时间（failures 从 1 开始）
func (p RetryPolicy) Delay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	mult := p.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	return time.Duration(float64(p.InitialDelay) * math.Pow(mult, float64(failures-1)))
}

// RetryPolicies 每个主要步骤各自的策略
type RetryPolicies struct {
	Login    RetryPolicy `mapstructure:"login" yaml:"login"`
	Navigate RetryPolicy `mapstructure:"navigate" yaml:"navigate"`
	Write    RetryPolicy `mapstructure:"write" yaml:"write"`
	Publish  RetryPolicy `mapstructure:"publish" yaml:"publish"`
}

func DefaultRetryPolicies() RetryPolicies {
	return RetryPolicies{
		Login:    RetryPolicy{OperationName: "login", MaxAttempts: 3, InitialDelay: 2 * time.Second, BackoffMultiplier: 2},
		Navigate: RetryPolicy{OperationName: "navigate", MaxAttempts: 3, InitialDelay: time.Second, BackoffMultiplier: 2},
		Write:    RetryPolicy{OperationName: "write", MaxAttempts: 2, InitialDelay: time.Second, BackoffMultiplier: 2},
		Publish:  RetryPolicy{OperationName: "publish", MaxAttempts: 3, InitialDelay: time.Second, BackoffMultiplier: 2},
	}
}

type retryOptions struct {
	timer   retry.Timer
	onRetry func(operation string, attempt uint, err error)
}

// RetryOption WithRetry 的可选项
type RetryOption func(*retryOptions)

// WithTimer 替换等待用的计时器
func WithTimer(t retry.Timer) RetryOption {
	return func(o *retryOptions) {
		o.timer = t
	}
}

// OnRetry 失败且即将重试时回调，最后一次失败不回调
func OnRetry(fn func(operation string, attempt uint, err error)) RetryOption {
	return func(o *retryOptions) {
		o.onRetry = fn
	}
}

// WithRetry 按策略执行 op，失败后指数退避重试。
// 用尽次数后原样返回最后一次的错误；前置条件和模式切换错误不重试。
func WithRetry(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error, opts ...RetryOption) error {
	o := &retryOptions{}
	for _, opt := range opts {
		opt(o)
	}

	attempts := policy.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	failures := 0
	options := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.DelayType(func(_ uint, _ error, _ *retry.Config) time.Duration {
			return policy.Delay(failures)
		}),
		retry.OnRetry(func(n uint, err error) {
			logrus.Warnf("[%s] 第 %d/%d 次尝试失败: %v", policy.OperationName, n+1, attempts, err)
			if n+1 >= attempts {
				return
			}
			if o.onRetry != nil {
				o.onRetry(policy.OperationName, n, err)
			}
		}),
	}
	if o.timer != nil {
		options = append(options, retry.WithTimer(o.timer))
	}

	return retry.Do(func() error {
		err := op(ctx)
		if err != nil {
			failures++
		}
		return err
	}, options...)
}
