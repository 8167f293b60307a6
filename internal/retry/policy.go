// Package retry 提供显式的重试策略值对象。
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// 默认限流重试参数
const (
	DefaultMaxAttempts = 5
	DefaultInitialWait = 15 * time.Second
	DefaultMultiplier  = 4
)

// SleepFunc 等待指定时长，ctx 取消时提前返回错误
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy 指数退避重试策略
type Policy struct {
	MaxAttempts int
	InitialWait time.Duration
	Multiplier  float64
	// RetryIf 判断错误是否触发重试，为 nil 时不重试
	RetryIf func(error) bool
	// Sleep 为 nil 时使用 timer 等待
	Sleep SleepFunc
}

// NewPolicy 创建重试策略
func NewPolicy(maxAttempts int, initialWait time.Duration, multiplier float64, retryIf func(error) bool) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		InitialWait: initialWait,
		Multiplier:  multiplier,
		RetryIf:     retryIf,
	}
}

// DefaultPolicy 默认策略：15s 起步，每次乘 4，最多 5 次
func DefaultPolicy(retryIf func(error) bool) Policy {
	return NewPolicy(DefaultMaxAttempts, DefaultInitialWait, DefaultMultiplier, retryIf)
}

// ExhaustedError 重试次数耗尽
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("重试 %d 次后仍失败: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Backoff 第 attempt 次（从 1 开始）失败后的等待时长
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(p.InitialWait) * math.Pow(p.Multiplier, float64(attempt-1)))
}

// Do 按策略执行 fn。不可重试的错误立即返回，次数耗尽返回 *ExhaustedError
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if p.RetryIf == nil || !p.RetryIf(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		if serr := sleep(ctx, p.Backoff(attempt)); serr != nil {
			return fmt.Errorf("等待重试时被取消: %w", serr)
		}
	}
	return &ExhaustedError{Attempts: maxAttempts, Err: err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
