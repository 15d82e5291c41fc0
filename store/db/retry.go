package db

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kochabx/dbguard/errors"
)

// RetryStrategy 重试策略接口
type RetryStrategy interface {
	// NextRetry 第 attempt 次失败后（从 1 开始）的等待时间
	NextRetry(attempt int) time.Duration
}

// LinearBackoff 线性退避：Delay * attempt
type LinearBackoff struct {
	Delay time.Duration
}

// NextRetry 返回线性增长的延迟
func (l LinearBackoff) NextRetry(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return l.Delay * time.Duration(attempt)
}

// Operation 在托管连接上执行的操作
type Operation func(ctx context.Context, db *gorm.DB) error

// ExecuteWithRetry 执行 op，失败后按退避策略重试
//
// attempts 缺省时取 Config.RetryAttempts，小于 1 按 1 处理。
// 全部失败时原样返回最后一次的错误。
func (m *Manager) ExecuteWithRetry(ctx context.Context, op Operation, attempts ...int) error {
	_, err := Retry(ctx, m, func(ctx context.Context, db *gorm.DB) (struct{}, error) {
		return struct{}{}, op(ctx, db)
	}, attempts...)
	return err
}

// Retry 是 ExecuteWithRetry 的带返回值版本
func Retry[T any](ctx context.Context, m *Manager, fn func(ctx context.Context, db *gorm.DB) (T, error), attempts ...int) (T, error) {
	var zero T

	maxAttempts := m.cfg.RetryAttempts
	if len(attempts) > 0 {
		maxAttempts = attempts[0]
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// 连接不可用与其他失败同样计入重试
		db, err := m.Client()
		if err == nil {
			var v T
			if v, err = fn(ctx, db.WithContext(ctx)); err == nil {
				return v, nil
			}
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		delay := m.retryStrategy.NextRetry(attempt)
		m.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("delay", delay).
			Msg("database operation failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}
	}

	return zero, lastErr
}
