// Package retry 实现 GitHub 与 LLM 客户端共享的重试骨架：固定间隔、显式次数预算、
// 失败分类与结构化日志。同一逻辑调用的重试严格串行。
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/repolens/repolens/internal/logging"
)

const (
	DefaultMaxRetries = 3
	DefaultDelay      = time.Second
)

// Policy 描述重试预算：MaxRetries 次重试，即最多 MaxRetries+1 次尝试。
type Policy struct {
	MaxRetries int
	Delay      time.Duration
}

// DefaultPolicy 返回 3 次重试、1s 固定间隔的默认策略。
func DefaultPolicy() Policy {
	return Policy{MaxRetries: DefaultMaxRetries, Delay: DefaultDelay}
}

// Attempts 返回总尝试次数。
func (p Policy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// Call 标识一次逻辑调用，用于日志与错误信息。
type Call struct {
	// ID 关联同一逻辑调用的全部日志，为空时不输出。
	ID      string
	Service string
	Name    string
	Target  string
	Policy  Policy
	Logger  *logrus.Logger
	// Sleep 可在测试中替换；默认使用可被 ctx 取消的定时器。
	Sleep func(ctx context.Context, d time.Duration) error
}

func (c Call) identity() string {
	if c.Target == "" {
		return c.Service + "." + c.Name
	}
	return fmt.Sprintf("%s.%s(%s)", c.Service, c.Name, c.Target)
}

// ExhaustedError 表示可重试错误耗尽了预算，调用方需映射为各自的领域错误。
type ExhaustedError struct {
	Call     string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Call, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Do 在显式的有界循环里执行 fn。attempt 从 1 开始计数。
//
//   - Retryable：记录 warn、等待固定间隔后重试，耗尽后记录 error 并返回 *ExhaustedError；
//   - Unauthenticated：立即返回包装了 ErrUnauthenticated 的错误；
//   - Terminal：立即原样返回。
func Do[T any](ctx context.Context, call Call, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	attempts := call.Policy.Attempts()
	sleep := call.Sleep
	if sleep == nil {
		sleep = waitFor
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn(ctx, attempt)
		if err == nil {
			return result, nil
		}

		switch Classify(err) {
		case Unauthenticated:
			call.log(logrus.WarnLevel, "credential_rejected", attempt, err)
			return zero, unauthenticated(err)
		case Terminal:
			return zero, err
		}

		lastErr = err
		if attempt == attempts {
			break
		}
		call.log(logrus.WarnLevel, "upstream_retry", attempt, err)
		if err := sleep(ctx, call.Policy.Delay); err != nil {
			return zero, err
		}
	}

	call.log(logrus.ErrorLevel, "upstream_exhausted", attempts, lastErr)
	return zero, &ExhaustedError{Call: call.identity(), Attempts: attempts, Last: lastErr}
}

func unauthenticated(err error) error {
	if errors.Is(err, ErrUnauthenticated) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
}

func (c Call) log(level logrus.Level, msg string, attempt int, err error) {
	if c.Logger == nil {
		return
	}
	fields := logging.CallFields(c.Service, c.Name, c.Target, attempt)
	fields["action"] = "upstream_call"
	if c.ID != "" {
		fields["call_id"] = c.ID
	}
	fields["max_attempts"] = c.Policy.Attempts()
	fields["class"] = Classify(err).String()
	if code := StatusCode(err); code != 0 {
		fields["upstream_status"] = code
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	c.Logger.WithFields(fields).Log(level, msg)
}

func waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
