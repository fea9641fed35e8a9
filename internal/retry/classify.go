package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// Class 是失败分类结果。
type Class int

const (
	// Retryable 覆盖网络抖动（reset/timeout/DNS）、HTTP 5xx 与 429。
	Retryable Class = iota
	// Unauthenticated 覆盖调用前检测到的无效凭证与 HTTP 401，不重试。
	Unauthenticated
	// Terminal 覆盖 403/404 及其它 4xx，不重试。
	Terminal
)

func (c Class) String() string {
	switch c {
	case Retryable:
		return "retryable"
	case Unauthenticated:
		return "unauthenticated"
	case Terminal:
		return "terminal"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// ErrUnauthenticated 表示凭证缺失、为占位符或被上游拒绝。
var ErrUnauthenticated = errors.New("credential missing or rejected")

// StatusError 表示上游返回了非 2xx 状态码。
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream %s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("upstream %s returned status %d: %s", e.URL, e.StatusCode, e.Body)
}

// StatusCode 返回 err 链上的 HTTP 状态码，不存在时返回 0。
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// Classify 将任意错误归入三类之一。无法识别的错误视为 Terminal。
func Classify(err error) Class {
	if err == nil {
		return Terminal
	}
	if errors.Is(err, ErrUnauthenticated) {
		return Unauthenticated
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusUnauthorized:
			return Unauthenticated
		case se.StatusCode == http.StatusTooManyRequests, se.StatusCode >= 500:
			return Retryable
		default:
			return Terminal
		}
	}

	if errors.Is(err, context.Canceled) {
		return Terminal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Retryable
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return Retryable
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.EPIPE) {
		return Retryable
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Retryable
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Retryable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return Retryable
	}
	return Terminal
}
