// Package apperr 定义集成层对外暴露的错误分类。每个出口只会返回三种结果之一：
// 真实结果、合成结果，或者带 Code 的 *Error，调用方据此映射状态码。
package apperr

import (
	"errors"
	"fmt"
)

// Code 是稳定的错误码，供路由层映射用户可见的状态。
type Code string

const (
	CodeNotFound           Code = "NOT_FOUND"
	CodeRepositoryNotFound Code = "REPOSITORY_NOT_FOUND"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
	CodeServiceUnavailable Code = "LLM_SERVICE_UNAVAILABLE"
	CodeCache              Code = "CACHE_ERROR"
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeInternal           Code = "INTERNAL_ERROR"
)

// Error 携带错误码、描述与底层原因，原因不会被序列化。
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Sentinels，仅用于 errors.Is 按错误码匹配。
var (
	ErrNotFound           = &Error{Code: CodeNotFound}
	ErrRepositoryNotFound = &Error{Code: CodeRepositoryNotFound}
	ErrRateLimitExceeded  = &Error{Code: CodeRateLimitExceeded}
	ErrServiceUnavailable = &Error{Code: CodeServiceUnavailable}
	ErrCache              = &Error{Code: CodeCache}
	ErrValidation         = &Error{Code: CodeValidation}
	ErrInternal           = &Error{Code: CodeInternal}
)

// New 创建带错误码的错误。
func New(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层原因。
func (e *Error) Unwrap() error {
	return e.cause
}

// Is 让 errors.Is 依据错误码判断，忽略 Message 与原因。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func NotFound(message string) *Error {
	return New(CodeNotFound, message, nil)
}

func RepositoryNotFound(owner, repo string, cause error) *Error {
	return New(CodeRepositoryNotFound, fmt.Sprintf("repository %s/%s not found", owner, repo), cause)
}

func RateLimitExceeded(message string, cause error) *Error {
	return New(CodeRateLimitExceeded, message, cause)
}

func ServiceUnavailable(message string, cause error) *Error {
	return New(CodeServiceUnavailable, message, cause)
}

// Cache 包装远端缓存操作失败，op/key 会写入描述方便排查。
func Cache(op, key string, cause error) *Error {
	if key == "" {
		return New(CodeCache, fmt.Sprintf("cache %s failed", op), cause)
	}
	return New(CodeCache, fmt.Sprintf("cache %s %q failed", op, key), cause)
}

func Validation(field, reason string) *Error {
	return New(CodeValidation, fmt.Sprintf("%s: %s", field, reason), nil)
}

func Internal(message string, cause error) *Error {
	return New(CodeInternal, message, cause)
}

// CodeOf 返回 err 链上的第一个错误码；非分类错误返回 CodeInternal，nil 返回空串。
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Classified 保证出口错误一定带错误码，未分类的错误统一包装为 INTERNAL_ERROR。
func Classified(err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return Internal("unexpected failure", err)
}
