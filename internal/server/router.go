package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/repolens/repolens/internal/apperr"
	"github.com/repolens/repolens/internal/cache"
)

// CacheReporter 是诊断接口需要的缓存视图，测试中可替换。
type CacheReporter interface {
	State() cache.State
	IsConnected() bool
	Stats(ctx context.Context) (cache.Stats, error)
}

// AppOptions controls how the diagnostics application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Cache      CacheReporter
	ListenPort int
}

const contextKeyRequestID = "_repolens_request_id"

// NewApp builds the diagnostics Fiber application with request ID middleware,
// panic recovery and apperr-aware error rendering. /-/healthz is always
// registered; other routes are attached by the caller.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("cache is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ErrorHandler:  errorHandler(opts.Logger),
	})

	app.Use(requestContextMiddleware())
	app.Use(recover.New())

	app.Get("/-/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"cache":     opts.Cache.State().String(),
			"connected": opts.Cache.IsConnected(),
		})
	})

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID 并写入响应头。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// errorHandler 将 apperr 错误渲染为 {code, message}，Fiber 自身错误保留其状态码。
func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{
				"code":    codeForStatus(fiberErr.Code),
				"message": fiberErr.Message,
			})
		}

		code := apperr.CodeOf(err)
		message := err.Error()
		var appErr *apperr.Error
		if errors.As(err, &appErr) && appErr.Message != "" {
			message = appErr.Message
		}

		logger.WithFields(logrus.Fields{
			"action":     "diagnostics",
			"path":       c.Path(),
			"request_id": RequestID(c),
			"code":       code,
			"error":      err.Error(),
		}).Warn("diagnostics_request_failed")

		return c.Status(StatusFor(code)).JSON(fiber.Map{
			"code":    code,
			"message": message,
		})
	}
}

// StatusFor 返回错误码对应的 HTTP 状态。
func StatusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeNotFound, apperr.CodeRepositoryNotFound:
		return fiber.StatusNotFound
	case apperr.CodeRateLimitExceeded:
		return fiber.StatusTooManyRequests
	case apperr.CodeValidation:
		return fiber.StatusBadRequest
	case apperr.CodeServiceUnavailable, apperr.CodeCache:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func codeForStatus(status int) apperr.Code {
	switch status {
	case fiber.StatusNotFound:
		return apperr.CodeNotFound
	case fiber.StatusBadRequest:
		return apperr.CodeValidation
	default:
		return apperr.CodeInternal
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
