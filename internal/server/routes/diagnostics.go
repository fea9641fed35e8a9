package routes

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/repolens/repolens/internal/cache"
	"github.com/repolens/repolens/internal/llm/provider"
)

// StatsSource 提供缓存统计，远端失败时返回 CACHE_ERROR。
type StatsSource interface {
	Stats(ctx context.Context) (cache.Stats, error)
}

// RegisterCacheRoutes 暴露 /-/cache/stats，后端不可达时由全局错误处理渲染为 503。
func RegisterCacheRoutes(app *fiber.App, source StatsSource) {
	if app == nil || source == nil {
		return
	}

	app.Get("/-/cache/stats", func(c fiber.Ctx) error {
		ctx := c.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		stats, err := source.Stats(ctx)
		if err != nil {
			return err
		}
		return c.JSON(stats)
	})
}

// RegisterProviderRoutes 暴露 /-/providers 诊断接口，列出已注册的 LLM 提供方。
// active 为当前配置选中的提供方键，会在列表中标记。
func RegisterProviderRoutes(app *fiber.App, active string) {
	if app == nil {
		return
	}

	app.Get("/-/providers", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"providers": encodeProviders(provider.List(), active),
			"active":    strings.ToLower(strings.TrimSpace(active)),
		})
	})

	app.Get("/-/providers/:key", func(c fiber.Ctx) error {
		key := strings.ToLower(strings.TrimSpace(c.Params("key")))
		if key == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "provider_key_required"})
		}
		spec, ok := provider.Resolve(key)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "provider_not_found"})
		}
		return c.JSON(encodeProvider(spec, active))
	})
}

type providerPayload struct {
	Key            string `json:"key"`
	Description    string `json:"description"`
	DefaultBaseURL string `json:"default_base_url"`
	DefaultModel   string `json:"default_model"`
	Path           string `json:"path"`
	Active         bool   `json:"active"`
}

func encodeProviders(specs []provider.Spec, active string) []providerPayload {
	if len(specs) == 0 {
		return nil
	}
	result := make([]providerPayload, 0, len(specs))
	for _, spec := range specs {
		result = append(result, encodeProvider(spec, active))
	}
	return result
}

func encodeProvider(spec provider.Spec, active string) providerPayload {
	return providerPayload{
		Key:            spec.Key,
		Description:    spec.Description,
		DefaultBaseURL: spec.DefaultBaseURL,
		DefaultModel:   spec.DefaultModel,
		Path:           spec.Path,
		Active:         strings.EqualFold(spec.Key, strings.TrimSpace(active)),
	}
}
