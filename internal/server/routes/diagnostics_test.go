package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/repolens/repolens/internal/cache"
	"github.com/repolens/repolens/internal/llm/provider"
	_ "github.com/repolens/repolens/internal/llm/provider/anthropic"
	_ "github.com/repolens/repolens/internal/llm/provider/openai"
	"github.com/repolens/repolens/internal/server"
)

func newDiagnosticsApp(t *testing.T, c *cache.Cache) *fiber.App {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	app, err := server.NewApp(server.AppOptions{Logger: logger, Cache: c, ListenPort: 5000})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	RegisterCacheRoutes(app, c)
	RegisterProviderRoutes(app, "openai")
	return app
}

func liveCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return cache.New(cache.Options{Client: client, Logger: logger}), mr
}

func TestCacheStatsLive(t *testing.T) {
	c, _ := liveCache(t)
	c.Set(context.Background(), "repo_analysis:octocat/Hello-World", []byte("{}"), 0)
	app := newDiagnosticsApp(t, c)

	resp, err := app.Test(httptest.NewRequest("GET", "/-/cache/stats", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var stats cache.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if stats.State != "live" || !stats.Connected || stats.RemoteKeys != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestCacheStatsBackendFailure(t *testing.T) {
	c, mr := liveCache(t)
	mr.SetError("LOADING")
	app := newDiagnosticsApp(t, c)

	resp, err := app.Test(httptest.NewRequest("GET", "/-/cache/stats", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("后端不可用应返回 503, got %d", resp.StatusCode)
	}
	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if payload["code"] != "CACHE_ERROR" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestCacheStatsWithoutRemote(t *testing.T) {
	app := newDiagnosticsApp(t, cache.New(cache.Options{}))

	resp, err := app.Test(httptest.NewRequest("GET", "/-/cache/stats", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("未配置 Redis 时 stats 应返回 503, got %d", resp.StatusCode)
	}
}

func TestProviderRoutes(t *testing.T) {
	c, _ := liveCache(t)
	app := newDiagnosticsApp(t, c)

	resp, err := app.Test(httptest.NewRequest("GET", "/-/providers", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	var listing struct {
		Providers []providerPayload `json:"providers"`
		Active    string            `json:"active"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if listing.Active != "openai" || len(listing.Providers) < 2 {
		t.Fatalf("unexpected listing: %+v", listing)
	}
	if listing.Providers[0].Key != "anthropic" || listing.Providers[0].Active {
		t.Fatalf("列表应按键排序, got %+v", listing.Providers[0])
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/-/providers/OpenAI", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	var detail providerPayload
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if detail.Key != "openai" || !detail.Active || detail.Path == "" {
		t.Fatalf("unexpected detail: %+v", detail)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/-/providers/unknown", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestEncodeProvidersEmpty(t *testing.T) {
	if got := encodeProviders(nil, "openai"); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	payload := encodeProvider(provider.Spec{Key: "openai"}, " OPENAI ")
	if !payload.Active {
		t.Fatalf("active 匹配应忽略大小写与空白")
	}
}
