package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/repolens/repolens/internal/apperr"
)

// GetJSON 读取并解码 key。未命中返回 ok=false；只有解码失败会返回错误。
func GetJSON[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	var value T
	raw, ok := c.Get(ctx, key)
	if !ok {
		return value, false, nil
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false, apperr.New(apperr.CodeValidation, "decode cached value "+key, err)
	}
	return value, true, nil
}

// SetJSON 编码并写入 key，只有编码失败会返回错误。
func SetJSON[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return apperr.New(apperr.CodeValidation, "encode cache value "+key, err)
	}
	c.Set(ctx, key, raw, ttl)
	return nil
}
