package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/repolens/repolens/internal/apperr"
)

const (
	scanBatch   = 100
	deleteBatch = 500
)

// TTL 返回值中的哨兵，与 Redis TTL 命令语义一致。
const (
	TTLMissing    time.Duration = -2
	TTLPersistent time.Duration = -1
)

// Entry 是 MSet 的单个写入项，按切片顺序写入。
type Entry struct {
	Key   string
	Value []byte
}

// Stats 汇总缓存状态。
type Stats struct {
	State        string `json:"state"`
	Connected    bool   `json:"connected"`
	RemoteKeys   int64  `json:"remoteKeys"`
	LocalEntries int    `json:"localEntries"`
}

// Delete 删除 keys，返回 Redis 实际删除的数量。无本地等价操作。
func (c *Cache) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	client, err := c.remote("delete", keys[0])
	if err != nil {
		return 0, err
	}
	n, err := client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, apperr.Cache("delete", keys[0], err)
	}
	return n, nil
}

// Has 判断 key 是否存在于 Redis。
func (c *Cache) Has(ctx context.Context, key string) (bool, error) {
	client, err := c.remote("has", key)
	if err != nil {
		return false, err
	}
	n, err := client.Exists(ctx, key).Result()
	if err != nil {
		return false, apperr.Cache("has", key, err)
	}
	return n > 0, nil
}

// ClearPattern 通过 SCAN 找出匹配 pattern 的 key 并分批删除，返回删除数量。
func (c *Cache) ClearPattern(ctx context.Context, pattern string) (int64, error) {
	client, err := c.remote("clear_pattern", pattern)
	if err != nil {
		return 0, err
	}

	var (
		matched []string
		cursor  uint64
	)
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return 0, apperr.Cache("clear_pattern", pattern, err)
		}
		matched = append(matched, keys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	var deleted int64
	for start := 0; start < len(matched); start += deleteBatch {
		end := min(start+deleteBatch, len(matched))
		n, err := client.Del(ctx, matched[start:end]...).Result()
		if err != nil {
			return deleted, apperr.Cache("clear_pattern", pattern, err)
		}
		deleted += n
	}
	return deleted, nil
}

// GetTTL 返回剩余存活时间；不存在返回 TTLMissing，无过期时间返回 TTLPersistent。
func (c *Cache) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	client, err := c.remote("get_ttl", key)
	if err != nil {
		return 0, err
	}
	ttl, err := client.TTL(ctx, key).Result()
	if err != nil {
		return 0, apperr.Cache("get_ttl", key, err)
	}
	return ttl, nil
}

// Expire 为已存在的 key 设置新的存活时间，key 不存在时返回 false。
func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	client, err := c.remote("expire", key)
	if err != nil {
		return false, err
	}
	ok, err := client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, apperr.Cache("expire", key, err)
	}
	return ok, nil
}

// Increment 原子地为 key 增加 by，返回新值。
func (c *Cache) Increment(ctx context.Context, key string, by int64) (int64, error) {
	client, err := c.remote("increment", key)
	if err != nil {
		return 0, err
	}
	n, err := client.IncrBy(ctx, key, by).Result()
	if err != nil {
		return 0, apperr.Cache("increment", key, err)
	}
	return n, nil
}

// MGet 批量读取，结果与 keys 一一对应，缺失项为 nil。
func (c *Cache) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	client, err := c.remote("mget", keys[0])
	if err != nil {
		return nil, err
	}
	raw, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, apperr.Cache("mget", keys[0], err)
	}
	values := make([][]byte, len(raw))
	for i, v := range raw {
		switch typed := v.(type) {
		case string:
			values[i] = []byte(typed)
		case []byte:
			values[i] = typed
		}
	}
	return values, nil
}

// MSet 在 live 状态下以一次 pipeline 写入全部条目；degraded 时逐条写入本地 map。
func (c *Cache) MSet(ctx context.Context, entries []Entry, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}
	if !c.IsConnected() {
		for _, e := range entries {
			c.localSet(e.Key, e.Value, ttl)
		}
		return nil
	}

	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.Set(ctx, e.Key, e.Value, expiration(ttl))
		}
		return nil
	})
	if err != nil {
		return apperr.Cache("mset", entries[0].Key, err)
	}
	return nil
}

// Flush 清空当前 Redis 数据库，不影响本地 map。
func (c *Cache) Flush(ctx context.Context) error {
	client, err := c.remote("flush", "")
	if err != nil {
		return err
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		return apperr.Cache("flush", "", err)
	}
	return nil
}

// Stats 返回后端状态与 key 数量。
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	client, err := c.remote("stats", "")
	if err != nil {
		return Stats{}, err
	}
	size, err := client.DBSize(ctx).Result()
	if err != nil {
		return Stats{}, apperr.Cache("stats", "", err)
	}
	return Stats{
		State:        c.State().String(),
		Connected:    c.IsConnected(),
		RemoteKeys:   size,
		LocalEntries: c.localLen(),
	}, nil
}

// Close 停止探测 goroutine 并释放 Redis 连接池。
func (c *Cache) Close() error {
	c.probeMu.Lock()
	if !c.closed {
		c.closed = true
		close(c.stop)
	}
	c.probeMu.Unlock()
	c.probes.Wait()

	if c.client == nil {
		return nil
	}
	if err := c.client.Close(); err != nil {
		return apperr.Cache("close", "", err)
	}
	return nil
}
