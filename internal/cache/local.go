package cache

import "time"

// localEntry 的 expiresAt 为零值表示不过期。
type localEntry struct {
	value     []byte
	expiresAt time.Time
}

func (c *Cache) localGet(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.local[key]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		delete(c.local, key)
		return nil, false
	}
	return append([]byte(nil), entry.value...), true
}

func (c *Cache) localSet(key string, value []byte, ttl time.Duration) {
	entry := localEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.local[key] = entry
	c.mu.Unlock()
}

func (c *Cache) localLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.local)
}
