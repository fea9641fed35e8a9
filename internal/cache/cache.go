package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/repolens/repolens/internal/apperr"
	"github.com/repolens/repolens/internal/config"
	"github.com/repolens/repolens/internal/logging"
)

// State 描述当前生效的存储路径。
type State int32

const (
	StateLive State = iota
	StateDegraded
)

func (s State) String() string {
	if s == StateDegraded {
		return "degraded"
	}
	return "live"
}

const (
	backendRedis = "redis"
	backendLocal = "local"
)

// DefaultProbeInterval 是 degraded 状态下主动探测 Redis 的间隔。
const DefaultProbeInterval = 5 * time.Second

// errRemoteUnconfigured 表示未配置 Redis，仅有本地存储可用。
var errRemoteUnconfigured = errors.New("remote cache backend not configured")

// Options 控制缓存实例的依赖注入。
type Options struct {
	// Client 为空时实例始终处于 degraded 状态。
	Client redis.UniversalClient
	Logger *logrus.Logger
	// Now 默认 time.Now，测试中可替换以控制本地过期。
	Now func() time.Time
	// ProbeInterval>0 时，degraded 期间按该间隔 PING Client，成功即切回 live。
	// 调用方持有 Client 的 OnConnect，缓存无法观察连接事件，因此以 PING 结果代替。
	ProbeInterval time.Duration
}

// Cache 是显式的状态对象 {backendHandle, degraded, localMap}，每个实例相互独立。
type Cache struct {
	client redis.UniversalClient
	logger *logrus.Logger
	now    func() time.Time

	degraded atomic.Bool

	mu    sync.Mutex
	local map[string]localEntry

	// probe 在 degraded 期间被周期调用，促使驱动建立新连接。
	probe         func(ctx context.Context) error
	probeInterval time.Duration
	probeMu       sync.Mutex
	probing       bool
	closed        bool
	stop          chan struct{}
	probes        sync.WaitGroup
}

// New 基于已构建的 Redis 客户端创建缓存。
func New(opts Options) *Cache {
	c := newCache(opts.Logger, opts.Now)
	c.client = opts.Client
	if c.client == nil {
		c.degraded.Store(true)
		return c
	}
	if opts.ProbeInterval > 0 {
		c.probeInterval = opts.ProbeInterval
		c.probe = func(ctx context.Context) error {
			if err := c.client.Ping(ctx).Err(); err != nil {
				return err
			}
			c.Reconnected()
			return nil
		}
	}
	return c
}

func newCache(logger *logrus.Logger, now func() time.Time) *Cache {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		logger: logger,
		now:    now,
		local:  make(map[string]localEntry),
		stop:   make(chan struct{}),
	}
}

// Dial 根据 RedisURL 构建缓存，并把驱动的 OnConnect 作为重连事件。
// RedisURL 为空或初次 PING 失败时不会返回错误，而是以 degraded 状态启动。
// degraded 期间每隔 RedisProbeInterval 用一个临时客户端拨号并 PING，
// 新连接建立时触发同一个 OnConnect。
func Dial(ctx context.Context, cfg config.GlobalConfig, logger *logrus.Logger) (*Cache, error) {
	c := newCache(logger, nil)
	if cfg.RedisURL == "" {
		c.degraded.Store(true)
		c.logger.WithFields(logging.CacheFields("dial", "", backendLocal)).
			Warn("cache_remote_unconfigured")
		return c, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if timeout := cfg.UpstreamTimeout.DurationValue(); timeout > 0 {
		opt.DialTimeout = timeout
	}
	opt.OnConnect = func(context.Context, *redis.Conn) error {
		c.Reconnected()
		return nil
	}
	c.client = redis.NewClient(opt)

	c.probeInterval = cfg.RedisProbeInterval.DurationValue()
	if c.probeInterval <= 0 {
		c.probeInterval = DefaultProbeInterval
	}
	c.probe = func(ctx context.Context) error {
		probeOpt := *opt
		probeOpt.PoolSize = 1
		probeOpt.MaxRetries = -1
		probe := redis.NewClient(&probeOpt)
		defer probe.Close()
		return probe.Ping(ctx).Err()
	}

	if err := c.client.Ping(ctx).Err(); err != nil {
		c.markDegraded("ping", "", err)
	}
	return c, nil
}

// State 返回当前后端状态。
func (c *Cache) State() State {
	if c.degraded.Load() {
		return StateDegraded
	}
	return StateLive
}

// IsConnected 表示 Get/Set 当前是否走 Redis。
func (c *Cache) IsConnected() bool {
	return c.client != nil && !c.degraded.Load()
}

// Reconnected 处理驱动的连接建立事件，将状态切回 live。
func (c *Cache) Reconnected() {
	if c.client == nil {
		return
	}
	if c.degraded.CompareAndSwap(true, false) {
		c.logger.WithFields(logging.CacheFields("reconnect", "", backendRedis)).
			Info("cache_reconnected")
	}
}

func (c *Cache) markDegraded(op, key string, err error) {
	if c.degraded.CompareAndSwap(false, true) {
		fields := logging.CacheFields(op, key, backendRedis)
		fields["error"] = err.Error()
		c.logger.WithFields(fields).Warn("cache_degraded")
		c.startProbe()
	}
}

// startProbe 在 degraded 期间启动唯一的探测 goroutine，Close 后不再启动。
func (c *Cache) startProbe() {
	if c.probe == nil || c.probeInterval <= 0 {
		return
	}
	c.probeMu.Lock()
	defer c.probeMu.Unlock()
	if c.probing || c.closed {
		return
	}
	c.probing = true
	c.probes.Add(1)
	go c.runProbe()
}

func (c *Cache) runProbe() {
	defer c.probes.Done()
	ticker := time.NewTicker(c.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			c.probeMu.Lock()
			c.probing = false
			c.probeMu.Unlock()
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.probeInterval)
		err := c.probe(ctx)
		cancel()
		if err != nil {
			c.logger.WithFields(logging.CacheFields("probe", "", backendRedis)).
				WithField("error", err.Error()).Debug("cache_probe_failed")
		}

		// 与 markDegraded 在同一把锁下检查，避免退出时错过新的 degraded。
		c.probeMu.Lock()
		if !c.degraded.Load() {
			c.probing = false
			c.probeMu.Unlock()
			return
		}
		c.probeMu.Unlock()
	}
}

// Get 读取 key。远端失败时切换到 degraded 并改读本地 map，不返回错误。
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.IsConnected() {
		val, err := c.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			return val, true
		case errors.Is(err, redis.Nil):
			return nil, false
		default:
			c.markDegraded("get", key, err)
		}
	}
	return c.localGet(key)
}

// Set 写入 key，ttl<=0 表示不过期。远端失败时切换到 degraded 并写入本地 map。
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if c.IsConnected() {
		err := c.client.Set(ctx, key, value, expiration(ttl)).Err()
		if err == nil {
			return
		}
		c.markDegraded("set", key, err)
	}
	c.localSet(key, value, ttl)
}

// expiration 将 ttl<=0 统一映射为 0（不过期），避免 go-redis 将 -1 视为 KEEPTTL。
func expiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl
}

func (c *Cache) remote(op, key string) (redis.UniversalClient, error) {
	if c.client == nil {
		return nil, apperr.Cache(op, key, errRemoteUnconfigured)
	}
	return c.client, nil
}
