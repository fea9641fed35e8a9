package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/repolens/repolens/internal/apperr"
	"github.com/repolens/repolens/internal/config"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newLiveCache(t *testing.T) (*Cache, *miniredis.Miniredis, *test.Hook) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	logger, hook := test.NewNullLogger()
	return New(Options{Client: client, Logger: logger}), mr, hook
}

func newLocalCache(t *testing.T) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	logger, _ := test.NewNullLogger()
	return New(Options{Logger: logger, Now: clock.Now}), clock
}

func TestSetGetIdempotentLive(t *testing.T) {
	c, mr, _ := newLiveCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v1"), 0)
	c.Set(ctx, "k", []byte("v1"), 0)
	got, ok := c.Get(ctx, "k")
	if !ok || string(got) != "v1" {
		t.Fatalf("expected v1, got %q ok=%v", got, ok)
	}
	if mr.TTL("k") != 0 {
		t.Fatalf("ttl<=0 不应设置过期时间")
	}
	if !c.IsConnected() || c.State() != StateLive {
		t.Fatalf("live 状态不应改变")
	}
}

func TestSetGetIdempotentDegraded(t *testing.T) {
	c, _ := newLocalCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v1"), time.Minute)
	c.Set(ctx, "k", []byte("v1"), time.Minute)
	got, ok := c.Get(ctx, "k")
	if !ok || string(got) != "v1" {
		t.Fatalf("expected v1, got %q ok=%v", got, ok)
	}
	if c.IsConnected() {
		t.Fatalf("未配置 Redis 时应处于 degraded")
	}
}

func TestTTLExpiresLive(t *testing.T) {
	c, mr, _ := newLiveCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), 10*time.Second)
	if mr.TTL("k") != 10*time.Second {
		t.Fatalf("expected EX 10, got %v", mr.TTL("k"))
	}
	mr.FastForward(11 * time.Second)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatalf("过期后应未命中")
	}
}

func TestTTLExpiresDegraded(t *testing.T) {
	c, clock := newLocalCache(t)
	ctx := context.Background()

	c.Set(ctx, "short", []byte("v"), 10*time.Second)
	c.Set(ctx, "forever", []byte("v"), 0)
	c.Set(ctx, "negative", []byte("v"), -time.Second)

	clock.Advance(9 * time.Second)
	if _, ok := c.Get(ctx, "short"); !ok {
		t.Fatalf("未到期前应命中")
	}
	clock.Advance(time.Second)
	if _, ok := c.Get(ctx, "short"); ok {
		t.Fatalf("到达过期时间应未命中")
	}
	if c.localLen() != 2 {
		t.Fatalf("过期条目应被惰性删除, len=%d", c.localLen())
	}

	clock.Advance(365 * 24 * time.Hour)
	for _, key := range []string{"forever", "negative"} {
		if _, ok := c.Get(ctx, key); !ok {
			t.Fatalf("%s 不应过期", key)
		}
	}
}

func TestGetFailureDegradesAndSwallows(t *testing.T) {
	c, mr, hook := newLiveCache(t)
	ctx := context.Background()

	mr.SetError("LOADING redis is loading")
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatalf("degraded 后本地 map 为空应未命中")
	}
	if c.State() != StateDegraded {
		t.Fatalf("GET 失败后应切换为 degraded")
	}

	c.Set(ctx, "k", []byte("local"), 0)
	got, ok := c.Get(ctx, "k")
	if !ok || string(got) != "local" {
		t.Fatalf("degraded 时应读写本地 map, got %q", got)
	}

	mr.SetError("")
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatalf("Redis 恢复但无连接事件时仍应读本地 map")
	}
	if v, _ := mr.Get("k"); v != "" {
		t.Fatalf("本地写入不应同步到 Redis")
	}

	degraded := 0
	for _, entry := range hook.AllEntries() {
		if entry.Message == "cache_degraded" {
			degraded++
			if entry.Level != logrus.WarnLevel || entry.Data["op"] != "get" {
				t.Fatalf("unexpected degrade log: %v", entry.Data)
			}
		}
	}
	if degraded != 1 {
		t.Fatalf("状态切换只应记录一次, got %d", degraded)
	}
}

func TestSetFailureWritesLocally(t *testing.T) {
	c, mr, _ := newLiveCache(t)
	ctx := context.Background()

	mr.SetError("READONLY")
	c.Set(ctx, "k", []byte("v"), time.Minute)
	if c.IsConnected() {
		t.Fatalf("SET 失败后应切换为 degraded")
	}
	got, ok := c.Get(ctx, "k")
	if !ok || string(got) != "v" {
		t.Fatalf("失败的 SET 应写入本地 map")
	}
}

func TestReconnectedRestoresLive(t *testing.T) {
	c, mr, hook := newLiveCache(t)
	ctx := context.Background()

	mr.SetError("LOADING")
	c.Set(ctx, "k", []byte("local"), 0)
	mr.SetError("")

	c.Reconnected()
	if c.State() != StateLive {
		t.Fatalf("连接事件后应回到 live")
	}
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatalf("live 状态应读取 Redis，本地写入不可见")
	}
	if hook.LastEntry() == nil {
		t.Fatalf("expected reconnect log")
	}

	c.Reconnected()
	reconnects := 0
	for _, entry := range hook.AllEntries() {
		if entry.Message == "cache_reconnected" {
			reconnects++
		}
	}
	if reconnects != 1 {
		t.Fatalf("已是 live 时不应重复记录, got %d", reconnects)
	}
}

func TestReconnectedWithoutClientStaysDegraded(t *testing.T) {
	c, _ := newLocalCache(t)
	c.Reconnected()
	if c.State() != StateDegraded {
		t.Fatalf("没有 Redis 客户端时不能切回 live")
	}
}

func TestDialWithoutURLStartsDegraded(t *testing.T) {
	logger, hook := test.NewNullLogger()
	c, err := Dial(context.Background(), config.GlobalConfig{}, logger)
	if err != nil {
		t.Fatalf("Dial 不应失败: %v", err)
	}
	if c.State() != StateDegraded {
		t.Fatalf("未配置 RedisURL 应以 degraded 启动")
	}
	if entry := hook.LastEntry(); entry == nil || entry.Message != "cache_remote_unconfigured" {
		t.Fatalf("expected unconfigured warning")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close 不应失败: %v", err)
	}
}

func TestDialRejectsBadURL(t *testing.T) {
	logger, _ := test.NewNullLogger()
	if _, err := Dial(context.Background(), config.GlobalConfig{RedisURL: "mysql://nope"}, logger); err == nil {
		t.Fatalf("非法 RedisURL 应返回错误")
	}
}

func TestDialReconnectsOnConnectEvent(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	logger, _ := test.NewNullLogger()
	ctx := context.Background()
	c, err := Dial(ctx, config.GlobalConfig{RedisURL: "redis://" + addr}, logger)
	if err != nil {
		t.Fatalf("Dial 不应失败: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	if c.State() != StateDegraded {
		t.Fatalf("PING 失败应以 degraded 启动")
	}

	if err := mr.Restart(); err != nil {
		t.Fatalf("restart miniredis: %v", err)
	}
	if _, err := c.Has(ctx, "k"); err != nil {
		t.Fatalf("Redis 恢复后 Has 应成功: %v", err)
	}
	if c.State() != StateLive {
		t.Fatalf("新连接建立后应切回 live")
	}
}

func TestDialRecoversUnderGetSetTraffic(t *testing.T) {
	mr := miniredis.RunT(t)
	logger, _ := test.NewNullLogger()
	ctx := context.Background()

	c, err := Dial(ctx, config.GlobalConfig{
		RedisURL:           "redis://" + mr.Addr(),
		RedisProbeInterval: config.Duration(20 * time.Millisecond),
	}, logger)
	if err != nil {
		t.Fatalf("Dial 不应失败: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	c.Set(ctx, "k1", []byte("v1"), 0)
	mr.Close()
	c.Get(ctx, "k1")
	if c.State() != StateDegraded {
		t.Fatalf("Redis 中断后应进入 degraded")
	}

	if err := mr.Restart(); err != nil {
		t.Fatalf("restart miniredis: %v", err)
	}

	// 只有 Get/Set 流量，不调用任何直连 Redis 的操作。
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		c.Set(ctx, "k2", []byte("v2"), 0)
		c.Get(ctx, "k2")
		if c.State() == StateLive && mr.Exists("k2") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Redis 恢复后应自动切回 live 并写入远端, state=%s exists=%v", c.State(), mr.Exists("k2"))
}

func TestProbeIntervalRestoresClientCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	logger, _ := test.NewNullLogger()
	c := New(Options{Client: client, Logger: logger, ProbeInterval: 10 * time.Millisecond})
	ctx := context.Background()

	mr.SetError("LOADING")
	c.Set(ctx, "k", []byte("v"), 0)
	if c.State() != StateDegraded {
		t.Fatalf("Set 失败应进入 degraded")
	}
	mr.SetError("")

	deadline := time.Now().Add(2 * time.Second)
	for c.State() != StateLive && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.State() != StateLive {
		t.Fatalf("PING 成功后应切回 live")
	}
}

func TestCloseStopsProbe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	logger, _ := test.NewNullLogger()
	c := New(Options{Client: client, Logger: logger, ProbeInterval: 5 * time.Millisecond})

	mr.SetError("LOADING")
	c.Get(context.Background(), "k")

	done := make(chan struct{})
	go func() {
		_ = c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Close 应等待探测 goroutine 退出")
	}

	// 关闭后再次降级不会启动新的探测。
	c.degraded.Store(false)
	c.markDegraded("get", "k", errors.New("closed"))
	c.probeMu.Lock()
	probing := c.probing
	c.probeMu.Unlock()
	if probing {
		t.Fatalf("Close 之后不应再启动探测")
	}
}

func TestNonFallbackOpsReturnCacheError(t *testing.T) {
	ctx := context.Background()

	unconfigured, _ := newLocalCache(t)
	failing, mr, _ := newLiveCache(t)
	mr.SetError("ERR boom")

	for name, c := range map[string]*Cache{"unconfigured": unconfigured, "failing": failing} {
		t.Run(name, func(t *testing.T) {
			ops := map[string]func() error{
				"delete":        func() error { _, err := c.Delete(ctx, "k"); return err },
				"has":           func() error { _, err := c.Has(ctx, "k"); return err },
				"clear_pattern": func() error { _, err := c.ClearPattern(ctx, "k*"); return err },
				"get_ttl":       func() error { _, err := c.GetTTL(ctx, "k"); return err },
				"expire":        func() error { _, err := c.Expire(ctx, "k", time.Second); return err },
				"increment":     func() error { _, err := c.Increment(ctx, "k", 1); return err },
				"mget":          func() error { _, err := c.MGet(ctx, "k"); return err },
				"flush":         func() error { return c.Flush(ctx) },
				"stats":         func() error { _, err := c.Stats(ctx); return err },
			}
			for op, fn := range ops {
				err := fn()
				if !errors.Is(err, apperr.ErrCache) {
					t.Fatalf("%s 应返回 CACHE_ERROR, got %v", op, err)
				}
			}
		})
	}
	if failing.State() != StateLive {
		t.Fatalf("非 Get/Set 操作失败不应切换状态")
	}
}

func TestRemoteOps(t *testing.T) {
	c, mr, _ := newLiveCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		c.Set(ctx, RepoAnalysisKey("octocat", fmt.Sprintf("repo-%d", i)), []byte("x"), 0)
	}
	c.Set(ctx, IssueClassificationKey("octocat", "repo-0", 1), []byte("x"), time.Minute)

	if ok, err := c.Has(ctx, RepoAnalysisKey("octocat", "repo-1")); err != nil || !ok {
		t.Fatalf("Has should find key: %v", err)
	}
	ttl, err := c.GetTTL(ctx, IssueClassificationKey("octocat", "repo-0", 1))
	if err != nil || ttl != time.Minute {
		t.Fatalf("unexpected ttl %v: %v", ttl, err)
	}
	if ttl, _ := c.GetTTL(ctx, "missing"); ttl != TTLMissing {
		t.Fatalf("不存在的 key 应返回 TTLMissing, got %v", ttl)
	}
	if ttl, _ := c.GetTTL(ctx, RepoAnalysisKey("octocat", "repo-0")); ttl != TTLPersistent {
		t.Fatalf("无过期 key 应返回 TTLPersistent, got %v", ttl)
	}
	if ok, err := c.Expire(ctx, RepoAnalysisKey("octocat", "repo-0"), time.Hour); err != nil || !ok {
		t.Fatalf("Expire should succeed: %v", err)
	}
	if ok, _ := c.Expire(ctx, "missing", time.Hour); ok {
		t.Fatalf("不存在的 key Expire 应返回 false")
	}

	if n, err := c.Increment(ctx, "counter", 5); err != nil || n != 5 {
		t.Fatalf("unexpected increment %d: %v", n, err)
	}
	if n, _ := c.Increment(ctx, "counter", -2); n != 3 {
		t.Fatalf("expected 3, got %d", n)
	}

	values, err := c.MGet(ctx, RepoAnalysisKey("octocat", "repo-2"), "missing")
	if err != nil || len(values) != 2 || string(values[0]) != "x" || values[1] != nil {
		t.Fatalf("unexpected mget %q: %v", values, err)
	}

	n, err := c.ClearPattern(ctx, "repo_analysis:*")
	if err != nil || n != 3 {
		t.Fatalf("expected 3 deleted, got %d: %v", n, err)
	}
	if mr.Exists(RepoAnalysisKey("octocat", "repo-1")) {
		t.Fatalf("ClearPattern 应删除匹配 key")
	}

	if n, err := c.Delete(ctx, "counter", "missing"); err != nil || n != 1 {
		t.Fatalf("expected 1 deleted, got %d: %v", n, err)
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.RemoteKeys != 1 || !stats.Connected || stats.State != "live" {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("Flush 后应为空")
	}
}

func TestMSetPipelinedAndDegraded(t *testing.T) {
	ctx := context.Background()
	entries := []Entry{{Key: "a", Value: []byte("1")}, {Key: "b", Value: []byte("2")}}

	live, mr, _ := newLiveCache(t)
	if err := live.MSet(ctx, entries, time.Minute); err != nil {
		t.Fatalf("MSet failed: %v", err)
	}
	if v, _ := mr.Get("b"); v != "2" || mr.TTL("a") != time.Minute {
		t.Fatalf("pipeline 写入不完整: b=%q ttl=%v", v, mr.TTL("a"))
	}

	mr.SetError("ERR boom")
	if err := live.MSet(ctx, entries, 0); !errors.Is(err, apperr.ErrCache) {
		t.Fatalf("pipeline 失败应返回 CACHE_ERROR, got %v", err)
	}

	local, clock := newLocalCache(t)
	if err := local.MSet(ctx, entries, time.Second); err != nil {
		t.Fatalf("degraded MSet 不应失败: %v", err)
	}
	if got, ok := local.Get(ctx, "a"); !ok || string(got) != "1" {
		t.Fatalf("degraded MSet 应写入本地 map")
	}
	clock.Advance(2 * time.Second)
	if _, ok := local.Get(ctx, "b"); ok {
		t.Fatalf("本地条目应按 ttl 过期")
	}
}

func TestJSONHelpers(t *testing.T) {
	c, _ := newLocalCache(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	if err := SetJSON(ctx, c, "p", payload{Name: "a", Count: 2}, 0); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}
	got, ok, err := GetJSON[payload](ctx, c, "p")
	if err != nil || !ok || got.Count != 2 {
		t.Fatalf("unexpected GetJSON %+v ok=%v err=%v", got, ok, err)
	}

	if _, ok, err := GetJSON[payload](ctx, c, "missing"); ok || err != nil {
		t.Fatalf("未命中应返回 ok=false 且无错误")
	}

	c.Set(ctx, "broken", []byte("{"), 0)
	if _, _, err := GetJSON[payload](ctx, c, "broken"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("损坏的值应返回 VALIDATION_ERROR, got %v", err)
	}
	if err := SetJSON(ctx, c, "chan", make(chan int), 0); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("无法编码的值应返回 VALIDATION_ERROR, got %v", err)
	}
}

func TestLocalMapConcurrentAccess(t *testing.T) {
	c, _ := newLocalCache(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%4)
			for j := 0; j < 100; j++ {
				c.Set(ctx, key, []byte("v"), time.Minute)
				c.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()
	if c.localLen() != 4 {
		t.Fatalf("expected 4 keys, got %d", c.localLen())
	}
}

func TestKeys(t *testing.T) {
	if got := RepoAnalysisKey("octocat", "Hello-World"); got != "repo_analysis:octocat/Hello-World" {
		t.Fatalf("unexpected key %s", got)
	}
	if got := IssueClassificationKey("octocat", "Hello-World", 42); got != "issue_classification:octocat/Hello-World#42" {
		t.Fatalf("unexpected key %s", got)
	}
	if got := RepoIssuesKey("octocat", "Hello-World"); got != "repo_issues:octocat/Hello-World" {
		t.Fatalf("unexpected key %s", got)
	}
}
