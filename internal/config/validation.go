package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/repolens/repolens/internal/llm/provider"
)

var supportedLogLevels = map[string]struct{}{
	"trace": {},
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if level := strings.ToLower(strings.TrimSpace(g.LogLevel)); level != "" {
		if _, ok := supportedLogLevels[level]; !ok {
			return newFieldError("Global.LogLevel", "仅支持 trace/debug/info/warn/error")
		}
	}
	if g.RedisURL != "" {
		if err := validateRedisURL(g.RedisURL); err != nil {
			return fmt.Errorf("Global.RedisURL: %w", err)
		}
	}
	if g.RedisProbeInterval.DurationValue() <= 0 {
		return newFieldError("Global.RedisProbeInterval", "必须大于 0")
	}
	if g.CacheTTL.DurationValue() <= 0 {
		return newFieldError("Global.CacheTTL", "必须大于 0")
	}
	if g.IssueCacheTTL.DurationValue() <= 0 {
		return newFieldError("Global.IssueCacheTTL", "必须大于 0")
	}
	if g.MaxRetries < 0 {
		return newFieldError("Global.MaxRetries", "不能为负数")
	}
	if g.RetryDelay.DurationValue() < 0 {
		return newFieldError("Global.RetryDelay", "不能为负数")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if g.MaxIssuePages <= 0 {
		return newFieldError("Global.MaxIssuePages", "必须大于 0")
	}
	if g.ClassifyConcurrency <= 0 {
		return newFieldError("Global.ClassifyConcurrency", "必须大于 0")
	}

	if err := validateUpstream(c.GitHub.BaseURL); err != nil {
		return fmt.Errorf("%s: %w", sectionField("GitHub", "BaseURL"), err)
	}

	key := strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if key == "" {
		return newFieldError(sectionField("LLM", "Provider"), "不能为空")
	}
	if _, ok := provider.Resolve(key); !ok {
		return newFieldError(sectionField("LLM", "Provider"), "仅支持 "+strings.Join(provider.Keys(), "|"))
	}
	if c.LLM.BaseURL != "" {
		if err := validateUpstream(c.LLM.BaseURL); err != nil {
			return fmt.Errorf("%s: %w", sectionField("LLM", "BaseURL"), err)
		}
	}
	if c.LLM.MaxTokens < 0 {
		return newFieldError(sectionField("LLM", "MaxTokens"), "不能为负数")
	}

	return nil
}

func validateRedisURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "redis" && parsed.Scheme != "rediss" {
		return fmt.Errorf("仅支持 redis/rediss: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("缺少上游地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}
