package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// envBindings 列出可由环境变量覆盖的键，环境变量优先于 TOML 文件。
var envBindings = map[string]string{
	"GitHub.Token": "REPOLENS_GITHUB_TOKEN",
	"LLM.APIKey":   "REPOLENS_LLM_API_KEY",
	"RedisURL":     "REPOLENS_REDIS_URL",
}

// Load 读取并解析 TOML 配置文件，同时注入默认值、环境变量覆盖与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("绑定环境变量失败: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyUpstreamDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("RedisURL", "")
	v.SetDefault("RedisProbeInterval", "5s")
	v.SetDefault("CacheTTL", 3600)
	v.SetDefault("IssueCacheTTL", 1800)
	v.SetDefault("MaxRetries", 3)
	v.SetDefault("RetryDelay", "1s")
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("MaxIssuePages", 3)
	v.SetDefault("ClassifyConcurrency", 4)
	v.SetDefault("GitHub.BaseURL", DefaultGitHubBaseURL)
	v.SetDefault("LLM.Provider", DefaultLLMProvider)
	v.SetDefault("LLM.MaxTokens", 1024)
}

// DefaultGitHubBaseURL 与 DefaultLLMProvider 是未配置时的上游默认值。
const (
	DefaultGitHubBaseURL = "https://api.github.com"
	DefaultLLMProvider   = "openai"
)

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.RedisProbeInterval.DurationValue() == 0 {
		g.RedisProbeInterval = Duration(5 * time.Second)
	}
	if g.CacheTTL.DurationValue() == 0 {
		g.CacheTTL = Duration(time.Hour)
	}
	if g.IssueCacheTTL.DurationValue() == 0 {
		g.IssueCacheTTL = Duration(30 * time.Minute)
	}
	if g.RetryDelay.DurationValue() == 0 {
		g.RetryDelay = Duration(time.Second)
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(30 * time.Second)
	}
	if g.MaxIssuePages == 0 {
		g.MaxIssuePages = 3
	}
	if g.ClassifyConcurrency == 0 {
		g.ClassifyConcurrency = 4
	}
}

func applyUpstreamDefaults(cfg *Config) {
	cfg.GitHub.Token = strings.TrimSpace(cfg.GitHub.Token)
	if base := strings.TrimSpace(cfg.GitHub.BaseURL); base != "" {
		cfg.GitHub.BaseURL = strings.TrimRight(base, "/")
	} else {
		cfg.GitHub.BaseURL = DefaultGitHubBaseURL
	}

	cfg.LLM.APIKey = strings.TrimSpace(cfg.LLM.APIKey)
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = DefaultLLMProvider
	}
	cfg.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.LLM.BaseURL), "/")
	if cfg.LLM.MaxTokens < 0 {
		cfg.LLM.MaxTokens = 0
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
