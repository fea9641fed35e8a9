package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级运行参数，缓存、重试与诊断服务共享同一份取值。
type GlobalConfig struct {
	ListenPort          int      `mapstructure:"ListenPort"`
	LogLevel            string   `mapstructure:"LogLevel"`
	LogFilePath         string   `mapstructure:"LogFilePath"`
	LogMaxSize          int      `mapstructure:"LogMaxSize"`
	LogMaxBackups       int      `mapstructure:"LogMaxBackups"`
	LogCompress         bool     `mapstructure:"LogCompress"`
	RedisURL            string   `mapstructure:"RedisURL"`
	RedisProbeInterval  Duration `mapstructure:"RedisProbeInterval"`
	CacheTTL            Duration `mapstructure:"CacheTTL"`
	IssueCacheTTL       Duration `mapstructure:"IssueCacheTTL"`
	MaxRetries          int      `mapstructure:"MaxRetries"`
	RetryDelay          Duration `mapstructure:"RetryDelay"`
	UpstreamTimeout     Duration `mapstructure:"UpstreamTimeout"`
	MaxIssuePages       int      `mapstructure:"MaxIssuePages"`
	ClassifyConcurrency int      `mapstructure:"ClassifyConcurrency"`
}

// GitHubConfig 描述 GitHub REST API 的访问方式。Token 为空或为占位符时走演示数据。
type GitHubConfig struct {
	Token   string `mapstructure:"Token"`
	BaseURL string `mapstructure:"BaseURL"`
}

// LLMConfig 选择 LLM 提供方及其凭证，Model/BaseURL 为空时使用提供方默认值。
type LLMConfig struct {
	Provider  string `mapstructure:"Provider"`
	APIKey    string `mapstructure:"APIKey"`
	Model     string `mapstructure:"Model"`
	BaseURL   string `mapstructure:"BaseURL"`
	MaxTokens int    `mapstructure:"MaxTokens"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	GitHub GitHubConfig `mapstructure:"GitHub"`
	LLM    LLMConfig    `mapstructure:"LLM"`
}

// CredentialModes 返回各上游的鉴权模式摘要，例如 github:token，供启动日志使用。
func (c *Config) CredentialModes() []string {
	return []string{
		fmt.Sprintf("github:%s", credentialMode(c.GitHub.Token)),
		fmt.Sprintf("llm/%s:%s", c.LLM.Provider, credentialMode(c.LLM.APIKey)),
	}
}

func credentialMode(secret string) string {
	if strings.TrimSpace(secret) == "" {
		return "anonymous"
	}
	return "credentialed"
}
