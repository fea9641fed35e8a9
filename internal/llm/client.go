// Package llm 是 LLM 提供方的重试客户端。线格式由 internal/llm/provider 注册，
// 本包负责凭证判定、重试、失败映射，以及把响应文本解析为领域对象。
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/repolens/repolens/internal/apperr"
	"github.com/repolens/repolens/internal/llm/provider"
	"github.com/repolens/repolens/internal/retry"
)

const (
	service      = "llm"
	maxErrorBody = 512
	maxBodyBytes = 4 << 20
)

// Options 控制客户端依赖注入，Model/BaseURL 为空时使用提供方默认值。
type Options struct {
	Provider   string
	APIKey     string
	Model      string
	BaseURL    string
	MaxTokens  int
	HTTPClient *http.Client
	Logger     *logrus.Logger
	Policy     retry.Policy
}

// Client 封装一次补全调用及其上层分析操作。
type Client struct {
	spec      provider.Spec
	apiKey    string
	model     string
	endpoint  string
	maxTokens int
	http      *http.Client
	logger    *logrus.Logger
	policy    retry.Policy
}

// New 根据注册表中的提供方创建客户端，未知提供方返回 VALIDATION_ERROR。
func New(opts Options) (*Client, error) {
	spec, ok := provider.Resolve(opts.Provider)
	if !ok {
		return nil, apperr.Validation("llm.provider", fmt.Sprintf("unknown provider %q", opts.Provider))
	}
	c := &Client{
		spec:      spec,
		apiKey:    strings.TrimSpace(opts.APIKey),
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		http:      opts.HTTPClient,
		logger:    opts.Logger,
		policy:    opts.Policy,
	}
	if c.model == "" {
		c.model = spec.DefaultModel
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = spec.DefaultBaseURL
	}
	c.endpoint = base + spec.Path
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = logrus.StandardLogger()
	}
	return c, nil
}

// Provider 返回当前提供方键。
func (c *Client) Provider() string {
	return c.spec.Key
}

// Authenticated 表示 API key 是否可用；不可用时上层操作直接合成结果。
func (c *Client) Authenticated() bool {
	return retry.CredentialValid(c.apiKey, c.spec.Placeholder)
}

// Complete 发起一次补全并返回文本。
//
// 凭证无效或被拒绝时返回包装了 retry.ErrUnauthenticated 的错误；
// 重试耗尽、403 及其它 4xx 都映射为 LLM_SERVICE_UNAVAILABLE。
func (c *Client) Complete(ctx context.Context, name string, req provider.Request) (string, error) {
	if !c.Authenticated() {
		return "", retry.ErrUnauthenticated
	}
	if req.Model == "" {
		req.Model = c.model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.maxTokens
	}
	payload, err := c.spec.Encode(req)
	if err != nil {
		return "", apperr.Internal("encode llm request", err)
	}

	call := retry.Call{
		ID:      uuid.NewString(),
		Service: service,
		Name:    name,
		Target:  c.spec.Key,
		Policy:  c.policy,
		Logger:  c.logger,
	}
	text, err := retry.Do(ctx, call, func(ctx context.Context, _ int) (string, error) {
		return c.do(ctx, payload)
	})
	if err == nil || errors.Is(err, retry.ErrUnauthenticated) {
		return text, err
	}
	if errors.Is(err, context.Canceled) {
		return "", err
	}

	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return "", apperr.ServiceUnavailable(fmt.Sprintf("%s unavailable after %d attempts", c.spec.Key, exhausted.Attempts), err)
	}
	if code := retry.StatusCode(err); code != 0 {
		return "", apperr.ServiceUnavailable(fmt.Sprintf("%s rejected request with status %d", c.spec.Key, code), err)
	}
	return "", apperr.ServiceUnavailable(fmt.Sprintf("%s request failed", c.spec.Key), err)
}

func (c *Client) do(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.spec.Headers != nil {
		for key, value := range c.spec.Headers(c.apiKey) {
			req.Header.Set(key, value)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &retry.StatusError{
			StatusCode: resp.StatusCode,
			URL:        c.endpoint,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}
	return c.spec.Decode(body)
}
