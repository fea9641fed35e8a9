// Package github 是 GitHub REST API 的重试客户端。凭证无效时不发起网络请求，
// 直接返回固定的演示数据；401 同样回退到演示数据，不向调用方暴露。
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/repolens/repolens/internal/apperr"
	"github.com/repolens/repolens/internal/logging"
	"github.com/repolens/repolens/internal/retry"
)

const (
	// Placeholder 是示例配置中的占位 token，视同未配置。
	Placeholder = "your_github_token_here"

	DefaultBaseURL  = "https://api.github.com"
	DefaultMaxPages = 3

	service      = "github"
	apiVersion   = "2022-11-28"
	mediaType    = "application/vnd.github+json"
	userAgent    = "repolens"
	perPage      = 100
	maxErrorBody = 512
)

// Options 控制客户端依赖注入。
type Options struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *logrus.Logger
	Policy     retry.Policy
	// MaxIssuePages 限制 ListIssues 的翻页次数。
	MaxIssuePages int
}

// Client 封装 GitHub 调用、重试与失败映射。
type Client struct {
	token    string
	baseURL  string
	http     *http.Client
	logger   *logrus.Logger
	policy   retry.Policy
	maxPages int
}

// New 创建客户端，零值字段使用默认值。
func New(opts Options) *Client {
	c := &Client{
		token:    strings.TrimSpace(opts.Token),
		baseURL:  strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		http:     opts.HTTPClient,
		logger:   opts.Logger,
		policy:   opts.Policy,
		maxPages: opts.MaxIssuePages,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = logrus.StandardLogger()
	}
	if c.maxPages <= 0 {
		c.maxPages = DefaultMaxPages
	}
	return c
}

// Authenticated 表示 token 是否可用；不可用时所有操作返回演示数据。
func (c *Client) Authenticated() bool {
	return retry.CredentialValid(c.token, Placeholder)
}

// request 执行一次带重试的 GET，并把 2xx 响应体解码到 out。
func (c *Client) request(ctx context.Context, name, target, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	call := retry.Call{
		ID:      uuid.NewString(),
		Service: service,
		Name:    name,
		Target:  target,
		Policy:  c.policy,
		Logger:  c.logger,
	}
	_, err := retry.Do(ctx, call, func(ctx context.Context, _ int) (struct{}, error) {
		return struct{}{}, c.do(ctx, endpoint, out)
	})
	return err
}

func (c *Client) do(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", mediaType)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &retry.StatusError{
			StatusCode: resp.StatusCode,
			URL:        endpoint,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

// classify 把调用失败映射为领域错误。401 由调用方先行拦截。
func (c *Client) classify(owner, repo string, err error) error {
	var exhausted *retry.ExhaustedError
	switch code := retry.StatusCode(err); {
	case errors.As(err, &exhausted):
		return apperr.RateLimitExceeded(fmt.Sprintf("github %s/%s unavailable after %d attempts", owner, repo, exhausted.Attempts), err)
	case code == http.StatusNotFound:
		return apperr.RepositoryNotFound(owner, repo, err)
	case code == http.StatusForbidden:
		return apperr.RateLimitExceeded("github rate limit exceeded", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apperr.Internal(fmt.Sprintf("github request for %s/%s failed", owner, repo), err)
	}
}

func (c *Client) logDemo(name, owner, repo string, err error) {
	fields := logging.CallFields(service, name, owner+"/"+repo, 0)
	fields["action"] = "github_demo_data"
	if err != nil {
		fields["error"] = err.Error()
	}
	c.logger.WithFields(fields).Info("github_demo_data")
}

func (c *Client) logPartial(name, owner, repo string, page int, err error) {
	fields := logging.CallFields(service, name, owner+"/"+repo, 0)
	fields["action"] = "github_partial_result"
	fields["page"] = page
	fields["error"] = err.Error()
	c.logger.WithFields(fields).Warn("github_partial_result")
}

func target(owner, repo string) string {
	return owner + "/" + repo
}

func repoPath(owner, repo string) string {
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo)
}
