// Package analysis 串联缓存、GitHub、LLM 与本地合成：先查缓存，未命中时调用上游，
// 上游不可用时合成结构一致的结果，最终结果无论来源都会写回缓存。
package analysis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/repolens/repolens/internal/apperr"
	"github.com/repolens/repolens/internal/cache"
	"github.com/repolens/repolens/internal/model"
)

const (
	DefaultAnalysisTTL = time.Hour
	DefaultIssueTTL    = 30 * time.Minute
	DefaultConcurrency = 4
)

// RepositorySource 是 GitHub 客户端的最小接口。
type RepositorySource interface {
	GetRepository(ctx context.Context, owner, repo string) (model.Repository, model.Origin, error)
	GetTree(ctx context.Context, owner, repo, ref string) ([]model.TreeEntry, model.Origin, error)
	GetReadme(ctx context.Context, owner, repo string) (string, model.Origin, error)
	ListIssues(ctx context.Context, owner, repo string) ([]model.Issue, model.Origin, error)
}

// Explainer 是 LLM 客户端的最小接口。
type Explainer interface {
	Summarize(ctx context.Context, repo model.Repository, readme string) (model.RepositorySummary, model.Origin, error)
	ExplainArchitecture(ctx context.Context, repo model.Repository, roots []*model.FileNode) (model.ArchitectureOverview, model.Origin, error)
	ExplainModules(ctx context.Context, repo model.Repository, roots []*model.FileNode) ([]model.ModuleExplanation, model.Origin, error)
	ClassifyIssue(ctx context.Context, issue model.Issue) (model.IssueDifficulty, model.Origin, error)
}

// Options 控制分析器依赖注入，零值 TTL/并发度使用默认值。
type Options struct {
	Cache       *cache.Cache
	GitHub      RepositorySource
	LLM         Explainer
	Logger      *logrus.Logger
	AnalysisTTL time.Duration
	IssueTTL    time.Duration
	Concurrency int
	Now         func() time.Time
}

// Analyzer 对外只返回三种结果之一：真实结果、合成结果或带错误码的错误。
type Analyzer struct {
	cache       *cache.Cache
	github      RepositorySource
	llm         Explainer
	logger      *logrus.Logger
	analysisTTL time.Duration
	issueTTL    time.Duration
	concurrency int
	now         func() time.Time

	flights singleflight.Group
}

// New 创建分析器。
func New(opts Options) *Analyzer {
	a := &Analyzer{
		cache:       opts.Cache,
		github:      opts.GitHub,
		llm:         opts.LLM,
		logger:      opts.Logger,
		analysisTTL: opts.AnalysisTTL,
		issueTTL:    opts.IssueTTL,
		concurrency: opts.Concurrency,
		now:         opts.Now,
	}
	if a.cache == nil {
		a.cache = cache.New(cache.Options{Logger: opts.Logger})
	}
	if a.logger == nil {
		a.logger = logrus.StandardLogger()
	}
	if a.analysisTTL <= 0 {
		a.analysisTTL = DefaultAnalysisTTL
	}
	if a.issueTTL <= 0 {
		a.issueTTL = DefaultIssueTTL
	}
	if a.concurrency <= 0 {
		a.concurrency = DefaultConcurrency
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

func validateTarget(owner, repo string) error {
	if strings.TrimSpace(owner) == "" {
		return apperr.Validation("owner", "不能为空")
	}
	if strings.TrimSpace(repo) == "" {
		return apperr.Validation("repo", "不能为空")
	}
	return nil
}

// unavailable 判断 LLM 错误是否应回退到本地合成。
func unavailable(err error) bool {
	return errors.Is(err, apperr.ErrServiceUnavailable)
}

func (a *Analyzer) logSynthesized(op, target string, err error) {
	a.logger.WithFields(logrus.Fields{
		"action": "analysis_synthesized",
		"op":     op,
		"target": target,
		"error":  err.Error(),
	}).Warn("analysis_synthesized")
}

func (a *Analyzer) logCacheDecode(key string, err error) {
	a.logger.WithFields(logrus.Fields{
		"action": "analysis_cache_decode",
		"key":    key,
		"error":  err.Error(),
	}).Warn("analysis_cache_decode")
}
