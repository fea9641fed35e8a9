package analysis

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/repolens/repolens/internal/apperr"
	"github.com/repolens/repolens/internal/cache"
	"github.com/repolens/repolens/internal/filetree"
	"github.com/repolens/repolens/internal/model"
	"github.com/repolens/repolens/internal/synth"
)

// AnalyzeRepository 返回仓库分析结果。命中 repo_analysis:{owner}/{repo} 时不访问上游；
// 同一 key 的并发请求共享一次计算。
func (a *Analyzer) AnalyzeRepository(ctx context.Context, owner, repo string) (*model.RepositoryAnalysis, error) {
	if err := validateTarget(owner, repo); err != nil {
		return nil, err
	}
	key := cache.RepoAnalysisKey(owner, repo)
	if cached, ok := a.cachedAnalysis(ctx, key); ok {
		return cached, nil
	}

	// flight 使用不随单个调用方取消的 ctx；每个调用方只在自己的 ctx 上等待。
	flightCtx := context.WithoutCancel(ctx)
	ch := a.flights.DoChan(key, func() (any, error) {
		if cached, ok := a.cachedAnalysis(flightCtx, key); ok {
			return cached, nil
		}
		result, err := a.analyze(flightCtx, owner, repo)
		if err != nil {
			return nil, err
		}
		if err := cache.SetJSON(flightCtx, a.cache, key, result, a.analysisTTL); err != nil {
			return nil, err
		}
		return result, nil
	})

	select {
	case <-ctx.Done():
		return nil, apperr.Classified(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, apperr.Classified(res.Err)
		}
		return res.Val.(*model.RepositoryAnalysis), nil
	}
}

func (a *Analyzer) cachedAnalysis(ctx context.Context, key string) (*model.RepositoryAnalysis, bool) {
	cached, ok, err := cache.GetJSON[model.RepositoryAnalysis](ctx, a.cache, key)
	if err != nil {
		a.logCacheDecode(key, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if err := cached.Validate(); err != nil {
		a.logCacheDecode(key, err)
		return nil, false
	}
	return &cached, true
}

func (a *Analyzer) analyze(ctx context.Context, owner, repo string) (*model.RepositoryAnalysis, error) {
	meta, repoOrigin, err := a.github.GetRepository(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	entries, treeOrigin, err := a.github.GetTree(ctx, owner, repo, meta.DefaultBranch)
	if err != nil {
		return nil, err
	}
	readme, readmeOrigin, err := a.github.GetReadme(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	roots := filetree.Build(entries)

	result := &model.RepositoryAnalysis{Repository: meta, Tree: roots}
	var summaryOrigin, archOrigin, modulesOrigin model.Origin
	target := owner + "/" + repo

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, origin, err := a.llm.Summarize(gctx, meta, readme)
		if unavailable(err) {
			a.logSynthesized("summarize", target, err)
			summary, origin, err = synth.Summary(meta, readme), model.OriginSynthesized, nil
		}
		result.Summary, summaryOrigin = summary, origin
		return err
	})
	g.Go(func() error {
		overview, origin, err := a.llm.ExplainArchitecture(gctx, meta, roots)
		if unavailable(err) {
			a.logSynthesized("explain_architecture", target, err)
			overview, origin, err = synth.Architecture(roots), model.OriginSynthesized, nil
		}
		result.Architecture, archOrigin = overview, origin
		return err
	})
	g.Go(func() error {
		modules, origin, err := a.llm.ExplainModules(gctx, meta, roots)
		if unavailable(err) {
			a.logSynthesized("explain_modules", target, err)
			modules, origin, err = synth.Modules(roots), model.OriginSynthesized, nil
		}
		result.Modules, modulesOrigin = modules, origin
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Origin = model.CombineOrigins(repoOrigin, treeOrigin, readmeOrigin, summaryOrigin, archOrigin, modulesOrigin)
	result.GeneratedAt = a.now().UTC()
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}
