package analysis

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/repolens/repolens/internal/apperr"
	"github.com/repolens/repolens/internal/cache"
	"github.com/repolens/repolens/internal/model"
	"github.com/repolens/repolens/internal/synth"
)

type cachedIssues struct {
	Issues []model.Issue `json:"issues"`
	Origin model.Origin  `json:"origin"`
}

// ClassifyIssues 列出打开的 issue 并并发评估难度，结果顺序与 issue 列表一致。
// 每个分类单独缓存在 issue_classification:{owner}/{repo}#{number} 下。
func (a *Analyzer) ClassifyIssues(ctx context.Context, owner, repo string) ([]model.ClassifiedIssue, error) {
	if err := validateTarget(owner, repo); err != nil {
		return nil, err
	}
	issues, err := a.issues(ctx, owner, repo)
	if err != nil {
		return nil, apperr.Classified(err)
	}

	results := make([]model.ClassifiedIssue, len(issues))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, issue := range issues {
		g.Go(func() error {
			classified, err := a.classify(gctx, owner, repo, issue)
			if err != nil {
				return err
			}
			results[i] = classified
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperr.Classified(err)
	}
	return results, nil
}

func (a *Analyzer) issues(ctx context.Context, owner, repo string) ([]model.Issue, error) {
	key := cache.RepoIssuesKey(owner, repo)
	cached, ok, err := cache.GetJSON[cachedIssues](ctx, a.cache, key)
	if err != nil {
		a.logCacheDecode(key, err)
	}
	if ok && cached.Issues != nil {
		return cached.Issues, nil
	}

	issues, origin, err := a.github.ListIssues(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, a.cache, key, cachedIssues{Issues: issues, Origin: origin}, a.issueTTL); err != nil {
		return nil, err
	}
	return issues, nil
}

func (a *Analyzer) classify(ctx context.Context, owner, repo string, issue model.Issue) (model.ClassifiedIssue, error) {
	key := cache.IssueClassificationKey(owner, repo, issue.Number)
	cached, ok, err := cache.GetJSON[model.ClassifiedIssue](ctx, a.cache, key)
	if err != nil {
		a.logCacheDecode(key, err)
	}
	if ok && cached.Difficulty.Validate() == nil {
		return cached, nil
	}

	difficulty, origin, err := a.llm.ClassifyIssue(ctx, issue)
	if unavailable(err) {
		a.logSynthesized("classify_issue", key, err)
		difficulty, origin, err = synth.IssueDifficulty(issue), model.OriginSynthesized, nil
	}
	if err != nil {
		return model.ClassifiedIssue{}, err
	}
	if err := difficulty.Validate(); err != nil {
		return model.ClassifiedIssue{}, err
	}

	result := model.ClassifiedIssue{Issue: issue, Difficulty: difficulty, Origin: origin}
	if err := cache.SetJSON(ctx, a.cache, key, result, a.issueTTL); err != nil {
		return model.ClassifiedIssue{}, err
	}
	return result, nil
}
