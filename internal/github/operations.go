package github

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/repolens/repolens/internal/apperr"
	"github.com/repolens/repolens/internal/filetree"
	"github.com/repolens/repolens/internal/model"
	"github.com/repolens/repolens/internal/retry"
	"github.com/repolens/repolens/internal/synth"
)

type repoResponse struct {
	Name            string   `json:"name"`
	FullName        string   `json:"full_name"`
	Description     *string  `json:"description"`
	DefaultBranch   string   `json:"default_branch"`
	Language        *string  `json:"language"`
	StargazersCount int      `json:"stargazers_count"`
	ForksCount      int      `json:"forks_count"`
	OpenIssuesCount int      `json:"open_issues_count"`
	Topics          []string `json:"topics"`
	HTMLURL         string   `json:"html_url"`
	Owner           struct {
		Login string `json:"login"`
	} `json:"owner"`
}

type treeResponse struct {
	SHA       string `json:"sha"`
	Truncated bool   `json:"truncated"`
	Tree      []struct {
		Path string `json:"path"`
		Type string `json:"type"`
		Size *int64 `json:"size"`
	} `json:"tree"`
}

type readmeResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type issueResponse struct {
	Number   int     `json:"number"`
	Title    string  `json:"title"`
	Body     *string `json:"body"`
	State    string  `json:"state"`
	Comments int     `json:"comments"`
	HTMLURL  string  `json:"html_url"`
	Labels   []struct {
		Name string `json:"name"`
	} `json:"labels"`
	PullRequest *struct{} `json:"pull_request"`
}

// GetRepository 读取仓库元数据。404 映射为 REPOSITORY_NOT_FOUND。
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (model.Repository, model.Origin, error) {
	if !c.Authenticated() {
		c.logDemo("get_repository", owner, repo, nil)
		return synth.DemoRepository(owner, repo), model.OriginSynthesized, nil
	}

	var raw repoResponse
	err := c.request(ctx, "get_repository", target(owner, repo), repoPath(owner, repo), nil, &raw)
	if errors.Is(err, retry.ErrUnauthenticated) {
		c.logDemo("get_repository", owner, repo, err)
		return synth.DemoRepository(owner, repo), model.OriginSynthesized, nil
	}
	if err != nil {
		return model.Repository{}, "", c.classify(owner, repo, err)
	}

	result := model.Repository{
		Owner:         raw.Owner.Login,
		Name:          raw.Name,
		FullName:      raw.FullName,
		DefaultBranch: raw.DefaultBranch,
		Stars:         raw.StargazersCount,
		Forks:         raw.ForksCount,
		OpenIssues:    raw.OpenIssuesCount,
		Topics:        raw.Topics,
		HTMLURL:       raw.HTMLURL,
	}
	if result.Owner == "" {
		result.Owner = owner
	}
	if result.Name == "" {
		result.Name = repo
	}
	if result.FullName == "" {
		result.FullName = target(owner, repo)
	}
	if result.Topics == nil {
		result.Topics = []string{}
	}
	if raw.Description != nil {
		result.Description = *raw.Description
	}
	if raw.Language != nil {
		result.Language = *raw.Language
	}
	return result, model.OriginGenuine, nil
}

// GetTree 读取 ref 的递归 git tree。tree 类型映射为目录，其余视为文件。
func (c *Client) GetTree(ctx context.Context, owner, repo, ref string) ([]model.TreeEntry, model.Origin, error) {
	if !c.Authenticated() {
		c.logDemo("get_tree", owner, repo, nil)
		return synth.DemoTree(), model.OriginSynthesized, nil
	}
	if ref == "" {
		ref = "HEAD"
	}

	var raw treeResponse
	path := repoPath(owner, repo) + "/git/trees/" + url.PathEscape(ref)
	err := c.request(ctx, "get_tree", target(owner, repo), path, url.Values{"recursive": {"1"}}, &raw)
	if errors.Is(err, retry.ErrUnauthenticated) {
		c.logDemo("get_tree", owner, repo, err)
		return synth.DemoTree(), model.OriginSynthesized, nil
	}
	if err != nil {
		return nil, "", c.classify(owner, repo, err)
	}
	if raw.Truncated {
		c.logger.WithField("action", "github_tree_truncated").
			WithField("target", target(owner, repo)).
			Warn("github_tree_truncated")
	}

	entries := make([]model.TreeEntry, 0, len(raw.Tree))
	for _, item := range raw.Tree {
		entry := model.TreeEntry{Path: item.Path, Type: model.NodeFile, Size: item.Size}
		if item.Type == "tree" {
			entry.Type = model.NodeDirectory
			entry.Size = nil
		}
		entries = append(entries, entry)
	}
	return entries, model.OriginGenuine, nil
}

// GetStructure 读取 git tree 并重建为层级结构。
func (c *Client) GetStructure(ctx context.Context, owner, repo, ref string) ([]*model.FileNode, model.Origin, error) {
	entries, origin, err := c.GetTree(ctx, owner, repo, ref)
	if err != nil {
		return nil, "", err
	}
	return filetree.Build(entries), origin, nil
}

// GetReadme 返回解码后的 README；仓库没有 README 时返回空串。
func (c *Client) GetReadme(ctx context.Context, owner, repo string) (string, model.Origin, error) {
	if !c.Authenticated() {
		c.logDemo("get_readme", owner, repo, nil)
		return synth.DemoReadme(owner, repo), model.OriginSynthesized, nil
	}

	var raw readmeResponse
	err := c.request(ctx, "get_readme", target(owner, repo), repoPath(owner, repo)+"/readme", nil, &raw)
	switch {
	case errors.Is(err, retry.ErrUnauthenticated):
		c.logDemo("get_readme", owner, repo, err)
		return synth.DemoReadme(owner, repo), model.OriginSynthesized, nil
	case retry.StatusCode(err) == http.StatusNotFound:
		return "", model.OriginGenuine, nil
	case err != nil:
		return "", "", c.classify(owner, repo, err)
	}

	if raw.Encoding != "" && raw.Encoding != "base64" {
		return raw.Content, model.OriginGenuine, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(stripNewlines(raw.Content))
	if err != nil {
		return "", "", apperr.Internal("decode readme for "+target(owner, repo), err)
	}
	return string(decoded), model.OriginGenuine, nil
}

// ListIssues 分页读取打开的 issue，每页 100 条，最多 MaxIssuePages 页，并过滤掉 pull request。
// 首页即返回 401 时使用演示数据；后续页返回 401 时截止并返回已读取的页。
func (c *Client) ListIssues(ctx context.Context, owner, repo string) ([]model.Issue, model.Origin, error) {
	if !c.Authenticated() {
		c.logDemo("list_issues", owner, repo, nil)
		return synth.DemoIssues(owner, repo), model.OriginSynthesized, nil
	}

	issues := []model.Issue{}
	for page := 1; page <= c.maxPages; page++ {
		query := url.Values{
			"state":    {"open"},
			"per_page": {strconv.Itoa(perPage)},
			"page":     {strconv.Itoa(page)},
		}
		var raw []issueResponse
		err := c.request(ctx, "list_issues", target(owner, repo), repoPath(owner, repo)+"/issues", query, &raw)
		if errors.Is(err, retry.ErrUnauthenticated) {
			if page > 1 {
				// 已取得的页保留为真实结果，不再混入演示数据。
				c.logPartial("list_issues", owner, repo, page, err)
				return issues, model.OriginGenuine, nil
			}
			c.logDemo("list_issues", owner, repo, err)
			return synth.DemoIssues(owner, repo), model.OriginSynthesized, nil
		}
		if err != nil {
			return nil, "", c.classify(owner, repo, err)
		}

		for _, item := range raw {
			if item.PullRequest != nil {
				continue
			}
			issues = append(issues, toIssue(item))
		}
		if len(raw) < perPage {
			break
		}
	}
	return issues, model.OriginGenuine, nil
}

func toIssue(item issueResponse) model.Issue {
	issue := model.Issue{
		Number:   item.Number,
		Title:    item.Title,
		State:    item.State,
		Comments: item.Comments,
		HTMLURL:  item.HTMLURL,
		Labels:   make([]string, 0, len(item.Labels)),
	}
	if item.Body != nil {
		issue.Body = *item.Body
	}
	for _, label := range item.Labels {
		issue.Labels = append(issue.Labels, label.Name)
	}
	return issue
}

func stripNewlines(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}
