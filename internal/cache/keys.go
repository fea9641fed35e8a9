package cache

import "fmt"

// RepoAnalysisKey 是整份仓库分析结果的缓存键。
func RepoAnalysisKey(owner, repo string) string {
	return fmt.Sprintf("repo_analysis:%s/%s", owner, repo)
}

// IssueClassificationKey 是单个 issue 难度分类的缓存键。
func IssueClassificationKey(owner, repo string, number int) string {
	return fmt.Sprintf("issue_classification:%s/%s#%d", owner, repo, number)
}

// RepoIssuesKey 是仓库 issue 列表的缓存键。
func RepoIssuesKey(owner, repo string) string {
	return fmt.Sprintf("repo_issues:%s/%s", owner, repo)
}
