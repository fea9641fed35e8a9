package synth

import (
	"fmt"

	"github.com/repolens/repolens/internal/model"
)

// 以下数据用于 GitHub 凭证无效时的演示路径，内容固定。

// DemoRepository 生成固定的仓库元数据。
func DemoRepository(owner, repo string) model.Repository {
	return model.Repository{
		Owner:         owner,
		Name:          repo,
		FullName:      owner + "/" + repo,
		Description:   "Demo data generated locally because GitHub credentials are not configured.",
		DefaultBranch: "main",
		Language:      "JavaScript",
		Topics:        []string{},
		HTMLURL:       fmt.Sprintf("https://github.com/%s/%s", owner, repo),
	}
}

// DemoReadme 生成固定的 README 文本。
func DemoReadme(owner, repo string) string {
	return fmt.Sprintf(`# %s

[![build](https://img.shields.io/badge/build-passing-green.svg)](https://example.com)

This demo repository illustrates how %s/%s would be analyzed once credentials are configured.
It contains a small application with source code, tests, documentation and configuration.
`, repo, owner, repo)
}

func size(n int64) *int64 {
	return &n
}

// DemoTree 返回固定的扁平目录条目，刻意保持无序以走完整的重建流程。
func DemoTree() []model.TreeEntry {
	return []model.TreeEntry{
		{Path: "README.md", Type: model.NodeFile, Size: size(1024)},
		{Path: "package.json", Type: model.NodeFile, Size: size(512)},
		{Path: "src/index.js", Type: model.NodeFile, Size: size(2048)},
		{Path: "src", Type: model.NodeDirectory},
		{Path: "src/app.js", Type: model.NodeFile, Size: size(4096)},
		{Path: "src/components", Type: model.NodeDirectory},
		{Path: "src/components/Button.js", Type: model.NodeFile, Size: size(768)},
		{Path: "tests", Type: model.NodeDirectory},
		{Path: "tests/app.test.js", Type: model.NodeFile, Size: size(1536)},
		{Path: "docs", Type: model.NodeDirectory},
		{Path: "docs/guide.md", Type: model.NodeFile, Size: size(3072)},
		{Path: "config", Type: model.NodeDirectory},
		{Path: "config/default.json", Type: model.NodeFile, Size: size(256)},
	}
}

// DemoIssues 生成固定的 issue 列表。
func DemoIssues(owner, repo string) []model.Issue {
	url := func(n int) string {
		return fmt.Sprintf("https://github.com/%s/%s/issues/%d", owner, repo, n)
	}
	return []model.Issue{
		{Number: 1, Title: "Improve README setup instructions", State: "open", Labels: []string{"documentation", "good first issue"}, HTMLURL: url(1)},
		{Number: 2, Title: "Add unit tests for the Button component", State: "open", Labels: []string{"tests"}, Comments: 2, HTMLURL: url(2)},
		{Number: 3, Title: "Refactor configuration loading", State: "open", Labels: []string{"enhancement"}, Comments: 5, HTMLURL: url(3)},
	}
}
