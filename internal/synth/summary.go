package synth

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/repolens/repolens/internal/model"
)

const (
	maxSummaryLines   = 3
	minSummaryLineLen = 30
	maxSummaryLen     = 500
)

const (
	genericWithDescription = "%s describes itself as: %s. The README does not offer a usable prose overview, " +
		"so explore the top-level directories and source files to see how that goal is implemented."
	genericUnknown = "%s is an open-source project without a description or a usable README. " +
		"Explore the directory structure, the main source files and recent issues to understand its purpose and how to contribute."
)

// Summary 从 README 中提取前 3 行非标题、非徽章且长度超过 30 的文本，拼接后截断到
// 500 字符；没有可用行时按是否已知仓库描述返回两段固定的通用描述之一。
func Summary(repo model.Repository, readme string) model.RepositorySummary {
	lines := make([]string, 0, maxSummaryLines)
	for _, raw := range strings.Split(readme, "\n") {
		line := strings.TrimSpace(raw)
		if isHeading(line) || isBadge(line) {
			continue
		}
		if utf8.RuneCountInString(line) <= minSummaryLineLen {
			continue
		}
		lines = append(lines, line)
		if len(lines) == maxSummaryLines {
			break
		}
	}
	if len(lines) == 0 {
		return genericSummary(repo)
	}

	return model.RepositorySummary{Summary: truncate(strings.Join(lines, " "), maxSummaryLen)}
}

func genericSummary(repo model.Repository) model.RepositorySummary {
	name := displayName(repo)
	description := strings.TrimRight(strings.TrimSpace(repo.Description), ".")
	if description == "" {
		return model.RepositorySummary{Summary: fmt.Sprintf(genericUnknown, name)}
	}
	return model.RepositorySummary{Summary: truncate(fmt.Sprintf(genericWithDescription, name, description), maxSummaryLen)}
}

func isHeading(line string) bool {
	return strings.HasPrefix(line, "#")
}

func isBadge(line string) bool {
	return strings.HasPrefix(line, "[![") ||
		strings.HasPrefix(line, "![") ||
		strings.Contains(line, "shields.io") ||
		strings.Contains(line, "badge.svg")
}

func displayName(repo model.Repository) string {
	switch {
	case repo.FullName != "":
		return repo.FullName
	case repo.Owner != "" && repo.Name != "":
		return repo.Owner + "/" + repo.Name
	case repo.Name != "":
		return repo.Name
	default:
		return "This repository"
	}
}

// truncate 按 rune 截断，超长时以 "..." 结尾且总长不超过 limit。
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}

// capitalize 将首字母大写，其余保持不变。
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + s[size:]
}
