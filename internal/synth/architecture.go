package synth

import (
	"fmt"
	"strings"

	"github.com/repolens/repolens/internal/filetree"
	"github.com/repolens/repolens/internal/model"
)

const maxListedDirectories = 8

// architectureRule 按固定优先级排列，决定 patterns 的顺序。
type architectureRule struct {
	keywords []string
	pattern  string
	clause   string
}

var architectureRules = []architectureRule{
	{[]string{"src", "lib"}, "Modular Architecture", "core source code is separated into dedicated source directories"},
	{[]string{"test"}, "Test-Driven Development", "automated tests live alongside the code"},
	{[]string{"doc"}, "Documentation-First", "documentation is maintained in its own directory"},
	{[]string{"example"}, "Example-Driven Design", "usage examples are provided for new users"},
	{[]string{"script"}, "Automation Scripts", "helper scripts automate common development tasks"},
	{[]string{"config"}, "Configuration Management", "configuration is kept separate from application code"},
}

const fallbackPattern = "Standard Project Layout"

// Architecture 根据顶层目录名的关键字组合架构描述与模式列表。
func Architecture(roots []*model.FileNode) model.ArchitectureOverview {
	dirs := filetree.TopLevelDirectories(roots)
	names := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		names = append(names, strings.ToLower(dir.Name))
	}

	patterns := make([]string, 0, len(architectureRules))
	clauses := make([]string, 0, len(architectureRules))
	for _, rule := range architectureRules {
		if anyContains(names, rule.keywords) {
			patterns = append(patterns, rule.pattern)
			clauses = append(clauses, rule.clause)
		}
	}
	if len(patterns) == 0 {
		patterns = append(patterns, fallbackPattern)
	}

	listed := make([]string, 0, maxListedDirectories)
	for _, dir := range dirs {
		if len(listed) == maxListedDirectories {
			break
		}
		listed = append(listed, capitalize(dir.Name))
	}

	return model.ArchitectureOverview{
		Description:   describeArchitecture(len(dirs), len(roots)-len(dirs), clauses),
		Patterns:      patterns,
		Technologies:  listed,
		KeyComponents: append([]string(nil), listed...),
	}
}

func describeArchitecture(dirCount, rootFiles int, clauses []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The repository is organized into %d top-level %s", dirCount, plural(dirCount, "directory", "directories"))
	if rootFiles > 0 {
		fmt.Fprintf(&b, " and %d root-level %s", rootFiles, plural(rootFiles, "file", "files"))
	}
	b.WriteString(".")
	if len(clauses) == 0 {
		b.WriteString(" It follows a conventional layout without strongly separated concerns.")
		return b.String()
	}
	b.WriteString(" The layout suggests that ")
	b.WriteString(joinClauses(clauses))
	b.WriteString(".")
	return b.String()
}

func joinClauses(clauses []string) string {
	switch len(clauses) {
	case 1:
		return clauses[0]
	case 2:
		return clauses[0] + " and " + clauses[1]
	default:
		return strings.Join(clauses[:len(clauses)-1], "; ") + "; and " + clauses[len(clauses)-1]
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func anyContains(names []string, keywords []string) bool {
	for _, name := range names {
		for _, kw := range keywords {
			if strings.Contains(name, kw) {
				return true
			}
		}
	}
	return false
}
