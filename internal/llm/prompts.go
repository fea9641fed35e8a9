package llm

import (
	"fmt"
	"strings"

	"github.com/repolens/repolens/internal/filetree"
	"github.com/repolens/repolens/internal/model"
)

const (
	systemPrompt = "You analyze GitHub repositories for new contributors. Reply with JSON only."

	maxReadmeChars = 4000
	maxTreeLines   = 200
)

func summaryPrompt(repo model.Repository, readme string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", repo.FullName)
	if repo.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", repo.Description)
	}
	if repo.Language != "" {
		fmt.Fprintf(&b, "Primary language: %s\n", repo.Language)
	}
	fmt.Fprintf(&b, "README:\n%s\n\n", clip(readme, maxReadmeChars))
	b.WriteString(`Summarize the project in at most 500 characters. Respond as {"summary": "..."}.`)
	return b.String()
}

func architecturePrompt(repo model.Repository, roots []*model.FileNode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", repo.FullName)
	b.WriteString("File tree:\n")
	writeTree(&b, roots)
	b.WriteString("\nDescribe the architecture. Respond as " +
		`{"description": "...", "patterns": ["..."], "technologies": ["..."], "keyComponents": ["..."]}.`)
	return b.String()
}

func modulesPrompt(repo model.Repository, roots []*model.FileNode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", repo.FullName)
	b.WriteString("Top-level directories:\n")
	for _, dir := range filetree.TopLevelDirectories(roots) {
		fmt.Fprintf(&b, "- %s (%d files)\n", dir.Path, filetree.CountFiles(dir))
	}
	b.WriteString("\nExplain each directory. Respond as a JSON array of " +
		`{"name": "...", "path": "...", "purpose": "...", "description": "...", "complexity": "low|medium|high", "keyFiles": ["..."]}.`)
	return b.String()
}

func issuePrompt(issue model.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Issue #%d: %s\n", issue.Number, issue.Title)
	if len(issue.Labels) > 0 {
		fmt.Fprintf(&b, "Labels: %s\n", strings.Join(issue.Labels, ", "))
	}
	fmt.Fprintf(&b, "Comments: %d\n", issue.Comments)
	if issue.Body != "" {
		fmt.Fprintf(&b, "Body:\n%s\n", clip(issue.Body, maxReadmeChars))
	}
	b.WriteString("\nRate how hard this issue is for a new contributor. Respond as " +
		`{"difficulty": "beginner|intermediate|advanced", "reasoning": "..."}.`)
	return b.String()
}

func writeTree(b *strings.Builder, roots []*model.FileNode) {
	lines := 0
	filetree.Walk(roots, func(n *model.FileNode) bool {
		if lines >= maxTreeLines {
			return false
		}
		suffix := ""
		if n.IsDir() {
			suffix = "/"
		}
		fmt.Fprintf(b, "%s%s\n", n.Path, suffix)
		lines++
		return true
	})
}

func clip(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
