package synth

import (
	"fmt"
	"strings"

	"github.com/repolens/repolens/internal/filetree"
	"github.com/repolens/repolens/internal/model"
)

const (
	highComplexityFiles   = 15
	mediumComplexityFiles = 8
	maxPreferredKeyFiles  = 8
	maxFallbackKeyFiles   = 6
)

type moduleRule struct {
	keywords    []string
	purpose     string
	description string
}

// moduleRules 顺序即匹配优先级，第一条命中的规则生效。
var moduleRules = []moduleRule{
	{[]string{"test"}, "Test Suite", "Contains automated tests that verify the behavior of the codebase."},
	{[]string{"doc"}, "Documentation Hub", "Holds guides and reference material for users and contributors."},
	{[]string{"src", "lib"}, "Core Application Logic", "Implements the main functionality of the project."},
	{[]string{"config"}, "Configuration", "Defines settings that control how the application is built and run."},
	{[]string{"util", "helper"}, "Utility Functions", "Provides shared helpers reused across the codebase."},
	{[]string{"component"}, "UI Components", "Contains reusable interface components."},
	{[]string{"service", "api"}, "Service Layer", "Handles communication with external services and exposes APIs."},
	{[]string{"model", "schema"}, "Data Models", "Defines the data structures and schemas used by the application."},
	{[]string{"example", "demo"}, "Examples", "Demonstrates how to use the project through runnable samples."},
	{[]string{"script"}, "Build & Automation Scripts", "Automates development, build and release tasks."},
	{[]string{"middleware"}, "Middleware", "Processes requests and responses between application layers."},
	{[]string{"route", "controller"}, "Request Routing", "Maps incoming requests to the code that handles them."},
}

var keyFileFragments = []string{"index", "main", "app", "config", "setup"}

var sourceExtensions = map[string]struct{}{
	"go": {}, "js": {}, "jsx": {}, "ts": {}, "tsx": {}, "py": {}, "java": {}, "rb": {},
	"rs": {}, "c": {}, "cc": {}, "cpp": {}, "h": {}, "hpp": {}, "cs": {}, "php": {},
	"swift": {}, "kt": {}, "scala": {}, "vue": {},
}

// Modules 为每个顶层目录生成一条模块解释，顺序与目录顺序一致。
func Modules(roots []*model.FileNode) []model.ModuleExplanation {
	dirs := filetree.TopLevelDirectories(roots)
	modules := make([]model.ModuleExplanation, 0, len(dirs))
	for _, dir := range dirs {
		modules = append(modules, Module(dir))
	}
	return modules
}

// Module 为单个目录生成模块解释。
func Module(dir *model.FileNode) model.ModuleExplanation {
	files := filetree.Files(dir)
	purpose, description := classifyModule(dir.Name)
	return model.ModuleExplanation{
		Name:        dir.Name,
		Path:        dir.Path,
		Purpose:     purpose,
		Description: fmt.Sprintf("%s %s", description, fileCountPhrase(len(files))),
		Complexity:  complexityFor(len(files)),
		KeyFiles:    keyFiles(files),
	}
}

func classifyModule(name string) (string, string) {
	lower := strings.ToLower(name)
	for _, rule := range moduleRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.purpose, rule.description
			}
		}
	}
	label := capitalize(name)
	return label + " Module", fmt.Sprintf("Groups the code and assets related to %s.", label)
}

func complexityFor(fileCount int) model.Complexity {
	switch {
	case fileCount > highComplexityFiles:
		return model.ComplexityHigh
	case fileCount > mediumComplexityFiles:
		return model.ComplexityMedium
	default:
		return model.ComplexityLow
	}
}

func fileCountPhrase(n int) string {
	return fmt.Sprintf("It contains %d %s.", n, plural(n, "file", "files"))
}

// keyFiles 优先选择名称命中片段或扩展名属于源码的文件（最多 8 个），否则取前 6 个。
func keyFiles(files []*model.FileNode) []string {
	preferred := make([]string, 0, maxPreferredKeyFiles)
	for _, f := range files {
		if len(preferred) == maxPreferredKeyFiles {
			break
		}
		if isKeyFile(f) {
			preferred = append(preferred, f.Path)
		}
	}
	if len(preferred) > 0 {
		return preferred
	}

	fallback := make([]string, 0, maxFallbackKeyFiles)
	for _, f := range files {
		if len(fallback) == maxFallbackKeyFiles {
			break
		}
		fallback = append(fallback, f.Path)
	}
	return fallback
}

func isKeyFile(f *model.FileNode) bool {
	lower := strings.ToLower(f.Name)
	for _, fragment := range keyFileFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	_, ok := sourceExtensions[strings.ToLower(f.Extension)]
	return ok
}
