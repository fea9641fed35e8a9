// Package model 定义 GitHub/LLM 集成层共享的领域对象。真实结果与合成结果
// 使用同一组结构与校验规则，下游无法通过形状区分来源。
package model

import "time"

// NodeType 区分目录与文件。
type NodeType string

const (
	NodeFile      NodeType = "file"
	NodeDirectory NodeType = "directory"
)

// TreeEntry 是 GitHub tree API 返回的扁平条目。
type TreeEntry struct {
	Path string   `json:"path"`
	Type NodeType `json:"type"`
	Size *int64   `json:"size,omitempty"`
}

// FileNode 是重建后的层级节点，Children 仅目录拥有，顺序等于处理顺序。
type FileNode struct {
	Path      string      `json:"path"`
	Name      string      `json:"name"`
	Type      NodeType    `json:"type"`
	Children  []*FileNode `json:"children,omitempty"`
	Size      *int64      `json:"size,omitempty"`
	Extension string      `json:"extension,omitempty"`
}

// IsDir 判断节点是否为目录。
func (n *FileNode) IsDir() bool {
	return n != nil && n.Type == NodeDirectory
}

// Repository 是仓库元数据的最小子集。
type Repository struct {
	Owner         string   `json:"owner"`
	Name          string   `json:"name"`
	FullName      string   `json:"fullName"`
	Description   string   `json:"description"`
	DefaultBranch string   `json:"defaultBranch"`
	Language      string   `json:"language"`
	Stars         int      `json:"stars"`
	Forks         int      `json:"forks"`
	OpenIssues    int      `json:"openIssues"`
	Topics        []string `json:"topics"`
	HTMLURL       string   `json:"htmlUrl"`
}

// Issue 表示一个打开的 issue（已排除 pull request）。
type Issue struct {
	Number   int      `json:"number"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	State    string   `json:"state"`
	Labels   []string `json:"labels"`
	Comments int      `json:"comments"`
	HTMLURL  string   `json:"htmlUrl"`
}

// Complexity 是模块复杂度档位。
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Difficulty 是 issue 难度档位。
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// RepositorySummary 是仓库的自然语言摘要。
type RepositorySummary struct {
	Summary string `json:"summary"`
}

// ArchitectureOverview 描述仓库整体结构与识别出的模式。
type ArchitectureOverview struct {
	Description   string   `json:"description"`
	Patterns      []string `json:"patterns"`
	Technologies  []string `json:"technologies"`
	KeyComponents []string `json:"keyComponents"`
}

// ModuleExplanation 解释一个顶层目录的职责。
type ModuleExplanation struct {
	Name        string     `json:"name"`
	Path        string     `json:"path"`
	Purpose     string     `json:"purpose"`
	Description string     `json:"description"`
	Complexity  Complexity `json:"complexity"`
	KeyFiles    []string   `json:"keyFiles"`
}

// IssueDifficulty 是 issue 难度分类结果。
type IssueDifficulty struct {
	Difficulty Difficulty `json:"difficulty"`
	Reasoning  string     `json:"reasoning"`
}

// ClassifiedIssue 组合 issue 与其难度。
type ClassifiedIssue struct {
	Issue      Issue           `json:"issue"`
	Difficulty IssueDifficulty `json:"difficulty"`
	Origin     Origin          `json:"origin"`
}

// RepositoryAnalysis 是缓存在 repo_analysis:{owner}/{repo} 下的完整分析结果。
type RepositoryAnalysis struct {
	Repository   Repository           `json:"repository"`
	Tree         []*FileNode          `json:"tree"`
	Summary      RepositorySummary    `json:"summary"`
	Architecture ArchitectureOverview `json:"architecture"`
	Modules      []ModuleExplanation  `json:"modules"`
	Origin       Origin               `json:"origin"`
	GeneratedAt  time.Time            `json:"generatedAt"`
}
