package llm

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/repolens/repolens/internal/filetree"
	"github.com/repolens/repolens/internal/llm/provider"
	"github.com/repolens/repolens/internal/logging"
	"github.com/repolens/repolens/internal/model"
	"github.com/repolens/repolens/internal/retry"
	"github.com/repolens/repolens/internal/synth"
)

const maxSummaryLen = 500

// completion 返回响应文本；凭证无效或被拒绝时 ok=false 且无错误，由调用方合成结果。
func (c *Client) completion(ctx context.Context, name, prompt string) (string, bool, error) {
	text, err := c.Complete(ctx, name, provider.Request{System: systemPrompt, Prompt: prompt})
	if errors.Is(err, retry.ErrUnauthenticated) {
		c.logFallback(name, "synth", "credential unavailable")
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// Summarize 生成仓库摘要。
func (c *Client) Summarize(ctx context.Context, repo model.Repository, readme string) (model.RepositorySummary, model.Origin, error) {
	const name = "summarize"
	text, ok, err := c.completion(ctx, name, summaryPrompt(repo, readme))
	if err != nil {
		return model.RepositorySummary{}, "", err
	}
	if ok {
		parsed := ParseJSON[model.RepositorySummary](text)
		if parsed.OK() && parsed.Value.Validate() == nil {
			parsed.Value.Summary = truncateRunes(strings.TrimSpace(parsed.Value.Summary), maxSummaryLen)
			return parsed.Value, model.OriginGenuine, nil
		}
		if summary, found := textSummary(text); found {
			c.logFallback(name, "text", parsed.Reason)
			return summary, model.OriginGenuine, nil
		}
		c.logFallback(name, "synth", parsed.Reason)
	}
	return synth.Summary(repo, readme), model.OriginSynthesized, nil
}

// ExplainArchitecture 生成架构概览。
func (c *Client) ExplainArchitecture(ctx context.Context, repo model.Repository, roots []*model.FileNode) (model.ArchitectureOverview, model.Origin, error) {
	const name = "explain_architecture"
	text, ok, err := c.completion(ctx, name, architecturePrompt(repo, roots))
	if err != nil {
		return model.ArchitectureOverview{}, "", err
	}
	if ok {
		parsed := ParseJSON[model.ArchitectureOverview](text)
		if parsed.OK() {
			normalizeArchitecture(&parsed.Value)
			if parsed.Value.Validate() == nil {
				return parsed.Value, model.OriginGenuine, nil
			}
		}
		if overview, found := textArchitecture(text); found {
			c.logFallback(name, "text", parsed.Reason)
			return overview, model.OriginGenuine, nil
		}
		c.logFallback(name, "synth", parsed.Reason)
	}
	return synth.Architecture(roots), model.OriginSynthesized, nil
}

// ExplainModules 为每个顶层目录生成模块解释。模块结构无法从自由文本中可靠提取，
// 解析失败时直接合成。
func (c *Client) ExplainModules(ctx context.Context, repo model.Repository, roots []*model.FileNode) ([]model.ModuleExplanation, model.Origin, error) {
	const name = "explain_modules"
	if len(filetree.TopLevelDirectories(roots)) == 0 {
		return []model.ModuleExplanation{}, model.OriginGenuine, nil
	}
	text, ok, err := c.completion(ctx, name, modulesPrompt(repo, roots))
	if err != nil {
		return nil, "", err
	}
	if ok {
		modules, reason := parseModules(text)
		if reason == "" {
			return modules, model.OriginGenuine, nil
		}
		c.logFallback(name, "synth", reason)
	}
	return synth.Modules(roots), model.OriginSynthesized, nil
}

// ClassifyIssue 评估单个 issue 的难度。
func (c *Client) ClassifyIssue(ctx context.Context, issue model.Issue) (model.IssueDifficulty, model.Origin, error) {
	const name = "classify_issue"
	text, ok, err := c.completion(ctx, name, issuePrompt(issue))
	if err != nil {
		return model.IssueDifficulty{}, "", err
	}
	if ok {
		parsed := ParseJSON[model.IssueDifficulty](text)
		if parsed.OK() {
			parsed.Value.Difficulty = model.Difficulty(strings.ToLower(strings.TrimSpace(string(parsed.Value.Difficulty))))
			if parsed.Value.Validate() == nil {
				return parsed.Value, model.OriginGenuine, nil
			}
		}
		if difficulty, found := textDifficulty(text); found {
			c.logFallback(name, "text", parsed.Reason)
			return difficulty, model.OriginGenuine, nil
		}
		c.logFallback(name, "synth", parsed.Reason)
	}
	return synth.IssueDifficulty(issue), model.OriginSynthesized, nil
}

func (c *Client) logFallback(call, branch, reason string) {
	fields := logging.CallFields(service, call, c.spec.Key, 0)
	fields["action"] = "llm_fallback"
	fields["branch"] = branch
	if reason != "" {
		fields["reason"] = reason
	}
	c.logger.WithFields(fields).Info("llm_fallback")
}

func normalizeArchitecture(a *model.ArchitectureOverview) {
	a.Description = strings.TrimSpace(a.Description)
	if a.Patterns == nil {
		a.Patterns = []string{}
	}
	if a.Technologies == nil {
		a.Technologies = []string{}
	}
	if a.KeyComponents == nil {
		a.KeyComponents = []string{}
	}
}

func parseModules(text string) ([]model.ModuleExplanation, string) {
	list := ParseJSON[[]model.ModuleExplanation](text)
	if !list.OK() {
		wrapped := ParseJSON[struct {
			Modules []model.ModuleExplanation `json:"modules"`
		}](text)
		if !wrapped.OK() || wrapped.Value.Modules == nil {
			return nil, list.Reason
		}
		list = Parsed(wrapped.Value.Modules)
	}
	modules := list.Value
	for i := range modules {
		modules[i].Complexity = model.Complexity(strings.ToLower(strings.TrimSpace(string(modules[i].Complexity))))
		if modules[i].KeyFiles == nil {
			modules[i].KeyFiles = []string{}
		}
	}
	if err := model.ValidateModules(modules); err != nil {
		return nil, err.Error()
	}
	return modules, ""
}

var (
	summaryField    = regexp.MustCompile(`(?is)"?summary"?\s*[:=]\s*"?(.+)`)
	descriptionLine = regexp.MustCompile(`(?i)^\s*"?description"?\s*[:=]\s*`)
	difficultyWord  = regexp.MustCompile(`(?i)\b(beginner|intermediate|advanced)\b`)
	reasoningField  = regexp.MustCompile(`(?is)"?reasoning"?\s*[:=]\s*"?(.+)`)
)

// knownPatterns 是文本回退时识别的架构模式，按列出顺序输出。
var knownPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"MVC", regexp.MustCompile(`(?i)\bmvc\b|model[- ]view[- ]controller`)},
	{"Microservices", regexp.MustCompile(`(?i)micro-?services?`)},
	{"Monorepo", regexp.MustCompile(`(?i)mono-?repo`)},
	{"Layered Architecture", regexp.MustCompile(`(?i)\blayered\b`)},
	{"Hexagonal Architecture", regexp.MustCompile(`(?i)hexagonal|ports and adapters`)},
	{"Event-Driven", regexp.MustCompile(`(?i)event[- ]driven`)},
	{"Plugin Architecture", regexp.MustCompile(`(?i)plug-?in`)},
	{"Client-Server", regexp.MustCompile(`(?i)client[- ]server`)},
	{"REST API", regexp.MustCompile(`(?i)\brest(ful)?\b`)},
}

// textSummary 是摘要的文本回退分支：优先取 summary 字段，其次使用整段文本。
func textSummary(text string) (model.RepositorySummary, bool) {
	body := stripFences(text)
	if m := summaryField.FindStringSubmatch(body); m != nil {
		body = m[1]
	}
	body = cleanValue(body)
	if body == "" {
		return model.RepositorySummary{}, false
	}
	return model.RepositorySummary{Summary: truncateRunes(body, maxSummaryLen)}, true
}

// textArchitecture 是架构概览的文本回退分支：首段作为描述，并识别已知模式关键字。
func textArchitecture(text string) (model.ArchitectureOverview, bool) {
	body := stripFences(text)
	var description string
	for _, paragraph := range strings.Split(body, "\n\n") {
		paragraph = cleanValue(descriptionLine.ReplaceAllString(strings.TrimSpace(paragraph), ""))
		if paragraph != "" {
			description = paragraph
			break
		}
	}
	if description == "" {
		return model.ArchitectureOverview{}, false
	}
	patterns := []string{}
	for _, p := range knownPatterns {
		if p.re.MatchString(body) {
			patterns = append(patterns, p.name)
		}
	}
	return model.ArchitectureOverview{
		Description:   truncateRunes(description, maxSummaryLen),
		Patterns:      patterns,
		Technologies:  []string{},
		KeyComponents: []string{},
	}, true
}

// textDifficulty 是 issue 难度的文本回退分支：取第一个难度关键字，reasoning 字段或全文作为理由。
func textDifficulty(text string) (model.IssueDifficulty, bool) {
	body := stripFences(text)
	m := difficultyWord.FindStringSubmatch(body)
	if m == nil {
		return model.IssueDifficulty{}, false
	}
	reasoning := body
	if r := reasoningField.FindStringSubmatch(body); r != nil {
		reasoning = r[1]
	}
	reasoning = cleanValue(reasoning)
	if reasoning == "" {
		return model.IssueDifficulty{}, false
	}
	return model.IssueDifficulty{
		Difficulty: model.Difficulty(strings.ToLower(m[1])),
		Reasoning:  truncateRunes(reasoning, maxSummaryLen),
	}, true
}

func stripFences(text string) string {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// cleanValue 去掉首行之后的内容以及残留的 JSON 标点。
func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 && strings.HasPrefix(strings.TrimSpace(s[i:]), "\"") {
		s = s[:i]
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "{}\",'`"))
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-3]) + "..."
}
