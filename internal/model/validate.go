package model

import (
	"fmt"
	"strings"

	"github.com/repolens/repolens/internal/apperr"
)

// Validate 校验摘要结构。
func (s RepositorySummary) Validate() error {
	if strings.TrimSpace(s.Summary) == "" {
		return apperr.Validation("summary", "不能为空")
	}
	return nil
}

// Validate 校验架构概览结构。
func (a ArchitectureOverview) Validate() error {
	if strings.TrimSpace(a.Description) == "" {
		return apperr.Validation("architecture.description", "不能为空")
	}
	if a.Patterns == nil {
		return apperr.Validation("architecture.patterns", "缺失")
	}
	if a.Technologies == nil {
		return apperr.Validation("architecture.technologies", "缺失")
	}
	if a.KeyComponents == nil {
		return apperr.Validation("architecture.keyComponents", "缺失")
	}
	return nil
}

// Validate 校验单个模块解释。
func (m ModuleExplanation) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return apperr.Validation("module.name", "不能为空")
	}
	if strings.TrimSpace(m.Path) == "" {
		return apperr.Validation(fmt.Sprintf("module[%s].path", m.Name), "不能为空")
	}
	if strings.TrimSpace(m.Purpose) == "" {
		return apperr.Validation(fmt.Sprintf("module[%s].purpose", m.Name), "不能为空")
	}
	switch m.Complexity {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
	default:
		return apperr.Validation(fmt.Sprintf("module[%s].complexity", m.Name), "仅支持 low/medium/high")
	}
	if m.KeyFiles == nil {
		return apperr.Validation(fmt.Sprintf("module[%s].keyFiles", m.Name), "缺失")
	}
	return nil
}

// ValidateModules 逐个校验模块解释列表。
func ValidateModules(modules []ModuleExplanation) error {
	if modules == nil {
		return apperr.Validation("modules", "缺失")
	}
	for _, m := range modules {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate 校验 issue 难度分类。
func (d IssueDifficulty) Validate() error {
	switch d.Difficulty {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
	default:
		return apperr.Validation("difficulty", "仅支持 beginner/intermediate/advanced")
	}
	if strings.TrimSpace(d.Reasoning) == "" {
		return apperr.Validation("reasoning", "不能为空")
	}
	return nil
}

// Validate 校验仓库元数据。
func (r Repository) Validate() error {
	if r.Owner == "" || r.Name == "" {
		return apperr.Validation("repository", "owner/name 不能为空")
	}
	return nil
}

// Validate 校验完整分析结果。
func (a RepositoryAnalysis) Validate() error {
	if err := a.Repository.Validate(); err != nil {
		return err
	}
	if err := a.Summary.Validate(); err != nil {
		return err
	}
	if err := a.Architecture.Validate(); err != nil {
		return err
	}
	return ValidateModules(a.Modules)
}
