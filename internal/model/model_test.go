package model

import (
	"errors"
	"testing"

	"github.com/repolens/repolens/internal/apperr"
)

func TestCombineOrigins(t *testing.T) {
	cases := []struct {
		name string
		in   []Origin
		want Origin
	}{
		{"empty defaults genuine", nil, OriginGenuine},
		{"all genuine", []Origin{OriginGenuine, OriginGenuine}, OriginGenuine},
		{"all synthesized", []Origin{OriginSynthesized, OriginSynthesized}, OriginSynthesized},
		{"mixed", []Origin{OriginGenuine, OriginSynthesized}, OriginMixed},
		{"blank ignored", []Origin{"", OriginSynthesized}, OriginSynthesized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CombineOrigins(tc.in...); got != tc.want {
				t.Fatalf("got %s want %s", got, tc.want)
			}
		})
	}
}

func TestModuleValidation(t *testing.T) {
	valid := ModuleExplanation{
		Name:       "src",
		Path:       "src",
		Purpose:    "Core Application Logic",
		Complexity: ComplexityLow,
		KeyFiles:   []string{},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("合法模块不应报错: %v", err)
	}

	bad := valid
	bad.Complexity = "extreme"
	if err := bad.Validate(); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("非法 complexity 应返回 VALIDATION_ERROR, got %v", err)
	}

	bad = valid
	bad.KeyFiles = nil
	if err := bad.Validate(); err == nil {
		t.Fatalf("缺失 keyFiles 应报错")
	}
}

func TestIssueDifficultyValidation(t *testing.T) {
	if err := (IssueDifficulty{Difficulty: DifficultyAdvanced, Reasoning: "touches the scheduler"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (IssueDifficulty{Difficulty: "trivial", Reasoning: "x"}).Validate(); err == nil {
		t.Fatalf("未知难度应报错")
	}
	if err := (IssueDifficulty{Difficulty: DifficultyBeginner}).Validate(); err == nil {
		t.Fatalf("空 reasoning 应报错")
	}
}
