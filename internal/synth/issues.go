package synth

import "github.com/repolens/repolens/internal/model"

const fallbackDifficultyReasoning = "Automatic difficulty analysis is unavailable, so this issue is " +
	"classified as intermediate by default. Review the description and discussion before starting."

// IssueDifficulty 返回固定的 intermediate 分类。
//
// 与其它合成路径不同，它不读取 labels/comments 等信号；保持现状，见 DESIGN.md。
func IssueDifficulty(model.Issue) model.IssueDifficulty {
	return model.IssueDifficulty{
		Difficulty: model.DifficultyIntermediate,
		Reasoning:  fallbackDifficultyReasoning,
	}
}
