package config

import (
	_ "github.com/repolens/repolens/internal/llm/provider/anthropic"
	_ "github.com/repolens/repolens/internal/llm/provider/openai"
)
