// Package anthropic 注册 Anthropic Messages 线格式。
package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/repolens/repolens/internal/llm/provider"
)

const (
	key         = "anthropic"
	placeholder = "your_anthropic_api_key_here"
	apiVersion  = "2023-06-01"

	defaultMaxTokens = 1024
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

func init() {
	provider.MustRegister(provider.Spec{
		Key:            key,
		Description:    "Anthropic messages",
		DefaultBaseURL: "https://api.anthropic.com",
		DefaultModel:   "claude-3-5-haiku-latest",
		Placeholder:    placeholder,
		Path:           "/v1/messages",
		Headers:        headers,
		Encode:         encode,
		Decode:         decode,
	})
}

func headers(apiKey string) map[string]string {
	return map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": apiVersion,
	}
}

// encode Messages API 要求 max_tokens 必填。
func encode(req provider.Request) ([]byte, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return json.Marshal(messagesRequest{
		Model:     req.Model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  []message{{Role: "user", Content: req.Prompt}},
	})
}

func decode(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("anthropic: invalid response body")
	}
	if gjson.GetBytes(body, "type").String() == "error" {
		return "", fmt.Errorf("anthropic: %s", gjson.GetBytes(body, "error.message").String())
	}
	var parts []string
	for _, block := range gjson.GetBytes(body, `content.#(type=="text")#.text`).Array() {
		parts = append(parts, block.String())
	}
	text := strings.TrimSpace(strings.Join(parts, ""))
	if text == "" {
		return "", provider.ErrEmptyCompletion
	}
	return text, nil
}
