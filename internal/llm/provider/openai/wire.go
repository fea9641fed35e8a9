// Package openai 注册 OpenAI Chat Completions 线格式。
package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/repolens/repolens/internal/llm/provider"
)

const (
	key         = "openai"
	placeholder = "your_openai_api_key_here"
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

func init() {
	provider.MustRegister(provider.Spec{
		Key:            key,
		Description:    "OpenAI chat completions",
		DefaultBaseURL: "https://api.openai.com",
		DefaultModel:   "gpt-4o-mini",
		Placeholder:    placeholder,
		Path:           "/v1/chat/completions",
		Headers:        headers,
		Encode:         encode,
		Decode:         decode,
	})
}

func headers(apiKey string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + apiKey}
}

func encode(req provider.Request) ([]byte, error) {
	body := chatRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: 0.2,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, message{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, message{Role: "user", Content: req.Prompt})
	return json.Marshal(body)
}

func decode(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("openai: invalid response body")
	}
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return "", fmt.Errorf("openai: %s", msg.String())
	}
	text := strings.TrimSpace(gjson.GetBytes(body, "choices.0.message.content").String())
	if text == "" {
		return "", provider.ErrEmptyCompletion
	}
	return text, nil
}
