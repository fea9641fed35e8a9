package anthropic

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/repolens/repolens/internal/llm/provider"
)

func TestRegistered(t *testing.T) {
	spec, ok := provider.Resolve("Anthropic")
	if !ok {
		t.Fatalf("anthropic should register itself")
	}
	h := spec.Headers("sk-ant-test")
	if h["x-api-key"] != "sk-ant-test" || h["anthropic-version"] != apiVersion {
		t.Fatalf("unexpected headers: %v", h)
	}
}

func TestEncodeDefaultsMaxTokens(t *testing.T) {
	raw, err := encode(provider.Request{Model: "m", System: "sys", Prompt: "hello"})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	var decoded messagesRequest
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded.MaxTokens != defaultMaxTokens || decoded.System != "sys" || len(decoded.Messages) != 1 {
		t.Fatalf("unexpected request: %+v", decoded)
	}
}

func TestDecodeJoinsTextBlocks(t *testing.T) {
	body := `{"type":"message","content":[{"type":"text","text":"{\"difficulty\":"},{"type":"tool_use","id":"x"},{"type":"text","text":"\"beginner\"}"}]}`
	text, err := decode([]byte(body))
	if err != nil || text != `{"difficulty":"beginner"}` {
		t.Fatalf("unexpected decode result %q, %v", text, err)
	}
	if _, err := decode([]byte(`{"type":"message","content":[]}`)); !errors.Is(err, provider.ErrEmptyCompletion) {
		t.Fatalf("空 content 应返回 ErrEmptyCompletion, got %v", err)
	}
	if _, err := decode([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`)); err == nil {
		t.Fatalf("error 响应应返回错误")
	}
}
