package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseResult 是响应文本的解析结果：要么 Parsed 得到 Value，要么 Unparseable 并给出 Reason。
type ParseResult[T any] struct {
	Value  T
	Reason string
	ok     bool
}

// Parsed 构造成功结果。
func Parsed[T any](value T) ParseResult[T] {
	return ParseResult[T]{Value: value, ok: true}
}

// Unparseable 构造失败结果。
func Unparseable[T any](reason string) ParseResult[T] {
	return ParseResult[T]{Reason: reason}
}

// OK 表示是否为 Parsed。
func (r ParseResult[T]) OK() bool {
	return r.ok
}

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*\\s*\n?(.*?)```")

// ParseJSON 去掉 Markdown 代码围栏，截取第一个完整的 JSON 对象或数组并解码为 T。
func ParseJSON[T any](text string) ParseResult[T] {
	candidate := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(candidate); m != nil {
		candidate = strings.TrimSpace(m[1])
	}
	raw, ok := firstJSONValue(candidate)
	if !ok {
		return Unparseable[T]("no JSON value in response")
	}
	var value T
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return Unparseable[T](fmt.Sprintf("decode response: %v", err))
	}
	return Parsed(value)
}

// firstJSONValue 按括号配对找出第一个 {...} 或 [...]，忽略字符串内的括号。
func firstJSONValue(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
