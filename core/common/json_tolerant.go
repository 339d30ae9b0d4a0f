package common

import (
	"strings"

	"github.com/bytedance/sonic"
)

// StripCodeFence 去掉 LLM 输出中包裹 JSON 的 Markdown 代码块
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// DecodeLLMJSON 宽松解析 LLM 返回的 JSON：先去代码块，再截取第一个对象或数组
func DecodeLLMJSON(raw string, v any) error {
	s := StripCodeFence(raw)
	if err := sonic.UnmarshalString(s, v); err == nil {
		return nil
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return sonic.UnmarshalString(s, v)
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(s, closer)
	if end <= start {
		return sonic.UnmarshalString(s, v)
	}
	return sonic.UnmarshalString(s[start:end+1], v)
}
