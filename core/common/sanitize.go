package common

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
)

// 知识库 ID: 小写字母开头，最多 24 个字符；ES 索引名只能小写
var knowledgeIDRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,23}$`)

// SanitizeMilvusString 转义 Milvus 表达式中的特殊字符
func SanitizeMilvusString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// ValidKnowledgeID 知识库 ID 必须能直接用作集合名和索引名
func ValidKnowledgeID(id string) bool {
	return knowledgeIDRe.MatchString(id)
}

// HistoryCollectionName 对话历史记忆使用的独立集合名
func HistoryCollectionName(dialogID string) string {
	sum := md5.Sum([]byte(dialogID))
	return "h" + hex.EncodeToString(sum[:])[:20]
}

// IndexName ES 索引名必须小写
func IndexName(collection string) string {
	return strings.ToLower(collection)
}
