package schema

import "time"

// 历史角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// HistoryEntry 对话历史的一条记录
type HistoryEntry struct {
	ID         string    `json:"id"`
	DialogID   string    `json:"dialog_id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Events     []*Event  `json:"events"`
	CreateTime time.Time `json:"create_time"`
}
