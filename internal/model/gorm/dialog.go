package gorm

import "time"

// 对话类型
const (
	AgentTypeAgent    = "Agent"
	AgentTypeMCPAgent = "MCPAgent"
)

// Dialog 对话
type Dialog struct {
	DialogID   string     `gorm:"primaryKey;column:dialog_id;type:varchar(64)" json:"dialog_id"`
	AgentID    string     `gorm:"column:agent_id;type:varchar(64);index" json:"agent_id"`
	AgentType  string     `gorm:"column:agent_type;type:varchar(16);default:Agent" json:"agent_type"`
	UserID     string     `gorm:"column:user_id;type:varchar(64);index" json:"user_id"`
	Title      string     `gorm:"column:title;type:varchar(255)" json:"title"`
	CreateTime *time.Time `gorm:"column:create_time;autoCreateTime" json:"create_time"`
	UpdateTime *time.Time `gorm:"column:update_time;autoUpdateTime" json:"update_time"`
}

// TableName 设置表名
func (Dialog) TableName() string {
	return "dialog"
}

// HistoryEntry 对话历史，(dialog_id, create_time) 决定回放顺序
type HistoryEntry struct {
	ID         string    `gorm:"primaryKey;column:id;type:varchar(64)" json:"id"`
	DialogID   string    `gorm:"column:dialog_id;type:varchar(64);not null;index:idx_dialog_time,priority:1" json:"dialog_id"`
	Role       string    `gorm:"column:role;type:varchar(16);not null" json:"role"`
	Content    string    `gorm:"column:content;type:text" json:"content"`
	Events     LongText  `gorm:"column:events" json:"events"` // 事件记录 JSON 数组
	CreateTime time.Time `gorm:"column:create_time;index:idx_dialog_time,priority:2" json:"create_time"`
}

// TableName 设置表名
func (HistoryEntry) TableName() string {
	return "history_entry"
}
