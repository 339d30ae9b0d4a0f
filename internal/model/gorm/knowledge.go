package gorm

import "time"

// 知识文件状态
const (
	FileStatusProcessing = "processing"
	FileStatusSuccess    = "success"
	FileStatusFailed     = "failed"
)

// KnowledgeBase 知识库，id 同时作为向量集合名和全文索引名
type KnowledgeBase struct {
	ID          string     `gorm:"primaryKey;column:id;type:varchar(24)" json:"id"`
	Name        string     `gorm:"column:name;type:varchar(100);not null;uniqueIndex" json:"name"`
	OwnerUserID string     `gorm:"column:owner_user_id;type:varchar(64);index" json:"owner_user_id"`
	Description string     `gorm:"column:description;type:varchar(500)" json:"description"`
	CreateTime  *time.Time `gorm:"column:create_time;autoCreateTime" json:"create_time"`
	UpdateTime  *time.Time `gorm:"column:update_time;autoUpdateTime" json:"update_time"`
}

// TableName 设置表名
func (KnowledgeBase) TableName() string {
	return "knowledge_base"
}

// KnowledgeFile 知识库中的文件
type KnowledgeFile struct {
	ID          string     `gorm:"primaryKey;column:id;type:varchar(64)" json:"id"`
	KnowledgeID string     `gorm:"column:knowledge_id;type:varchar(24);not null;index" json:"knowledge_id"`
	FileName    string     `gorm:"column:file_name;type:varchar(255);not null" json:"file_name"`
	OwnerUserID string     `gorm:"column:owner_user_id;type:varchar(64)" json:"owner_user_id"`
	OSSURL      string     `gorm:"column:oss_url;type:varchar(1024)" json:"oss_url"`
	FileSize    int64      `gorm:"column:file_size" json:"file_size"`
	Status      string     `gorm:"column:status;type:varchar(16);not null;default:processing" json:"status"`
	ChunkCount  int        `gorm:"column:chunk_count" json:"chunk_count"`
	ErrorMsg    string     `gorm:"column:error_msg;type:varchar(1000)" json:"error_msg,omitempty"`
	CreateTime  *time.Time `gorm:"column:create_time;autoCreateTime" json:"create_time"`
	UpdateTime  *time.Time `gorm:"column:update_time;autoUpdateTime" json:"update_time"`
}

// TableName 设置表名
func (KnowledgeFile) TableName() string {
	return "knowledge_file"
}
