package gorm

import "time"

// Agent 智能体：模型 + 工具 + MCP 服务 + 知识库
type Agent struct {
	AgentID      string     `gorm:"primaryKey;column:agent_id;type:varchar(64)" json:"agent_id"`
	OwnerUserID  string     `gorm:"column:owner_user_id;type:varchar(64);index" json:"owner_user_id"`
	Name         string     `gorm:"column:name;type:varchar(100);not null" json:"name"`
	SystemPrompt string     `gorm:"column:system_prompt;type:text" json:"system_prompt"`
	LLMID        string     `gorm:"column:llm_id;type:varchar(64)" json:"llm_id"`
	ToolIDs      StringList `gorm:"column:tool_ids;type:text" json:"tool_ids"`
	MCPIDs       StringList `gorm:"column:mcp_ids;type:text" json:"mcp_ids"`
	KnowledgeIDs StringList `gorm:"column:knowledge_ids;type:text" json:"knowledge_ids"`
	EnableMemory bool       `gorm:"column:enable_memory;default:false" json:"enable_memory"`
	CreateTime   *time.Time `gorm:"column:create_time;autoCreateTime" json:"create_time"`
	UpdateTime   *time.Time `gorm:"column:update_time;autoUpdateTime" json:"update_time"`
}

// TableName 设置表名
func (Agent) TableName() string {
	return "agent"
}

// LLM 智能体可选的模型
type LLM struct {
	LLMID      string     `gorm:"primaryKey;column:llm_id;type:varchar(64)" json:"llm_id"`
	ModelName  string     `gorm:"column:model_name;type:varchar(200);not null" json:"model_name"`
	Provider   string     `gorm:"column:provider;type:varchar(50)" json:"provider"`
	BaseURL    string     `gorm:"column:base_url;type:varchar(500)" json:"base_url"`
	APIKey     string     `gorm:"column:api_key;type:varchar(500)" json:"-"`
	Enabled    bool       `gorm:"column:enabled;default:true" json:"enabled"`
	CreateTime *time.Time `gorm:"column:create_time;autoCreateTime" json:"create_time"`
	UpdateTime *time.Time `gorm:"column:update_time;autoUpdateTime" json:"update_time"`
}

// TableName 设置表名
func (LLM) TableName() string {
	return "llm"
}

// ToolDef 本地工具登记，Name 对应进程内注册的工具名
type ToolDef struct {
	ToolID      string     `gorm:"primaryKey;column:tool_id;type:varchar(64)" json:"tool_id"`
	Name        string     `gorm:"column:name;type:varchar(100);not null;uniqueIndex" json:"name"`
	Description string     `gorm:"column:description;type:varchar(500)" json:"description"`
	CreateTime  *time.Time `gorm:"column:create_time;autoCreateTime" json:"create_time"`
}

// TableName 设置表名
func (ToolDef) TableName() string {
	return "tool_def"
}

// UsageRecord 只追加，查询时聚合
type UsageRecord struct {
	ID           int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UserID       string    `gorm:"column:user_id;type:varchar(64);index:idx_usage_user_time,priority:1" json:"user_id"`
	AgentName    string    `gorm:"column:agent_name;type:varchar(100)" json:"agent_name"`
	ModelName    string    `gorm:"column:model_name;type:varchar(200)" json:"model_name"`
	InputTokens  int       `gorm:"column:input_tokens" json:"input_tokens"`
	OutputTokens int       `gorm:"column:output_tokens" json:"output_tokens"`
	CreateTime   time.Time `gorm:"column:create_time;index:idx_usage_user_time,priority:2" json:"create_time"`
}

// TableName 设置表名
func (UsageRecord) TableName() string {
	return "usage_record"
}
