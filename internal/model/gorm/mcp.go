package gorm

import "time"

// MCPServer MCP 服务登记
type MCPServer struct {
	MCPServerID   string     `gorm:"primaryKey;column:mcp_server_id;type:varchar(64)" json:"mcp_server_id"`
	OwnerUserID   string     `gorm:"column:owner_user_id;type:varchar(64);index" json:"owner_user_id"`
	ServerName    string     `gorm:"column:server_name;type:varchar(100);not null" json:"server_name"`
	URL           string     `gorm:"column:url;type:varchar(1024);not null" json:"url"` // stdio 时为启动命令
	Transport     string     `gorm:"column:transport;type:varchar(32);not null;default:sse" json:"transport"`
	Env           JSONMap    `gorm:"column:env;type:text" json:"env,omitempty"`
	Tools         StringList `gorm:"column:tools;type:text" json:"tools"` // 最近一次探测得到的工具名
	ConfigEnabled bool       `gorm:"column:config_enabled;default:false" json:"config_enabled"`
	MCPAsToolName string     `gorm:"column:mcp_as_tool_name;type:varchar(100)" json:"mcp_as_tool_name"`
	Description   string     `gorm:"column:description;type:varchar(1000)" json:"description"`
	CreateTime    *time.Time `gorm:"column:create_time;autoCreateTime" json:"create_time"`
	UpdateTime    *time.Time `gorm:"column:update_time;autoUpdateTime" json:"update_time"`
}

// TableName 设置表名
func (MCPServer) TableName() string {
	return "mcp_server"
}

// MCPUserConfig 每个 (user, mcp_server) 至多一行
type MCPUserConfig struct {
	ID          int64      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UserID      string     `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:uk_user_server,priority:1" json:"user_id"`
	MCPServerID string     `gorm:"column:mcp_server_id;type:varchar(64);not null;uniqueIndex:uk_user_server,priority:2" json:"mcp_server_id"`
	Config      JSONMap    `gorm:"column:config;type:text" json:"config"`
	UpdateTime  *time.Time `gorm:"column:update_time;autoUpdateTime" json:"update_time"`
}

// TableName 设置表名
func (MCPUserConfig) TableName() string {
	return "mcp_user_config"
}
