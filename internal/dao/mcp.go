package dao

import (
	"context"
	stdErrors "errors"

	gormModel "github.com/Malowking/agentchat/internal/model/gorm"
	"github.com/gogf/gf/v2/frame/g"
	"gorm.io/gorm"
)

// MCPServerDAO MCP 服务数据访问对象
type MCPServerDAO struct{}

var MCPServer = &MCPServerDAO{}

// GetByID 根据ID查询MCP服务
func (d *MCPServerDAO) GetByID(ctx context.Context, id string) (*gormModel.MCPServer, error) {
	var server gormModel.MCPServer
	if err := GetDB().WithContext(ctx).Where("mcp_server_id = ?", id).First(&server).Error; err != nil {
		return nil, err
	}
	return &server, nil
}

// GetByIDs 批量查询
func (d *MCPServerDAO) GetByIDs(ctx context.Context, ids []string) ([]*gormModel.MCPServer, error) {
	var servers []*gormModel.MCPServer
	if len(ids) == 0 {
		return servers, nil
	}
	err := GetDB().WithContext(ctx).Where("mcp_server_id IN ?", ids).Find(&servers).Error
	return servers, err
}

// UpdateTools 缓存探测得到的工具名
func (d *MCPServerDAO) UpdateTools(ctx context.Context, id string, tools []string) error {
	err := GetDB().WithContext(ctx).Model(&gormModel.MCPServer{}).
		Where("mcp_server_id = ?", id).
		Update("tools", gormModel.StringList(tools)).Error
	if err != nil {
		g.Log().Errorf(ctx, "Failed to update MCP server tools: %v", err)
	}
	return err
}

// MCPUserConfigDAO 用户级 MCP 配置数据访问对象
type MCPUserConfigDAO struct{}

var MCPUserConfig = &MCPUserConfigDAO{}

// LoadUserConfig 不存在时返回 nil，每次调用都查库
func (d *MCPUserConfigDAO) LoadUserConfig(ctx context.Context, userID, mcpServerID string) (map[string]any, error) {
	var conf gormModel.MCPUserConfig
	err := GetDB().WithContext(ctx).
		Where("user_id = ? AND mcp_server_id = ?", userID, mcpServerID).
		First(&conf).Error
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return conf.Config, nil
}
