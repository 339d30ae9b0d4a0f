package dao

import (
	"context"

	gormModel "github.com/Malowking/agentchat/internal/model/gorm"
)

// AgentDAO 智能体数据访问对象
type AgentDAO struct{}

var Agent = &AgentDAO{}

// GetByID 根据ID查询智能体
func (d *AgentDAO) GetByID(ctx context.Context, agentID string) (*gormModel.Agent, error) {
	var agent gormModel.Agent
	if err := GetDB().WithContext(ctx).Where("agent_id = ?", agentID).First(&agent).Error; err != nil {
		return nil, err
	}
	return &agent, nil
}

// LLMDAO 模型数据访问对象
type LLMDAO struct{}

var LLM = &LLMDAO{}

// ListEnabled 全部启用的模型，用于模型注册表热加载
func (d *LLMDAO) ListEnabled(ctx context.Context) ([]*gormModel.LLM, error) {
	var llms []*gormModel.LLM
	err := GetDB().WithContext(ctx).Where("enabled = ?", true).Find(&llms).Error
	return llms, err
}

// ToolDefDAO 本地工具登记数据访问对象
type ToolDefDAO struct{}

var ToolDef = &ToolDefDAO{}

// GetByIDs 批量查询
func (d *ToolDefDAO) GetByIDs(ctx context.Context, ids []string) ([]*gormModel.ToolDef, error) {
	var tools []*gormModel.ToolDef
	if len(ids) == 0 {
		return tools, nil
	}
	err := GetDB().WithContext(ctx).Where("tool_id IN ?", ids).Find(&tools).Error
	return tools, err
}
