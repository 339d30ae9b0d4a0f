package dao

import (
	"context"
	"time"

	"github.com/Malowking/agentchat/core/usage"
	gormModel "github.com/Malowking/agentchat/internal/model/gorm"
)

// UsageDAO 用量数据访问对象
type UsageDAO struct{}

var Usage = &UsageDAO{}

// SaveUsage 实现 usage.Store
func (d *UsageDAO) SaveUsage(ctx context.Context, records []*usage.Record) error {
	rows := make([]*gormModel.UsageRecord, 0, len(records))
	for _, r := range records {
		rows = append(rows, &gormModel.UsageRecord{
			UserID:       r.UserID,
			AgentName:    r.AgentName,
			ModelName:    r.ModelName,
			InputTokens:  r.InputTokens,
			OutputTokens: r.OutputTokens,
			CreateTime:   r.CreateTime,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return GetDB().WithContext(ctx).Create(rows).Error
}

// UsageStat 聚合结果
type UsageStat struct {
	ModelName    string `json:"model_name"`
	AgentName    string `json:"agent_name"`
	Calls        int64  `json:"calls"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
}

// Aggregate 按模型和智能体聚合 [from, to) 内的用量
func (d *UsageDAO) Aggregate(ctx context.Context, userID string, from, to time.Time) ([]*UsageStat, error) {
	var stats []*UsageStat
	err := GetDB().WithContext(ctx).Model(&gormModel.UsageRecord{}).
		Select("model_name, agent_name, COUNT(*) AS calls, SUM(input_tokens) AS input_tokens, SUM(output_tokens) AS output_tokens").
		Where("user_id = ? AND create_time >= ? AND create_time < ?", userID, from, to).
		Group("model_name, agent_name").
		Order("model_name, agent_name").
		Scan(&stats).Error
	return stats, err
}
