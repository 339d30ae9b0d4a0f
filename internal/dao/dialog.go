package dao

import (
	"context"

	gormModel "github.com/Malowking/agentchat/internal/model/gorm"
	"gorm.io/gorm"
)

// DialogDAO 对话数据访问对象
type DialogDAO struct{}

var Dialog = &DialogDAO{}

// GetByID 根据ID查询对话
func (d *DialogDAO) GetByID(ctx context.Context, dialogID string) (*gormModel.Dialog, error) {
	var dialog gormModel.Dialog
	if err := GetDB().WithContext(ctx).Where("dialog_id = ?", dialogID).First(&dialog).Error; err != nil {
		return nil, err
	}
	return &dialog, nil
}

// Create 创建对话
func (d *DialogDAO) Create(ctx context.Context, dialog *gormModel.Dialog) error {
	return GetDB().WithContext(ctx).Create(dialog).Error
}

// HistoryDAO 对话历史数据访问对象
type HistoryDAO struct{}

var History = &HistoryDAO{}

// Recent 最近 limit 条，按时间由旧到新
func (d *HistoryDAO) Recent(ctx context.Context, dialogID string, limit int) ([]*gormModel.HistoryEntry, error) {
	var entries []*gormModel.HistoryEntry
	err := GetDB().WithContext(ctx).
		Where("dialog_id = ?", dialogID).
		Order("create_time DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// AppendTurn 在同一事务中写入一轮的 user / assistant 记录并刷新对话更新时间
func (d *HistoryDAO) AppendTurn(ctx context.Context, dialogID string, entries ...*gormModel.HistoryEntry) error {
	return GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entries).Error; err != nil {
			return err
		}
		return tx.Model(&gormModel.Dialog{}).
			Where("dialog_id = ?", dialogID).
			Update("update_time", gorm.Expr("CURRENT_TIMESTAMP")).Error
	})
}

// List 对话的全部历史，按时间由旧到新
func (d *HistoryDAO) List(ctx context.Context, dialogID string) ([]*gormModel.HistoryEntry, error) {
	var entries []*gormModel.HistoryEntry
	err := GetDB().WithContext(ctx).
		Where("dialog_id = ?", dialogID).
		Order("create_time ASC").
		Find(&entries).Error
	return entries, err
}
