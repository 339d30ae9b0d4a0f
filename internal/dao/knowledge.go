package dao

import (
	"context"

	gormModel "github.com/Malowking/agentchat/internal/model/gorm"
	"github.com/gogf/gf/v2/frame/g"
	"gorm.io/gorm"
)

// KnowledgeBaseDAO 知识库数据访问对象
type KnowledgeBaseDAO struct{}

var KnowledgeBase = &KnowledgeBaseDAO{}

// Create 创建知识库
func (d *KnowledgeBaseDAO) Create(ctx context.Context, kb *gormModel.KnowledgeBase) error {
	if err := GetDB().WithContext(ctx).Create(kb).Error; err != nil {
		g.Log().Errorf(ctx, "Failed to create knowledge base: %v", err)
		return err
	}
	return nil
}

// GetByID 根据ID查询知识库
func (d *KnowledgeBaseDAO) GetByID(ctx context.Context, id string) (*gormModel.KnowledgeBase, error) {
	var kb gormModel.KnowledgeBase
	if err := GetDB().WithContext(ctx).Where("id = ?", id).First(&kb).Error; err != nil {
		return nil, err
	}
	return &kb, nil
}

// GetByIDs 批量查询
func (d *KnowledgeBaseDAO) GetByIDs(ctx context.Context, ids []string) ([]*gormModel.KnowledgeBase, error) {
	var kbs []*gormModel.KnowledgeBase
	if len(ids) == 0 {
		return kbs, nil
	}
	err := GetDB().WithContext(ctx).Where("id IN ?", ids).Find(&kbs).Error
	return kbs, err
}

// Delete 删除知识库及其全部文件记录
func (d *KnowledgeBaseDAO) Delete(ctx context.Context, id string) error {
	return GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&gormModel.KnowledgeFile{}, "knowledge_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&gormModel.KnowledgeBase{}, "id = ?", id).Error
	})
}

// KnowledgeFileDAO 知识文件数据访问对象
type KnowledgeFileDAO struct{}

var KnowledgeFile = &KnowledgeFileDAO{}

// Create 创建文件记录
func (d *KnowledgeFileDAO) Create(ctx context.Context, f *gormModel.KnowledgeFile) error {
	if err := GetDB().WithContext(ctx).Create(f).Error; err != nil {
		g.Log().Errorf(ctx, "Failed to create knowledge file: %v", err)
		return err
	}
	return nil
}

// GetByID 根据ID查询文件
func (d *KnowledgeFileDAO) GetByID(ctx context.Context, id string) (*gormModel.KnowledgeFile, error) {
	var f gormModel.KnowledgeFile
	if err := GetDB().WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// UpdateStatus 更新状态、切片数和错误信息
func (d *KnowledgeFileDAO) UpdateStatus(ctx context.Context, id, status string, chunkCount int, errMsg string) error {
	return GetDB().WithContext(ctx).Model(&gormModel.KnowledgeFile{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "chunk_count": chunkCount, "error_msg": errMsg}).Error
}

// ListByKnowledge 知识库下的全部文件
func (d *KnowledgeFileDAO) ListByKnowledge(ctx context.Context, knowledgeID string) ([]*gormModel.KnowledgeFile, error) {
	var files []*gormModel.KnowledgeFile
	err := GetDB().WithContext(ctx).Where("knowledge_id = ?", knowledgeID).Order("create_time ASC").Find(&files).Error
	return files, err
}

// Delete 删除文件记录
func (d *KnowledgeFileDAO) Delete(ctx context.Context, id string) error {
	return GetDB().WithContext(ctx).Delete(&gormModel.KnowledgeFile{}, "id = ?", id).Error
}
