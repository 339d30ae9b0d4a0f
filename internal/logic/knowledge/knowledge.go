// Package knowledge 知识库与知识文件的创建、入库和删除
package knowledge

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/Malowking/agentchat/core/common"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/Malowking/agentchat/core/metrics"
	"github.com/Malowking/agentchat/core/parser"
	gormModel "github.com/Malowking/agentchat/internal/model/gorm"
	pkgschema "github.com/Malowking/agentchat/pkg/schema"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/google/uuid"
)

// KnowledgeBaseStore *dao.KnowledgeBaseDAO 实现
type KnowledgeBaseStore interface {
	Create(ctx context.Context, kb *gormModel.KnowledgeBase) error
	GetByID(ctx context.Context, id string) (*gormModel.KnowledgeBase, error)
	Delete(ctx context.Context, id string) error
}

// FileStore *dao.KnowledgeFileDAO 实现
type FileStore interface {
	Create(ctx context.Context, f *gormModel.KnowledgeFile) error
	GetByID(ctx context.Context, id string) (*gormModel.KnowledgeFile, error)
	UpdateStatus(ctx context.Context, id, status string, chunkCount int, errMsg string) error
	ListByKnowledge(ctx context.Context, knowledgeID string) ([]*gormModel.KnowledgeFile, error)
	Delete(ctx context.Context, id string) error
}

// Stager *file_store.Stager 实现
type Stager interface {
	Stage(ctx context.Context, knowledgeID, fileID, fileName, ossURL string) (string, bool, error)
	Cleanup(ctx context.Context, path string, temporary bool)
}

// DocumentParser *parser.Parser 实现
type DocumentParser interface {
	Parse(ctx context.Context, fileID, localPath, knowledgeID string) ([]*pkgschema.Chunk, error)
	ParseURL(ctx context.Context, fileID, pageURL, fileName, knowledgeID string) ([]*pkgschema.Chunk, error)
}

// Index *chunkstore.DualStore 实现
type Index interface {
	Ensure(ctx context.Context, knowledgeID string) error
	Replace(ctx context.Context, knowledgeID, fileID string, chunks []*pkgschema.Chunk) error
	DeleteByFileID(ctx context.Context, knowledgeID, fileID string) error
	Drop(ctx context.Context, knowledgeID string) error
}

// Service 知识库服务
type Service struct {
	kbs     KnowledgeBaseStore
	files   FileStore
	stager  Stager
	parser  DocumentParser
	index   Index
	timeout time.Duration
}

// NewService 创建知识库服务
func NewService(kbs KnowledgeBaseStore, files FileStore, stager Stager, p DocumentParser, index Index) *Service {
	return &Service{kbs: kbs, files: files, stager: stager, parser: p, index: index, timeout: 30 * time.Minute}
}

// CreateKnowledge 创建知识库，同时建好向量集合和全文索引
func (s *Service) CreateKnowledge(ctx context.Context, userID, id, name, description string) (*gormModel.KnowledgeBase, error) {
	if !common.ValidKnowledgeID(id) {
		return nil, errors.Newf(errors.ErrKBInvalidID, "invalid knowledge id %q", id)
	}
	if _, err := s.kbs.GetByID(ctx, id); err == nil {
		return nil, errors.Newf(errors.ErrKBAlreadyExists, "knowledge %s already exists", id)
	}
	if err := s.index.Ensure(ctx, id); err != nil {
		return nil, err
	}
	kb := &gormModel.KnowledgeBase{ID: id, Name: name, OwnerUserID: userID, Description: description}
	if err := s.kbs.Create(ctx, kb); err != nil {
		if dropErr := s.index.Drop(ctx, id); dropErr != nil {
			g.Log().Warningf(ctx, "drop collection %s after failed create: %v", id, dropErr)
		}
		return nil, errors.Wrapf(err, errors.ErrKBCreateFailed, "create knowledge %s", id)
	}
	g.Log().Infof(ctx, "knowledge %s created by %s", id, userID)
	return kb, nil
}

// DeleteKnowledge 删除知识库：向量集合、全文索引和全部文件记录
func (s *Service) DeleteKnowledge(ctx context.Context, userID, id string) error {
	if _, err := s.ownedKnowledge(ctx, userID, id); err != nil {
		return err
	}
	if err := s.index.Drop(ctx, id); err != nil {
		return errors.Wrapf(err, errors.ErrKBDeleteFailed, "drop knowledge %s", id)
	}
	if err := s.kbs.Delete(ctx, id); err != nil {
		return errors.Wrapf(err, errors.ErrDatabaseDelete, "delete knowledge %s", id)
	}
	g.Log().Infof(ctx, "knowledge %s deleted", id)
	return nil
}

// AddFile 登记文件并在后台入库，立即返回 processing 状态的记录
func (s *Service) AddFile(ctx context.Context, userID, knowledgeID, fileName, ossURL string, fileSize int64) (*gormModel.KnowledgeFile, error) {
	if _, err := s.ownedKnowledge(ctx, userID, knowledgeID); err != nil {
		return nil, err
	}
	if fileName == "" {
		fileName = filepath.Base(ossURL)
	}
	if !isWebPage(ossURL, fileName) && !parser.Supported(fileName) {
		return nil, errors.Newf(errors.ErrUnsupportedFormat, "unsupported file type: %s", fileName)
	}
	file := &gormModel.KnowledgeFile{
		ID:          uuid.NewString(),
		KnowledgeID: knowledgeID,
		FileName:    fileName,
		OwnerUserID: userID,
		OSSURL:      ossURL,
		FileSize:    fileSize,
		Status:      gormModel.FileStatusProcessing,
	}
	if err := s.files.Create(ctx, file); err != nil {
		return nil, errors.Wrapf(err, errors.ErrDatabaseInsert, "create knowledge file")
	}

	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	common.SafeGo(bg, "ingest-"+file.ID, func() {
		defer cancel()
		_ = s.Ingest(bg, file)
	})
	return file, nil
}

// Ingest 同步入库：暂存 -> 解析 -> 替换该文件的全部切片，并更新状态
func (s *Service) Ingest(ctx context.Context, file *gormModel.KnowledgeFile) error {
	start := time.Now()
	chunks, err := s.parse(ctx, file)
	if err == nil {
		err = s.index.Replace(ctx, file.KnowledgeID, file.ID, chunks)
	}
	if err != nil {
		g.Log().Errorf(ctx, "ingest %s (%s) failed: %v", file.FileName, file.ID, err)
		metrics.IngestFilesTotal.WithLabelValues(gormModel.FileStatusFailed).Inc()
		if uErr := s.files.UpdateStatus(ctx, file.ID, gormModel.FileStatusFailed, 0, err.Error()); uErr != nil {
			g.Log().Errorf(ctx, "update status of %s: %v", file.ID, uErr)
		}
		return err
	}
	metrics.IngestFilesTotal.WithLabelValues(gormModel.FileStatusSuccess).Inc()
	if err := s.files.UpdateStatus(ctx, file.ID, gormModel.FileStatusSuccess, len(chunks), ""); err != nil {
		return errors.Wrapf(err, errors.ErrDatabaseUpdate, "update status of %s", file.ID)
	}
	g.Log().Infof(ctx, "ingested %s into %s: %d chunks in %v", file.FileName, file.KnowledgeID, len(chunks), time.Since(start))
	return nil
}

func (s *Service) parse(ctx context.Context, file *gormModel.KnowledgeFile) ([]*pkgschema.Chunk, error) {
	if isWebPage(file.OSSURL, file.FileName) {
		return s.parser.ParseURL(ctx, file.ID, file.OSSURL, file.FileName, file.KnowledgeID)
	}
	path, temporary, err := s.stager.Stage(ctx, file.KnowledgeID, file.ID, file.FileName, file.OSSURL)
	if err != nil {
		return nil, err
	}
	defer s.stager.Cleanup(ctx, path, temporary)
	return s.parser.Parse(ctx, file.ID, path, file.KnowledgeID)
}

// Reingest 重新入库已有文件
func (s *Service) Reingest(ctx context.Context, userID, fileID string) error {
	file, err := s.ownedFile(ctx, userID, fileID)
	if err != nil {
		return err
	}
	if err := s.files.UpdateStatus(ctx, file.ID, gormModel.FileStatusProcessing, 0, ""); err != nil {
		return errors.Wrapf(err, errors.ErrDatabaseUpdate, "update status of %s", file.ID)
	}
	return s.Ingest(ctx, file)
}

// DeleteFile 删除文件的全部切片和文件记录
func (s *Service) DeleteFile(ctx context.Context, userID, fileID string) error {
	file, err := s.ownedFile(ctx, userID, fileID)
	if err != nil {
		return err
	}
	if err := s.index.DeleteByFileID(ctx, file.KnowledgeID, file.ID); err != nil {
		return err
	}
	if err := s.files.Delete(ctx, file.ID); err != nil {
		return errors.Wrapf(err, errors.ErrDatabaseDelete, "delete knowledge file %s", file.ID)
	}
	return nil
}

// ListFiles 知识库下的文件
func (s *Service) ListFiles(ctx context.Context, userID, knowledgeID string) ([]*gormModel.KnowledgeFile, error) {
	if _, err := s.ownedKnowledge(ctx, userID, knowledgeID); err != nil {
		return nil, err
	}
	return s.files.ListByKnowledge(ctx, knowledgeID)
}

func (s *Service) ownedKnowledge(ctx context.Context, userID, id string) (*gormModel.KnowledgeBase, error) {
	kb, err := s.kbs.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Newf(errors.ErrKBNotFound, "knowledge %s not found", id)
	}
	if kb.OwnerUserID != userID {
		return nil, errors.Newf(errors.ErrPermissionDenied, "user %s has no access to knowledge %s", userID, id)
	}
	return kb, nil
}

func (s *Service) ownedFile(ctx context.Context, userID, id string) (*gormModel.KnowledgeFile, error) {
	file, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Newf(errors.ErrDocumentNotFound, "knowledge file %s not found", id)
	}
	if file.OwnerUserID != userID {
		return nil, errors.Newf(errors.ErrPermissionDenied, "user %s has no access to file %s", userID, id)
	}
	return file, nil
}

// isWebPage 没有可解析后缀的 http 地址按网页抓取
func isWebPage(ossURL, fileName string) bool {
	lower := strings.ToLower(ossURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	return !parser.Supported(fileName)
}
