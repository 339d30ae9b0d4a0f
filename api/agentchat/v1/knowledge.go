package v1

import (
	gormModel "github.com/Malowking/agentchat/internal/model/gorm"
	"github.com/gogf/gf/v2/frame/g"
)

type KnowledgeCreateReq struct {
	g.Meta      `path:"/v1/knowledge" method:"post" tags:"knowledge" summary:"Create knowledge base"`
	Id          string `json:"id" v:"required|length:1,24" dc:"knowledge id, used as collection name"`
	Name        string `json:"name" v:"required|length:1,100" dc:"knowledge name"`
	Description string `json:"description" dc:"knowledge description"`
}

type KnowledgeCreateRes struct {
	Knowledge *gormModel.KnowledgeBase `json:"knowledge"`
}

type KnowledgeDeleteReq struct {
	g.Meta `path:"/v1/knowledge/{id}" method:"delete" tags:"knowledge" summary:"Delete knowledge base with all its chunks"`
	Id     string `v:"required" dc:"knowledge id"`
}

type KnowledgeDeleteRes struct{}

type KnowledgeFileAddReq struct {
	g.Meta      `path:"/v1/knowledge/file" method:"post" tags:"knowledge" summary:"Add a file and ingest it in background"`
	KnowledgeId string `json:"knowledge_id" v:"required" dc:"knowledge id"`
	FileName    string `json:"file_name" dc:"file name, defaults to the base of oss_url"`
	OssUrl      string `json:"oss_url" v:"required" dc:"local path, file://, s3://, minio:// or http(s) url"`
	FileSize    int64  `json:"file_size" dc:"file size in bytes"`
}

type KnowledgeFileAddRes struct {
	File *gormModel.KnowledgeFile `json:"file"`
}

type KnowledgeFileDeleteReq struct {
	g.Meta `path:"/v1/knowledge/file/{id}" method:"delete" tags:"knowledge" summary:"Delete a file and its chunks"`
	Id     string `v:"required" dc:"file id"`
}

type KnowledgeFileDeleteRes struct{}

type KnowledgeFileReindexReq struct {
	g.Meta `path:"/v1/knowledge/file/{id}/reindex" method:"post" tags:"knowledge" summary:"Re-ingest a file"`
	Id     string `v:"required" dc:"file id"`
}

type KnowledgeFileReindexRes struct{}

type KnowledgeFileListReq struct {
	g.Meta `path:"/v1/knowledge/{id}/files" method:"get" tags:"knowledge" summary:"List files of a knowledge base"`
	Id     string `v:"required" dc:"knowledge id"`
}

type KnowledgeFileListRes struct {
	Files []*gormModel.KnowledgeFile `json:"files"`
}
