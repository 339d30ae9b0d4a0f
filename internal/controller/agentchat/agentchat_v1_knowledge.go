package agentchat

import (
	"context"

	v1 "github.com/Malowking/agentchat/api/agentchat/v1"
	"github.com/gogf/gf/v2/frame/g"
)

func (c *ControllerV1) KnowledgeCreate(ctx context.Context, req *v1.KnowledgeCreateReq) (res *v1.KnowledgeCreateRes, err error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	g.Log().Infof(ctx, "KnowledgeCreate request received - Id: %s, Name: %s", req.Id, req.Name)
	kb, err := c.knowledge.CreateKnowledge(ctx, uid, req.Id, req.Name, req.Description)
	if err != nil {
		return nil, err
	}
	return &v1.KnowledgeCreateRes{Knowledge: kb}, nil
}

func (c *ControllerV1) KnowledgeDelete(ctx context.Context, req *v1.KnowledgeDeleteReq) (res *v1.KnowledgeDeleteRes, err error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	return &v1.KnowledgeDeleteRes{}, c.knowledge.DeleteKnowledge(ctx, uid, req.Id)
}

func (c *ControllerV1) KnowledgeFileAdd(ctx context.Context, req *v1.KnowledgeFileAddReq) (res *v1.KnowledgeFileAddRes, err error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	g.Log().Infof(ctx, "KnowledgeFileAdd request received - Knowledge: %s, File: %s, URL: %s", req.KnowledgeId, req.FileName, req.OssUrl)
	file, err := c.knowledge.AddFile(ctx, uid, req.KnowledgeId, req.FileName, req.OssUrl, req.FileSize)
	if err != nil {
		return nil, err
	}
	return &v1.KnowledgeFileAddRes{File: file}, nil
}

func (c *ControllerV1) KnowledgeFileDelete(ctx context.Context, req *v1.KnowledgeFileDeleteReq) (res *v1.KnowledgeFileDeleteRes, err error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	return &v1.KnowledgeFileDeleteRes{}, c.knowledge.DeleteFile(ctx, uid, req.Id)
}

func (c *ControllerV1) KnowledgeFileReindex(ctx context.Context, req *v1.KnowledgeFileReindexReq) (res *v1.KnowledgeFileReindexRes, err error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	return &v1.KnowledgeFileReindexRes{}, c.knowledge.Reingest(ctx, uid, req.Id)
}

func (c *ControllerV1) KnowledgeFileList(ctx context.Context, req *v1.KnowledgeFileListReq) (res *v1.KnowledgeFileListRes, err error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	files, err := c.knowledge.ListFiles(ctx, uid, req.Id)
	if err != nil {
		return nil, err
	}
	return &v1.KnowledgeFileListRes{Files: files}, nil
}
