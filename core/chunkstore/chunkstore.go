package chunkstore

import (
	"context"

	"github.com/Malowking/agentchat/core/errors"
	"github.com/Malowking/agentchat/core/fulltext"
	"github.com/Malowking/agentchat/core/vector_store"
	"github.com/Malowking/agentchat/pkg/schema"
	"github.com/gogf/gf/v2/frame/g"
)

// Embedder *common.EmbeddingClient 实现
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedStrings(ctx context.Context, texts []string) ([][]float32, error)
}

// DualStore 向量库 + 可选全文索引，写入时保持两边一致
type DualStore struct {
	vectors  vector_store.Store
	fulltext fulltext.Store // 未启用 ES 时为 nil
	embedder Embedder
}

// New fulltext 传 nil 表示只用向量库
func New(vectors vector_store.Store, ft fulltext.Store, embedder Embedder) *DualStore {
	return &DualStore{vectors: vectors, fulltext: ft, embedder: embedder}
}

// FullTextEnabled 是否启用了全文索引
func (d *DualStore) FullTextEnabled() bool {
	return d.fulltext != nil
}

// Ensure 幂等创建集合与索引
func (d *DualStore) Ensure(ctx context.Context, knowledgeID string) error {
	if err := d.vectors.EnsureCollection(ctx, knowledgeID); err != nil {
		return errors.Wrapf(err, errors.ErrIndexingFailed, "ensure vector collection %s", knowledgeID)
	}
	if d.fulltext != nil {
		if err := d.fulltext.EnsureIndex(ctx, knowledgeID); err != nil {
			return errors.Wrapf(err, errors.ErrIndexingFailed, "ensure fulltext index %s", knowledgeID)
		}
	}
	return nil
}

// Insert 向量化后写入两个后端；任一后端失败都删除已写入的部分
func (d *DualStore) Insert(ctx context.Context, knowledgeID string, chunks []*schema.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	contentVectors, summaryVectors, err := d.embed(ctx, chunks)
	if err != nil {
		return err
	}

	ids := schema.ChunkIDs(chunks)
	if err := d.vectors.Insert(ctx, knowledgeID, chunks, contentVectors, summaryVectors); err != nil {
		d.compensate(ctx, knowledgeID, ids, true, false)
		return errors.Wrapf(err, errors.ErrIndexingFailed, "insert %d chunks into vector store", len(chunks))
	}
	if d.fulltext == nil {
		return nil
	}
	if err := d.fulltext.Insert(ctx, knowledgeID, chunks); err != nil {
		d.compensate(ctx, knowledgeID, ids, true, true)
		return errors.Wrapf(err, errors.ErrIndexingFailed, "insert %d chunks into fulltext index", len(chunks))
	}
	return nil
}

// Replace 重新入库：先删除该文件的旧切片再写入
func (d *DualStore) Replace(ctx context.Context, knowledgeID, fileID string, chunks []*schema.Chunk) error {
	if err := d.DeleteByFileID(ctx, knowledgeID, fileID); err != nil {
		return err
	}
	return d.Insert(ctx, knowledgeID, chunks)
}

// embed 只对非空 summary 额外调用 embedding，空 summary 复用 content 向量
func (d *DualStore) embed(ctx context.Context, chunks []*schema.Chunk) ([][]float32, [][]float32, error) {
	contents := make([]string, len(chunks))
	var (
		summaries []string
		summaryAt []int
	)
	for i, c := range chunks {
		contents[i] = c.Content
		if c.Summary != "" {
			summaries = append(summaries, c.Summary)
			summaryAt = append(summaryAt, i)
		}
	}

	contentVectors, err := d.embedder.EmbedStrings(ctx, contents)
	if err != nil {
		return nil, nil, errors.Wrapf(err, errors.ErrEmbeddingFailed, "embed chunk contents")
	}
	if len(summaries) == 0 {
		return contentVectors, nil, nil
	}

	vecs, err := d.embedder.EmbedStrings(ctx, summaries)
	if err != nil {
		return nil, nil, errors.Wrapf(err, errors.ErrEmbeddingFailed, "embed chunk summaries")
	}
	summaryVectors := make([][]float32, len(chunks))
	copy(summaryVectors, contentVectors)
	for j, i := range summaryAt {
		summaryVectors[i] = vecs[j]
	}
	return contentVectors, summaryVectors, nil
}

// compensate 尽力删除，失败只记日志
func (d *DualStore) compensate(ctx context.Context, knowledgeID string, ids []string, vectors, ft bool) {
	ctx = context.WithoutCancel(ctx)
	if vectors {
		if err := d.vectors.DeleteByChunkIDs(ctx, knowledgeID, ids); err != nil {
			g.Log().Errorf(ctx, "compensating delete in vector store failed, knowledge=%s chunks=%d: %v", knowledgeID, len(ids), err)
		}
	}
	if ft && d.fulltext != nil {
		if err := d.fulltext.DeleteByChunkIDs(ctx, knowledgeID, ids); err != nil {
			g.Log().Errorf(ctx, "compensating delete in fulltext index failed, knowledge=%s chunks=%d: %v", knowledgeID, len(ids), err)
		}
	}
}

// DeleteByFileID 两个后端都删除
func (d *DualStore) DeleteByFileID(ctx context.Context, knowledgeID, fileID string) error {
	if err := d.vectors.DeleteByFileID(ctx, knowledgeID, fileID); err != nil {
		return errors.Wrapf(err, errors.ErrIndexingFailed, "delete file %s from vector store", fileID)
	}
	if d.fulltext != nil {
		if err := d.fulltext.DeleteByFileID(ctx, knowledgeID, fileID); err != nil {
			return errors.Wrapf(err, errors.ErrIndexingFailed, "delete file %s from fulltext index", fileID)
		}
	}
	return nil
}

// Drop 删除知识库的集合与索引
func (d *DualStore) Drop(ctx context.Context, knowledgeID string) error {
	if err := d.vectors.DropCollection(ctx, knowledgeID); err != nil {
		return errors.Wrapf(err, errors.ErrKBDeleteFailed, "drop vector collection %s", knowledgeID)
	}
	if d.fulltext != nil {
		if err := d.fulltext.DropIndex(ctx, knowledgeID); err != nil {
			return errors.Wrapf(err, errors.ErrKBDeleteFailed, "drop fulltext index %s", knowledgeID)
		}
	}
	return nil
}

// Counts 文件在各后端的切片数，未启用全文时 ft 为 -1
func (d *DualStore) Counts(ctx context.Context, knowledgeID, fileID string) (vec, ft int, err error) {
	vec, err = d.vectors.CountByFileID(ctx, knowledgeID, fileID)
	if err != nil {
		return 0, 0, err
	}
	if d.fulltext == nil {
		return vec, -1, nil
	}
	ft, err = d.fulltext.CountByFileID(ctx, knowledgeID, fileID)
	return vec, ft, err
}

// Searchers 已启用的检索后端
func (d *DualStore) Searchers() []Searcher {
	out := []Searcher{&vectorSearcher{store: d.vectors, embedder: d.embedder}}
	if d.fulltext != nil {
		out = append(out, &fulltextSearcher{store: d.fulltext})
	}
	return out
}
