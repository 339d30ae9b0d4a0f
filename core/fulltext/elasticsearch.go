package fulltext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Malowking/agentchat/core/common"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/Malowking/agentchat/pkg/schema"
	"github.com/bytedance/sonic"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/gogf/gf/v2/frame/g"
)

// Store 全文索引，每个知识库一个索引
type Store interface {
	EnsureIndex(ctx context.Context, index string) error
	DropIndex(ctx context.Context, index string) error
	Insert(ctx context.Context, index string, chunks []*schema.Chunk) error
	Search(ctx context.Context, index, query, field string, topK int) ([]*schema.RetrievalResult, error)
	DeleteByFileID(ctx context.Context, index, fileID string) error
	DeleteByChunkIDs(ctx context.Context, index string, chunkIDs []string) error
	CountByFileID(ctx context.Context, index, fileID string) (int, error)
}

// Config ES 连接配置
type Config struct {
	Hosts     []string
	Username  string
	Password  string
	Analyzer  string
	Transport http.RoundTripper
}

// ESStore Elasticsearch 实现
type ESStore struct {
	client   *elasticsearch.Client
	analyzer string
}

// NewESStore 创建 ES 客户端
func NewESStore(conf Config) (*ESStore, error) {
	if len(conf.Hosts) == 0 {
		return nil, errors.New(errors.ErrConfigInvalid, "rag.elasticsearch.hosts is empty")
	}
	if conf.Analyzer == "" {
		conf.Analyzer = "ik_smart"
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: conf.Hosts,
		Username:  conf.Username,
		Password:  conf.Password,
		Transport: conf.Transport,
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFullTextInit, "failed to create elasticsearch client")
	}
	return &ESStore{client: client, analyzer: conf.Analyzer}, nil
}

// indexMapping 中文分词作用在 content/summary 上
func (s *ESStore) indexMapping() map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"analysis": map[string]any{
				"analyzer": map[string]any{
					"ik_analyzer": map[string]any{"type": "custom", "tokenizer": s.analyzer},
				},
			},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"chunk_id":     map[string]any{"type": "keyword"},
				"content":      map[string]any{"type": "text", "analyzer": "ik_analyzer"},
				"summary":      map[string]any{"type": "text", "analyzer": "ik_analyzer"},
				"file_id":      map[string]any{"type": "keyword"},
				"knowledge_id": map[string]any{"type": "keyword"},
				"file_name":    map[string]any{"type": "keyword"},
				"update_time":  map[string]any{"type": "date", "format": "strict_date_optional_time||epoch_millis"},
			},
		},
	}
}

// EnsureIndex 索引不存在时创建
func (s *ESStore) EnsureIndex(ctx context.Context, index string) error {
	index = common.IndexName(index)
	res, err := s.client.Indices.Exists([]string{index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return errors.Wrapf(err, errors.ErrFullTextInit, "check index %s", index)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := sonic.Marshal(s.indexMapping())
	if err != nil {
		return errors.Wrapf(err, errors.ErrFullTextInit, "marshal mapping")
	}
	res, err = s.client.Indices.Create(index,
		s.client.Indices.Create.WithBody(bytes.NewReader(body)),
		s.client.Indices.Create.WithContext(ctx))
	if err := checkResponse(res, err); err != nil {
		// 并发创建时已存在也算成功
		if strings.Contains(err.Error(), "resource_already_exists_exception") {
			return nil
		}
		return errors.Wrapf(err, errors.ErrFullTextInit, "create index %s", index)
	}
	g.Log().Infof(ctx, "index name: %s 创建成功", index)
	return nil
}

// DropIndex 删除索引，不存在时忽略
func (s *ESStore) DropIndex(ctx context.Context, index string) error {
	index = common.IndexName(index)
	res, err := s.client.Indices.Delete([]string{index},
		s.client.Indices.Delete.WithIgnoreUnavailable(true),
		s.client.Indices.Delete.WithContext(ctx))
	if err := checkResponse(res, err); err != nil {
		return errors.Wrapf(err, errors.ErrFullTextDelete, "drop index %s", index)
	}
	return nil
}

// Insert bulk 写入，_id 使用 chunk_id 保证重复写入幂等
func (s *ESStore) Insert(ctx context.Context, index string, chunks []*schema.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	index = common.IndexName(index)

	var buf bytes.Buffer
	for _, c := range chunks {
		meta, _ := sonic.Marshal(map[string]any{"index": map[string]any{"_index": index, "_id": c.ChunkID}})
		doc, err := sonic.Marshal(c)
		if err != nil {
			return errors.Wrapf(err, errors.ErrFullTextIndex, "marshal chunk %s", c.ChunkID)
		}
		buf.Write(meta)
		buf.WriteByte('\n')
		buf.Write(doc)
		buf.WriteByte('\n')
	}

	res, err := s.client.Bulk(&buf,
		s.client.Bulk.WithIndex(index),
		s.client.Bulk.WithRefresh("wait_for"),
		s.client.Bulk.WithContext(ctx))
	if err != nil {
		return errors.Wrapf(err, errors.ErrFullTextIndex, "bulk index %s", index)
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.Newf(errors.ErrFullTextIndex, "bulk index %s: %s", index, res.String())
	}

	var out bulkResponse
	if err := decodeBody(res.Body, &out); err != nil {
		return errors.Wrapf(err, errors.ErrFullTextIndex, "decode bulk response")
	}
	if out.Errors {
		for _, item := range out.Items {
			if r := item["index"]; r.Error != nil {
				return errors.Newf(errors.ErrFullTextIndex, "index chunk %s failed: %s", r.ID, r.Error.Reason)
			}
		}
		return errors.Newf(errors.ErrFullTextIndex, "bulk index %s reported errors", index)
	}
	g.Log().Infof(ctx, "Indexed %d chunks into '%s'", len(chunks), index)
	return nil
}

// Search match 查询；field 为 summary 时匹配 summary 字段
func (s *ESStore) Search(ctx context.Context, index, query, field string, topK int) ([]*schema.RetrievalResult, error) {
	knowledgeID := index
	index = common.IndexName(index)
	if field != schema.FieldSummary {
		field = schema.FieldContent
	}
	if topK <= 0 {
		topK = 10
	}
	body, err := sonic.Marshal(s.searchBody(knowledgeID, query, field, topK))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFullTextSearch, "marshal query")
	}

	res, err := s.client.Search(
		s.client.Search.WithIndex(index),
		s.client.Search.WithBody(bytes.NewReader(body)),
		s.client.Search.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFullTextSearch, "search %s", index)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return []*schema.RetrievalResult{}, nil
	}
	if res.IsError() {
		return nil, errors.Newf(errors.ErrFullTextSearch, "search %s: %s", index, res.String())
	}

	var out searchResponse
	if err := decodeBody(res.Body, &out); err != nil {
		return nil, errors.Wrapf(err, errors.ErrFullTextSearch, "decode search response")
	}
	results := make([]*schema.RetrievalResult, 0, len(out.Hits.Hits))
	for i, hit := range out.Hits.Hits {
		results = append(results, &schema.RetrievalResult{
			ChunkID: hit.Source.ChunkID,
			Content: hit.Source.Content,
			Score:   hit.Score,
			Index:   i,
			Source:  "elasticsearch",
		})
	}
	return results, nil
}

// searchBody 只命中本知识库的切片
func (s *ESStore) searchBody(knowledgeID, query, field string, topK int) map[string]any {
	return map[string]any{
		"size":    topK,
		"timeout": "3s",
		"query": map[string]any{
			"bool": map[string]any{
				"must": []any{
					map[string]any{"match": map[string]any{
						field: map[string]any{
							"query":                query,
							"analyzer":             s.analyzer,
							"operator":             "and",
							"minimum_should_match": "75%",
							"fuzziness":            "AUTO",
							"boost":                2.0,
						},
					}},
				},
				"filter": []any{
					map[string]any{"term": map[string]any{"knowledge_id": knowledgeID}},
				},
			},
		},
	}
}

// DeleteByFileID delete_by_query 删除文件的全部切片
func (s *ESStore) DeleteByFileID(ctx context.Context, index, fileID string) error {
	return s.deleteByQuery(ctx, index, map[string]any{"bool": map[string]any{"filter": []any{
		map[string]any{"term": map[string]any{"file_id": fileID}},
		map[string]any{"term": map[string]any{"knowledge_id": index}},
	}}})
}

// DeleteByChunkIDs 补偿删除
func (s *ESStore) DeleteByChunkIDs(ctx context.Context, index string, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	return s.deleteByQuery(ctx, index, map[string]any{"terms": map[string]any{"chunk_id": chunkIDs}})
}

func (s *ESStore) deleteByQuery(ctx context.Context, index string, query map[string]any) error {
	index = common.IndexName(index)
	body, err := sonic.Marshal(map[string]any{"query": query})
	if err != nil {
		return errors.Wrapf(err, errors.ErrFullTextDelete, "marshal delete query")
	}
	res, err := s.client.DeleteByQuery([]string{index}, bytes.NewReader(body),
		s.client.DeleteByQuery.WithRefresh(true),
		s.client.DeleteByQuery.WithIgnoreUnavailable(true),
		s.client.DeleteByQuery.WithContext(ctx))
	if err := checkResponse(res, err); err != nil {
		return errors.Wrapf(err, errors.ErrFullTextDelete, "delete_by_query on %s", index)
	}
	g.Log().Infof(ctx, "Success delete documents in index %s", index)
	return nil
}

// CountByFileID 文件在索引中的切片数
func (s *ESStore) CountByFileID(ctx context.Context, index, fileID string) (int, error) {
	index = common.IndexName(index)
	body, _ := sonic.Marshal(map[string]any{"query": map[string]any{"term": map[string]any{"file_id": fileID}}})
	res, err := s.client.Count(
		s.client.Count.WithIndex(index),
		s.client.Count.WithBody(bytes.NewReader(body)),
		s.client.Count.WithContext(ctx))
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrFullTextSearch, "count %s", index)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if res.IsError() {
		return 0, errors.Newf(errors.ErrFullTextSearch, "count %s: %s", index, res.String())
	}
	var out struct {
		Count int `json:"count"`
	}
	if err := decodeBody(res.Body, &out); err != nil {
		return 0, errors.Wrapf(err, errors.ErrFullTextSearch, "decode count response")
	}
	return out.Count, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string       `json:"_id"`
			Score  float64      `json:"_score"`
			Source schema.Chunk `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type bulkItem struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}

type bulkResponse struct {
	Errors bool                  `json:"errors"`
	Items  []map[string]bulkItem `json:"items"`
}

func decodeBody(r io.Reader, v any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return sonic.Unmarshal(data, v)
}

// checkResponse 关闭响应体，把 HTTP 错误转成 error
func checkResponse(res *esapi.Response, err error) error {
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%s", res.String())
	}
	return nil
}
