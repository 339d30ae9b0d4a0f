package fulltext

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Malowking/agentchat/core/errors"
	"github.com/Malowking/agentchat/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	query  string
	body   string
}

// fakeES 假的 ES 服务，按路径返回固定响应
type fakeES struct {
	mu       sync.Mutex
	requests []recorded
	handler  func(r *http.Request, body string) (int, string)
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: string(data)})
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	status, resp := f.handler(r, string(data))
	w.WriteHeader(status)
	_, _ = w.Write([]byte(resp))
}

func (f *fakeES) find(method, pathSuffix string) *recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.requests {
		if f.requests[i].method == method && strings.HasSuffix(f.requests[i].path, pathSuffix) {
			return &f.requests[i]
		}
	}
	return nil
}

func newTestStore(t *testing.T, handler func(r *http.Request, body string) (int, string)) (*ESStore, *fakeES) {
	fake := &fakeES{handler: handler}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	store, err := NewESStore(Config{Hosts: []string{srv.URL}})
	require.NoError(t, err)
	return store, fake
}

func TestNewESStoreRequiresHosts(t *testing.T) {
	_, err := NewESStore(Config{})
	assert.True(t, errors.HasCode(err, errors.ErrConfigInvalid))
}

func TestEnsureIndex(t *testing.T) {
	t.Run("不存在时创建", func(t *testing.T) {
		store, fake := newTestStore(t, func(r *http.Request, body string) (int, string) {
			if r.Method == http.MethodHead {
				return http.StatusNotFound, ""
			}
			return http.StatusOK, `{"acknowledged":true}`
		})
		require.NoError(t, store.EnsureIndex(context.Background(), "KB_Demo"))

		created := fake.find(http.MethodPut, "/kb_demo")
		require.NotNil(t, created)
		assert.Contains(t, created.body, `"tokenizer":"ik_smart"`)
		assert.Contains(t, created.body, `"update_time"`)
	})

	t.Run("已存在时跳过", func(t *testing.T) {
		store, fake := newTestStore(t, func(r *http.Request, body string) (int, string) {
			return http.StatusOK, ""
		})
		require.NoError(t, store.EnsureIndex(context.Background(), "kb_demo"))
		assert.Nil(t, fake.find(http.MethodPut, "/kb_demo"))
	})
}

func TestInsertBulk(t *testing.T) {
	chunks := []*schema.Chunk{
		{ChunkID: "a_1", Content: "第一段", FileID: "f1", KnowledgeID: "kb"},
		{ChunkID: "a_2", Content: "第二段", FileID: "f1", KnowledgeID: "kb"},
	}

	t.Run("写入成功", func(t *testing.T) {
		store, fake := newTestStore(t, func(r *http.Request, body string) (int, string) {
			return http.StatusOK, `{"errors":false,"items":[{"index":{"_id":"a_1","status":201}},{"index":{"_id":"a_2","status":201}}]}`
		})
		require.NoError(t, store.Insert(context.Background(), "kb", chunks))

		req := fake.find(http.MethodPost, "/_bulk")
		require.NotNil(t, req)
		assert.Contains(t, req.query, "refresh=wait_for")
		lines := strings.Split(strings.TrimSpace(req.body), "\n")
		require.Len(t, lines, 4)
		assert.Contains(t, lines[0], `"_id":"a_1"`)
		assert.Contains(t, lines[1], `"content":"第一段"`)
	})

	t.Run("部分失败", func(t *testing.T) {
		store, _ := newTestStore(t, func(r *http.Request, body string) (int, string) {
			return http.StatusOK, `{"errors":true,"items":[{"index":{"_id":"a_1","status":201}},{"index":{"_id":"a_2","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad"}}}]}`
		})
		err := store.Insert(context.Background(), "kb", chunks)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrFullTextIndex))
		assert.Contains(t, err.Error(), "a_2")
	})

	t.Run("空切片不发请求", func(t *testing.T) {
		store, fake := newTestStore(t, func(r *http.Request, body string) (int, string) {
			return http.StatusOK, `{}`
		})
		require.NoError(t, store.Insert(context.Background(), "kb", nil))
		assert.Empty(t, fake.requests)
	})
}

func TestSearch(t *testing.T) {
	hits := `{"hits":{"max_score":3.2,"hits":[
		{"_id":"a_1","_score":3.2,"_source":{"chunk_id":"a_1","content":"AgentChat supports MCP."}},
		{"_id":"a_2","_score":1.1,"_source":{"chunk_id":"a_2","content":"other"}}]}}`

	t.Run("content字段", func(t *testing.T) {
		store, fake := newTestStore(t, func(r *http.Request, body string) (int, string) {
			return http.StatusOK, hits
		})
		res, err := store.Search(context.Background(), "kb", "MCP", schema.FieldContent, 5)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "a_1", res[0].ChunkID)
		assert.Equal(t, 3.2, res[0].Score)
		assert.Equal(t, "elasticsearch", res[0].Source)

		req := fake.find(http.MethodPost, "/kb/_search")
		require.NotNil(t, req)
		assert.Contains(t, req.body, `"content":{`)
		assert.Contains(t, req.body, `"size":5`)
		assert.Contains(t, req.body, `"term":{"knowledge_id":"kb"}`)
	})

	t.Run("只检索本知识库", func(t *testing.T) {
		store, fake := newTestStore(t, func(r *http.Request, body string) (int, string) {
			return http.StatusOK, `{"hits":{"hits":[]}}`
		})
		_, err := store.Search(context.Background(), "kb_a", "MCP", schema.FieldContent, 5)
		require.NoError(t, err)
		req := fake.find(http.MethodPost, "/kb_a/_search")
		require.NotNil(t, req)
		assert.Contains(t, req.body, `"filter":[{"term":{"knowledge_id":"kb_a"}}]`)
	})

	t.Run("summary字段", func(t *testing.T) {
		store, fake := newTestStore(t, func(r *http.Request, body string) (int, string) {
			return http.StatusOK, hits
		})
		_, err := store.Search(context.Background(), "kb", "MCP", schema.FieldSummary, 5)
		require.NoError(t, err)
		req := fake.find(http.MethodPost, "/kb/_search")
		require.NotNil(t, req)
		assert.Contains(t, req.body, `"summary":{`)
	})

	t.Run("索引不存在返回空", func(t *testing.T) {
		store, _ := newTestStore(t, func(r *http.Request, body string) (int, string) {
			return http.StatusNotFound, `{"error":{"type":"index_not_found_exception"}}`
		})
		res, err := store.Search(context.Background(), "kb", "MCP", schema.FieldContent, 5)
		require.NoError(t, err)
		assert.Empty(t, res)
	})

	t.Run("服务端错误", func(t *testing.T) {
		store, _ := newTestStore(t, func(r *http.Request, body string) (int, string) {
			return http.StatusInternalServerError, `{"error":"boom"}`
		})
		_, err := store.Search(context.Background(), "kb", "MCP", schema.FieldContent, 5)
		assert.True(t, errors.HasCode(err, errors.ErrFullTextSearch))
	})
}

func TestDeleteAndCount(t *testing.T) {
	store, fake := newTestStore(t, func(r *http.Request, body string) (int, string) {
		if strings.HasSuffix(r.URL.Path, "/_count") {
			return http.StatusOK, `{"count":3}`
		}
		return http.StatusOK, `{"deleted":3}`
	})
	ctx := context.Background()

	require.NoError(t, store.DeleteByFileID(ctx, "kb", "f1"))
	req := fake.find(http.MethodPost, "/kb/_delete_by_query")
	require.NotNil(t, req)
	assert.Contains(t, req.body, `"term":{"file_id":"f1"}`)
	assert.Contains(t, req.body, `"term":{"knowledge_id":"kb"}`)

	require.NoError(t, store.DeleteByChunkIDs(ctx, "kb", []string{"a_1", "a_2"}))
	assert.Contains(t, fake.requests[len(fake.requests)-1].body, `"terms":{"chunk_id":["a_1","a_2"]}`)

	n, err := store.CountByFileID(ctx, "kb", "f1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
