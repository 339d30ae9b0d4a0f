package chunkstore

import (
	"context"
	stdErrors "errors"
	"sync"
	"testing"

	"github.com/Malowking/agentchat/core/errors"
	"github.com/Malowking/agentchat/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memVectors 内存向量库
type memVectors struct {
	mu        sync.Mutex
	rows      map[string]map[string]*schema.Chunk
	summaries map[string][]float32
	failNext  bool
}

func newMemVectors() *memVectors {
	return &memVectors{rows: map[string]map[string]*schema.Chunk{}, summaries: map[string][]float32{}}
}

func (m *memVectors) EnsureCollection(_ context.Context, coll string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[coll] == nil {
		m.rows[coll] = map[string]*schema.Chunk{}
	}
	return nil
}

func (m *memVectors) DropCollection(_ context.Context, coll string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, coll)
	return nil
}

func (m *memVectors) Insert(_ context.Context, coll string, chunks []*schema.Chunk, content, summary [][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return stdErrors.New("milvus unavailable")
	}
	for i, c := range chunks {
		m.rows[coll][c.ChunkID] = c
		if len(summary) > 0 {
			m.summaries[c.ChunkID] = summary[i]
		}
	}
	return nil
}

func (m *memVectors) Search(_ context.Context, coll string, _ []float32, _ string, topK int) ([]*schema.RetrievalResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*schema.RetrievalResult
	for id, c := range m.rows[coll] {
		out = append(out, &schema.RetrievalResult{ChunkID: id, Content: c.Content, Score: 0.9})
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

func (m *memVectors) DeleteByFileID(_ context.Context, coll, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.rows[coll] {
		if c.FileID == fileID {
			delete(m.rows[coll], id)
		}
	}
	return nil
}

func (m *memVectors) DeleteByChunkIDs(_ context.Context, coll string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.rows[coll], id)
	}
	return nil
}

func (m *memVectors) CountByFileID(_ context.Context, coll, fileID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.rows[coll] {
		if c.FileID == fileID {
			n++
		}
	}
	return n, nil
}

func (m *memVectors) Close(context.Context) error { return nil }

// memFullText 内存全文索引，partial 模拟 bulk 部分成功
type memFullText struct {
	mu      sync.Mutex
	rows    map[string]map[string]*schema.Chunk
	partial bool
}

func newMemFullText() *memFullText {
	return &memFullText{rows: map[string]map[string]*schema.Chunk{}}
}

func (f *memFullText) EnsureIndex(_ context.Context, index string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows[index] == nil {
		f.rows[index] = map[string]*schema.Chunk{}
	}
	return nil
}

func (f *memFullText) DropIndex(_ context.Context, index string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, index)
	return nil
}

func (f *memFullText) Insert(_ context.Context, index string, chunks []*schema.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range chunks {
		if f.partial && i == len(chunks)-1 {
			f.partial = false
			return stdErrors.New("bulk rejected last item")
		}
		f.rows[index][c.ChunkID] = c
	}
	return nil
}

func (f *memFullText) Search(_ context.Context, index, query, _ string, _ int) ([]*schema.RetrievalResult, error) {
	return []*schema.RetrievalResult{{ChunkID: "ft", Content: query, Score: 2}}, nil
}

func (f *memFullText) DeleteByFileID(_ context.Context, index, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, c := range f.rows[index] {
		if c.FileID == fileID {
			delete(f.rows[index], id)
		}
	}
	return nil
}

func (f *memFullText) DeleteByChunkIDs(_ context.Context, index string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.rows[index], id)
	}
	return nil
}

func (f *memFullText) CountByFileID(_ context.Context, index, fileID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.rows[index] {
		if c.FileID == fileID {
			n++
		}
	}
	return n, nil
}

// countingEmbedder 记录每次调用的输入
type countingEmbedder struct {
	mu    sync.Mutex
	calls [][]string
	fail  bool
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *countingEmbedder) EmbedStrings(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail {
		return nil, stdErrors.New("embedding endpoint down")
	}
	e.calls = append(e.calls, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func testChunks(fileID string, n int) []*schema.Chunk {
	out := make([]*schema.Chunk, n)
	for i := range out {
		out[i] = &schema.Chunk{
			ChunkID:     fileID + "_" + string(rune('a'+i)),
			Content:     "content " + string(rune('a'+i)),
			FileID:      fileID,
			KnowledgeID: "kb",
		}
	}
	return out
}

func newTestStore(t *testing.T, withFullText bool) (*DualStore, *memVectors, *memFullText, *countingEmbedder) {
	vec := newMemVectors()
	emb := &countingEmbedder{}
	var ft *memFullText
	var store *DualStore
	if withFullText {
		ft = newMemFullText()
		store = New(vec, ft, emb)
	} else {
		store = New(vec, nil, emb)
	}
	require.NoError(t, store.Ensure(context.Background(), "kb"))
	return store, vec, ft, emb
}

func TestInsertBothBackends(t *testing.T) {
	ctx := context.Background()
	store, _, _, _ := newTestStore(t, true)

	require.NoError(t, store.Insert(ctx, "kb", testChunks("f1", 3)))
	vec, ft, err := store.Counts(ctx, "kb", "f1")
	require.NoError(t, err)
	assert.Equal(t, 3, vec)
	assert.Equal(t, 3, ft)
}

func TestInsertCompensatesOnFullTextFailure(t *testing.T) {
	ctx := context.Background()
	store, _, ft, _ := newTestStore(t, true)
	ft.partial = true

	err := store.Insert(ctx, "kb", testChunks("f1", 3))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrIndexingFailed))

	vec, ftCount, err := store.Counts(ctx, "kb", "f1")
	require.NoError(t, err)
	assert.Equal(t, 0, vec, "向量库中已写入的切片应被删除")
	assert.Equal(t, 0, ftCount, "全文索引中部分写入的切片应被删除")
}

func TestInsertVectorFailureSkipsFullText(t *testing.T) {
	ctx := context.Background()
	store, vec, _, _ := newTestStore(t, true)
	vec.failNext = true

	err := store.Insert(ctx, "kb", testChunks("f1", 2))
	require.Error(t, err)
	_, ftCount, err := store.Counts(ctx, "kb", "f1")
	require.NoError(t, err)
	assert.Equal(t, 0, ftCount)
}

func TestSummaryEmbedding(t *testing.T) {
	ctx := context.Background()

	t.Run("无摘要只调用一次", func(t *testing.T) {
		store, vec, _, emb := newTestStore(t, false)
		require.NoError(t, store.Insert(ctx, "kb", testChunks("f1", 2)))
		assert.Len(t, emb.calls, 1)
		assert.Empty(t, vec.summaries)
	})

	t.Run("空摘要复用内容向量", func(t *testing.T) {
		store, vec, _, emb := newTestStore(t, false)
		chunks := testChunks("f1", 2)
		chunks[1].Summary = "一句话摘要"
		require.NoError(t, store.Insert(ctx, "kb", chunks))
		require.Len(t, emb.calls, 2)
		assert.Equal(t, []string{"一句话摘要"}, emb.calls[1])
		assert.Equal(t, []float32{float32(len(chunks[0].Content))}, vec.summaries[chunks[0].ChunkID])
		assert.Equal(t, []float32{float32(len("一句话摘要"))}, vec.summaries[chunks[1].ChunkID])
	})

	t.Run("向量化失败不写入", func(t *testing.T) {
		store, _, _, emb := newTestStore(t, false)
		emb.fail = true
		err := store.Insert(ctx, "kb", testChunks("f1", 2))
		assert.True(t, errors.HasCode(err, errors.ErrEmbeddingFailed))
	})
}

func TestReplaceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _, _, _ := newTestStore(t, true)

	require.NoError(t, store.Replace(ctx, "kb", "f1", testChunks("f1", 4)))
	first, firstFT, err := store.Counts(ctx, "kb", "f1")
	require.NoError(t, err)

	require.NoError(t, store.Replace(ctx, "kb", "f1", testChunks("f1", 4)))
	second, secondFT, err := store.Counts(ctx, "kb", "f1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstFT, secondFT)

	require.NoError(t, store.DeleteByFileID(ctx, "kb", "f1"))
	vec, ft, err := store.Counts(ctx, "kb", "f1")
	require.NoError(t, err)
	assert.Zero(t, vec)
	assert.Zero(t, ft)
}

func TestSearchers(t *testing.T) {
	ctx := context.Background()

	store, _, _, _ := newTestStore(t, false)
	assert.False(t, store.FullTextEnabled())
	require.Len(t, store.Searchers(), 1)

	store, _, _, _ = newTestStore(t, true)
	require.NoError(t, store.Insert(ctx, "kb", testChunks("f1", 1)))
	searchers := store.Searchers()
	require.Len(t, searchers, 2)
	assert.Equal(t, "vector", searchers[0].Name())
	assert.Equal(t, "fulltext", searchers[1].Name())

	res, err := searchers[0].Search(ctx, "kb", "q", schema.FieldContent, 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "q", res[0].Query)
}
