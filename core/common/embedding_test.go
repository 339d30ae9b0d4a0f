package common

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Malowking/agentchat/core/errors"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder 把文本下标编码进向量，便于校验顺序
type fakeEmbedder struct {
	calls    atomic.Int32
	failures atomic.Int32 // 前 n 次调用失败
	inflight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	sizes    []int
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	f.calls.Add(1)
	cur := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	f.mu.Lock()
	f.sizes = append(f.sizes, len(texts))
	f.mu.Unlock()

	if f.failures.Load() > 0 {
		f.failures.Add(-1)
		return nil, stderrors.New("connection reset")
	}
	time.Sleep(5 * time.Millisecond)
	out := make([][]float64, len(texts))
	for i, t := range texts {
		var n float64
		_, _ = fmt.Sscanf(t, "t%f", &n)
		out[i] = []float64{n, 1}
	}
	return out, nil
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("t%d", i)
	}
	return out
}

func TestEmbedStringsSingleBatch(t *testing.T) {
	fe := &fakeEmbedder{}
	c := NewEmbeddingClientWith(fe, 10, 5)

	vectors, err := c.EmbedStrings(context.Background(), texts(10))
	require.NoError(t, err)
	assert.Len(t, vectors, 10)
	assert.Equal(t, int32(1), fe.calls.Load())
}

func TestEmbedStringsKeepsOrderAcrossBatches(t *testing.T) {
	fe := &fakeEmbedder{}
	c := NewEmbeddingClientWith(fe, 10, 5)

	vectors, err := c.EmbedStrings(context.Background(), texts(95))
	require.NoError(t, err)
	require.Len(t, vectors, 95)
	for i, v := range vectors {
		assert.Equal(t, float32(i), v[0], "vector %d out of order", i)
	}
	assert.Equal(t, int32(10), fe.calls.Load())
	assert.LessOrEqual(t, fe.peak.Load(), int32(5))
}

func TestEmbedRetriesOnce(t *testing.T) {
	fe := &fakeEmbedder{}
	fe.failures.Store(1)
	c := NewEmbeddingClientWith(fe, 10, 5)
	c.retryDelay = time.Millisecond

	v, err := c.Embed(context.Background(), "t7")
	require.NoError(t, err)
	assert.Equal(t, []float32{7, 1}, v)
	assert.Equal(t, int32(2), fe.calls.Load())
}

func TestEmbedFailsAfterRetry(t *testing.T) {
	fe := &fakeEmbedder{}
	fe.failures.Store(2)
	c := NewEmbeddingClientWith(fe, 10, 5)
	c.retryDelay = time.Millisecond

	_, err := c.Embed(context.Background(), "t1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrEmbeddingFailed, errors.CodeOf(err))
}

func TestProbeIsConfigError(t *testing.T) {
	fe := &fakeEmbedder{}
	fe.failures.Store(1)
	c := NewEmbeddingClientWith(fe, 10, 5)

	err := c.Probe(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrConfigInvalid, errors.CodeOf(err))
	assert.Equal(t, int32(1), fe.calls.Load())
}

func TestEmbedStringsEmpty(t *testing.T) {
	c := NewEmbeddingClientWith(&fakeEmbedder{}, 10, 5)
	vectors, err := c.EmbedStrings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}
