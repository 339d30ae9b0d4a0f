package common

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/Malowking/agentchat/core/config"
	"github.com/Malowking/agentchat/core/errors"
	einoopenai "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/gogf/gf/v2/frame/g"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// 单次重试前的等待时间
const embeddingRetryDelay = 500 * time.Millisecond

// EmbeddingClient 按批次并发调用 embedding 端点，输出顺序与输入一致
type EmbeddingClient struct {
	embedder    embedding.Embedder
	batchSize   int
	concurrency int64
	limiter     *rate.Limiter
	retryDelay  time.Duration
}

// NewEmbeddingClient 基于 eino-ext openai embedder 创建客户端
func NewEmbeddingClient(ctx context.Context, conf *config.EmbeddingConfig) (*EmbeddingClient, error) {
	if conf.GetBaseURL() == "" {
		return nil, errors.New(errors.ErrConfigInvalid, "multi_models.embedding.base_url is required")
	}
	if conf.GetModel() == "" {
		return nil, errors.New(errors.ErrConfigInvalid, "multi_models.embedding.model_name is required")
	}

	ecfg := &einoopenai.EmbeddingConfig{
		APIKey:     conf.GetAPIKey(),
		BaseURL:    conf.GetBaseURL(),
		Model:      conf.GetModel(),
		HTTPClient: newHTTPClient(),
	}
	if conf.Dimensions > 0 {
		ecfg.Dimensions = Of(conf.Dimensions)
	}
	embedder, err := einoopenai.NewEmbedder(ctx, ecfg)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigInvalid, "failed to create embedder")
	}

	c := NewEmbeddingClientWith(embedder, conf.GetBatchSize(), conf.GetConcurrency())
	if conf.RPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(conf.RPS), conf.GetConcurrency())
	}
	return c, nil
}

// NewEmbeddingClientWith 包装任意 eino Embedder
func NewEmbeddingClientWith(embedder embedding.Embedder, batchSize, concurrency int) *EmbeddingClient {
	if batchSize <= 0 {
		batchSize = 10
	}
	if concurrency <= 0 {
		concurrency = 5
	}
	return &EmbeddingClient{
		embedder:    embedder,
		batchSize:   batchSize,
		concurrency: int64(concurrency),
		retryDelay:  embeddingRetryDelay,
	}
}

// newHTTPClient 与模型端点通信的 HTTP 客户端
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 5 * time.Minute,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   30 * time.Second,
			ResponseHeaderTimeout: 2 * time.Minute,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
		},
	}
}

// Probe 启动时探测端点，首次不可达视为配置错误（不重试）
func (c *EmbeddingClient) Probe(ctx context.Context) error {
	if _, err := c.embedder.EmbedStrings(ctx, []string{"ping"}); err != nil {
		return errors.Wrapf(err, errors.ErrConfigInvalid, "embedding endpoint unreachable")
	}
	return nil
}

// Embed 单条文本向量化
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedStrings 批量向量化：不超过 batchSize 时一次调用，否则分批并发
func (c *EmbeddingClient) EmbedStrings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if len(texts) <= c.batchSize {
		return c.embedBatch(ctx, texts)
	}

	out := make([][]float32, len(texts))
	sem := semaphore.NewWeighted(c.concurrency)
	errCh := make(chan error, (len(texts)+c.batchSize-1)/c.batchSize)
	batches := 0

	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			errCh <- err
			break
		}
		batches++
		go func(start, end int) {
			defer sem.Release(1)
			vectors, err := c.embedBatch(ctx, texts[start:end])
			if err != nil {
				errCh <- errors.Wrapf(err, errors.ErrEmbeddingFailed, "batch [%d:%d] failed", start, end)
				return
			}
			copy(out[start:end], vectors)
			errCh <- nil
		}(start, end)
	}

	// 等待所有已启动批次
	if err := sem.Acquire(context.Background(), c.concurrency); err != nil {
		return nil, err
	}
	sem.Release(c.concurrency)
	close(errCh)

	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}
	g.Log().Debugf(ctx, "embedded %d texts in %d batches", len(texts), batches)
	return out, nil
}

// embedBatch 单批调用，传输错误重试一次
func (c *EmbeddingClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			g.Log().Warningf(ctx, "retrying embedding batch of %d after error: %v", len(texts), lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		vectors, err := c.embedder.EmbedStrings(ctx, texts)
		if err != nil {
			lastErr = err
			continue
		}
		if len(vectors) != len(texts) {
			lastErr = errors.Newf(errors.ErrEmbeddingFailed, "embedding returned %d vectors for %d texts", len(vectors), len(texts))
			continue
		}
		return toFloat32(vectors), nil
	}
	return nil, errors.Wrapf(lastErr, errors.ErrEmbeddingFailed, "embedding failed")
}

func toFloat32(in [][]float64) [][]float32 {
	out := make([][]float32, len(in))
	for i, v := range in {
		f := make([]float32, len(v))
		for j, x := range v {
			f[j] = float32(x)
		}
		out[i] = f
	}
	return out
}
