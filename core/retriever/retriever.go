package retriever

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Malowking/agentchat/core/chunkstore"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/Malowking/agentchat/core/metrics"
	"github.com/Malowking/agentchat/pkg/schema"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Retriever 多问法 × 多知识库 × 多后端混合检索 + rerank
type Retriever struct {
	searchers []chunkstore.Searcher
	rewriter  Rewriter
	reranker  Reranker
	conf      Config
}

// New rewriter、reranker 可以为 nil
func New(searchers []chunkstore.Searcher, rw Rewriter, rr Reranker, conf Config) *Retriever {
	if conf.TopK <= 0 {
		conf.TopK = 5
	}
	if conf.SearchTopK <= 0 {
		conf.SearchTopK = 10
	}
	if conf.BackendTopN <= 0 {
		conf.BackendTopN = 5
	}
	if conf.Concurrency <= 0 {
		conf.Concurrency = 8
	}
	return &Retriever{searchers: searchers, rewriter: rw, reranker: rr, conf: conf}
}

func (r *Retriever) fill(req *Request) {
	if req.TopK == nil || *req.TopK <= 0 {
		req.TopK = &r.conf.TopK
	}
	if req.MinScore == nil {
		req.MinScore = &r.conf.MinScore
	}
	if req.EnableRewrite == nil {
		req.EnableRewrite = &r.conf.EnableRewrite
	}
	if req.Field != schema.FieldSummary {
		req.Field = schema.FieldContent
	}
}

// Retrieve 返回 rerank 后按分数降序、过滤 min_score、截断 top_k 的结果
func (r *Retriever) Retrieve(ctx context.Context, req *Request) ([]*schema.RetrievalResult, error) {
	start := time.Now()
	defer metrics.ObserveSince("total", start)

	req = req.Copy()
	r.fill(req)
	if len(req.KnowledgeIDs) == 0 || strings.TrimSpace(req.Query) == "" {
		return []*schema.RetrievalResult{}, nil
	}

	queries := []string{req.Query}
	if *req.EnableRewrite && r.rewriter != nil {
		queries = r.rewriter.Rewrite(ctx, req.Query)
	}
	g.Log().Debugf(ctx, "retrieve queries=%v knowledge=%v field=%s", queries, req.KnowledgeIDs, req.Field)

	candidates, err := r.search(ctx, queries, req.KnowledgeIDs, req.Field)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []*schema.RetrievalResult{}, nil
	}
	return r.rerank(ctx, req, candidates), nil
}

// backendHits 单个后端的召回汇总
type backendHits struct {
	results []*schema.RetrievalResult
	total   int
	failed  int
	lastErr error
}

// search 并发检索，单个后端全部失败时跳过，所有后端都失败时报错
func (r *Retriever) search(ctx context.Context, queries, knowledgeIDs []string, field string) ([]*schema.RetrievalResult, error) {
	start := time.Now()
	defer metrics.ObserveSince("search", start)

	var (
		mu   sync.Mutex
		hits = make([]backendHits, len(r.searchers))
		eg   errgroup.Group
	)
	eg.SetLimit(r.conf.Concurrency)
	for bi, s := range r.searchers {
		for _, q := range queries {
			for _, kid := range knowledgeIDs {
				eg.Go(func() error {
					res, err := s.Search(ctx, kid, q, field, r.conf.SearchTopK)
					mu.Lock()
					defer mu.Unlock()
					hits[bi].total++
					if err != nil {
						hits[bi].failed++
						hits[bi].lastErr = err
						return nil
					}
					hits[bi].results = append(hits[bi].results, res...)
					return nil
				})
			}
		}
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		lists   [][]*schema.RetrievalResult
		lastErr error
	)
	for bi, h := range hits {
		if h.total > 0 && h.failed == h.total {
			g.Log().Warningf(ctx, "search backend %s failed: %v", r.searchers[bi].Name(), h.lastErr)
			lastErr = h.lastErr
			continue
		}
		lists = append(lists, topPerBackend(h.results, r.conf.BackendTopN))
	}
	if len(lists) == 0 && len(r.searchers) > 0 {
		return nil, errors.Wrapf(lastErr, errors.ErrRetrievalFailed, "all search backends failed")
	}
	// 按名次交替合并：各后端的第 1 名在前，然后是第 2 名
	merged := lo.Interleave(lists...)
	return lo.UniqBy(merged, func(item *schema.RetrievalResult) string { return item.ChunkID }), nil
}

// topPerBackend 后端内按分数排序、按 chunk_id 去重后取前 n 条
func topPerBackend(results []*schema.RetrievalResult, n int) []*schema.RetrievalResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	results = lo.UniqBy(results, func(item *schema.RetrievalResult) string { return item.ChunkID })
	if len(results) > n {
		results = results[:n]
	}
	return results
}

// rerank 用原始问题重排；rerank 失败时沿用 search 的交替合并顺序，只做 top_k 截断
func (r *Retriever) rerank(ctx context.Context, req *Request, candidates []*schema.RetrievalResult) []*schema.RetrievalResult {
	topK := *req.TopK
	if r.reranker != nil {
		start := time.Now()
		docs := lo.Map(candidates, func(c *schema.RetrievalResult, _ int) string { return c.Content })
		ranked, err := r.reranker.Rerank(ctx, req.Query, docs, 0)
		metrics.ObserveSince("rerank", start)
		if err == nil {
			out := make([]*schema.RetrievalResult, 0, topK)
			for _, item := range ranked {
				if len(out) >= topK {
					break
				}
				if item.Score < *req.MinScore {
					g.Log().Debugf(ctx, "score less: %v, related: %v", item.Score, item.Content)
					continue
				}
				c := candidates[item.Index]
				out = append(out, &schema.RetrievalResult{
					Query:   req.Query,
					ChunkID: c.ChunkID,
					Content: item.Content,
					Score:   item.Score,
					Index:   len(out),
					Source:  c.Source,
				})
			}
			return out
		}
		g.Log().Warningf(ctx, "Rerank failed, fallback to recall order: %v", err)
	}

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	for i, c := range candidates {
		c.Index = i
	}
	return candidates
}

// RetrieveSummary 先检索 summary 字段，不足 top_k 时改用 content 字段
func (r *Retriever) RetrieveSummary(ctx context.Context, req *Request) ([]*schema.RetrievalResult, error) {
	sreq := req.Copy()
	sreq.Field = schema.FieldSummary
	r.fill(sreq)

	results, err := r.Retrieve(ctx, sreq)
	if err == nil && len(results) >= *sreq.TopK {
		return results, nil
	}
	if err != nil {
		g.Log().Warningf(ctx, "summary retrieval failed, retry with content field: %v", err)
	} else {
		g.Log().Infof(ctx, "Recall for summary field numbers < top k, start recall use content field")
	}

	creq := req.Copy()
	creq.Field = schema.FieldContent
	return r.Retrieve(ctx, creq)
}

// Answer 检索并拼接为文本；没有知识库时返回空字符串
func (r *Retriever) Answer(ctx context.Context, req *Request) (string, error) {
	if len(req.KnowledgeIDs) == 0 {
		return "", nil
	}
	results, err := r.Retrieve(ctx, req)
	if err != nil {
		return "", err
	}
	return Join(results), nil
}

// Join 拼接检索结果
func Join(results []*schema.RetrievalResult) string {
	if len(results) == 0 {
		return NoRelevantDocuments
	}
	return strings.Join(lo.Map(results, func(r *schema.RetrievalResult, _ int) string { return r.Content }), "\n")
}
