package common

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/Malowking/agentchat/core/config"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/bytedance/sonic"
	"github.com/gogf/gf/v2/frame/g"
)

// Reranker 交叉编码重排序客户端
type Reranker struct {
	apiKey     string
	baseURL    string
	model      string
	dashscope  bool // qwen 使用 input/parameters 嵌套格式
	httpClient *http.Client
	retryDelay time.Duration
}

// RerankResult 重排序结果，Content 按 Index 从原始列表回填
type RerankResult struct {
	Index   int
	Score   float64
	Content string
}

type rerankRequest struct {
	Model           string   `json:"model"`
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	TopN            int      `json:"top_n"`
	ReturnDocuments bool     `json:"return_documents"`
}

type dashscopeRerankRequest struct {
	Model string `json:"model"`
	Input struct {
		Query     string   `json:"query"`
		Documents []string `json:"documents"`
	} `json:"input"`
	Parameters struct {
		ReturnDocuments bool `json:"return_documents"`
		TopN            int  `json:"top_n"`
	} `json:"parameters"`
}

type rerankItem struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// rerankResponse 兼容 results 与 output.results 两种响应
type rerankResponse struct {
	Results []rerankItem `json:"results"`
	Output  struct {
		Results []rerankItem `json:"results"`
	} `json:"output"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// NewReranker 创建 rerank 客户端
func NewReranker(conf *config.ModelConfig) (*Reranker, error) {
	if conf.GetBaseURL() == "" {
		return nil, errors.New(errors.ErrConfigInvalid, "multi_models.rerank.base_url is required")
	}
	return &Reranker{
		apiKey:    conf.GetAPIKey(),
		baseURL:   conf.GetBaseURL(),
		model:     conf.GetModel(),
		dashscope: conf.GetProvider() == config.ProviderQwen,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   30 * time.Second,
				ResponseHeaderTimeout: 60 * time.Second,
				IdleConnTimeout:       90 * time.Second,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   20,
			},
		},
		retryDelay: 300 * time.Millisecond,
	}, nil
}

// Rerank 对 documents 打分并按分数降序返回，topN<=0 表示全部
func (r *Reranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error) {
	if len(documents) == 0 {
		return []RerankResult{}, nil
	}
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}

	body, err := r.buildPayload(query, documents, topN)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrRerankFailed, "failed to marshal request")
	}

	var items []rerankItem
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			g.Log().Warningf(ctx, "retrying rerank after error: %v", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.retryDelay):
			}
		}
		items, err = r.do(ctx, body)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	results := make([]RerankResult, 0, len(items))
	for _, it := range items {
		if it.Index < 0 || it.Index >= len(documents) {
			return nil, errors.Newf(errors.ErrRerankFailed, "invalid result index: %d", it.Index)
		}
		results = append(results, RerankResult{
			Index:   it.Index,
			Score:   it.RelevanceScore,
			Content: documents[it.Index],
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

func (r *Reranker) buildPayload(query string, documents []string, topN int) ([]byte, error) {
	if r.dashscope {
		req := dashscopeRerankRequest{Model: r.model}
		req.Input.Query = query
		req.Input.Documents = documents
		req.Parameters.ReturnDocuments = true
		req.Parameters.TopN = topN
		return sonic.Marshal(req)
	}
	return sonic.Marshal(rerankRequest{
		Model:           r.model,
		Query:           query,
		Documents:       documents,
		TopN:            topN,
		ReturnDocuments: false,
	})
}

func (r *Reranker) do(ctx context.Context, body []byte) ([]rerankItem, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrRerankFailed, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrRerankFailed, "failed to send request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrRerankFailed, "failed to read response")
	}

	var parsed rerankResponse
	if err := sonic.Unmarshal(raw, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, errors.Newf(errors.ErrRerankFailed, "HTTP %d: %s", resp.StatusCode, TruncateRunes(string(raw), 200))
		}
		return nil, errors.Wrapf(err, errors.ErrRerankFailed, "failed to decode response")
	}
	if resp.StatusCode != http.StatusOK {
		msg := parsed.Error.Message
		if msg == "" {
			msg = parsed.Message
		}
		return nil, errors.Newf(errors.ErrRerankFailed, "API error (HTTP %d): %s", resp.StatusCode, msg)
	}

	if len(parsed.Results) > 0 {
		return parsed.Results, nil
	}
	return parsed.Output.Results, nil
}
