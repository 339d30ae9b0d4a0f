package rewriter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Malowking/agentchat/core/common"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/gogf/gf/v2/os/gcache"
)

const systemPrompt = `{
  "instruction": "请将用户输入的query用三种不同的表达方式改写，保持原意但改变句式结构和用词",
  "output_rules": {
    "format": "JSON",
    "structure": {
      "original_query": "string",
      "variations": ["string", "string", "string"]
    },
    "requirements": [
      "三种问法应使用不同的句式结构",
      "需保持核心语义不变",
      "避免使用专业术语简化表达",
      "只输出JSON，不要输出其它内容"
    ]
  },
  "example": {
    "input": {"query": "如何提高睡眠质量"},
    "output": {
      "original_query": "如何提高睡眠质量",
      "variations": ["有什么方法可以让睡眠变得更好", "睡不好的话应该怎样改善", "提升睡眠效果有哪些技巧"]
    }
  }
}`

const userPrompt = "用户的问题是：%s\n请按照要求输出JSON。"

// 结果缓存时间
const cacheTTL = 10 * time.Minute

type rewriteResult struct {
	OriginalQuery string   `json:"original_query"`
	Variations    []string `json:"variations"`
}

// Rewriter 多问法改写
type Rewriter struct {
	model     model.BaseChatModel
	modelName string
	cache     *gcache.Cache
}

// Option 构造选项
type Option func(*Rewriter)

// WithCache 与其它 Rewriter 共用结果缓存
func WithCache(c *gcache.Cache) Option {
	return func(r *Rewriter) { r.cache = c }
}

// New m 为 nil 时 Rewrite 直接返回原始问题；modelName 参与缓存键
func New(m model.BaseChatModel, modelName string, opts ...Option) *Rewriter {
	r := &Rewriter{model: m, modelName: modelName}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = gcache.New()
	}
	return r
}

func (r *Rewriter) cacheKey(query string) string {
	return "rewrite:" + r.modelName + ":" + query
}

// Rewrite 返回原问题加上改写后的问法，失败时返回 [query]，从不报错
func (r *Rewriter) Rewrite(ctx context.Context, query string) []string {
	query = strings.TrimSpace(query)
	if r == nil || r.model == nil || query == "" {
		return []string{query}
	}
	key := r.cacheKey(query)
	if v, err := r.cache.Get(ctx, key); err == nil && v != nil && !v.IsNil() {
		if cached := v.Strings(); len(cached) > 0 {
			return cached
		}
	}

	msg, err := r.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(fmt.Sprintf(userPrompt, query)),
	})
	if err != nil {
		g.Log().Warningf(ctx, "query rewrite failed, fallback to original query: %v", err)
		return []string{query}
	}

	queries, ok := parse(query, msg.Content)
	if !ok {
		g.Log().Infof(ctx, "query rewrite output is not valid json, fallback to original query")
		return []string{query}
	}
	_ = r.cache.Set(ctx, key, queries, cacheTTL)
	return queries
}

// parse 去重并把原问题放在首位
func parse(query, raw string) ([]string, bool) {
	var res rewriteResult
	if err := common.DecodeLLMJSON(raw, &res); err != nil {
		return nil, false
	}
	seen := map[string]struct{}{query: {}}
	out := []string{query}
	for _, v := range res.Variations {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 1 {
		return nil, false
	}
	return out, true
}
