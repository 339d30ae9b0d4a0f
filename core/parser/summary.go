package parser

import (
	"context"
	"strings"
	"sync"

	pkgSchema "github.com/Malowking/agentchat/pkg/schema"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/gogf/gf/v2/frame/g"
	"golang.org/x/sync/semaphore"
)

const summaryPrompt = `你是一个专业的摘要生成助手，请根据以下要求为文本生成一段摘要：
## 需要总结的文本：
%s
## 要求：
1. 摘要字数控制在 100 字左右。
2. 摘要中仅包含文字和字母，不得出现链接或其他特殊符号。
3. 只输出摘要部分，不准输出 ` + "`以下是文本的摘要`" + ` 等字段`

// Summarizer 并发受限地为切片生成摘要
type Summarizer struct {
	model       model.BaseChatModel
	concurrency int64
}

func NewSummarizer(m model.BaseChatModel, concurrency int) *Summarizer {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Summarizer{model: m, concurrency: int64(concurrency)}
}

// Fill 原地填充 Summary，单个失败置空不影响整体
func (s *Summarizer) Fill(ctx context.Context, chunks []*pkgSchema.Chunk) {
	sem := semaphore.NewWeighted(s.concurrency)
	var wg sync.WaitGroup
	for _, c := range chunks {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(c *pkgSchema.Chunk) {
			defer wg.Done()
			defer sem.Release(1)
			c.Summary = s.summarize(ctx, c)
		}(c)
	}
	wg.Wait()
}

func (s *Summarizer) summarize(ctx context.Context, c *pkgSchema.Chunk) (summary string) {
	defer func() {
		if r := recover(); r != nil {
			g.Log().Errorf(ctx, "summary panic for chunk %s: %v", c.ChunkID, r)
			summary = ""
		}
	}()
	msg, err := s.model.Generate(ctx, []*schema.Message{
		schema.UserMessage(strings.Replace(summaryPrompt, "%s", c.Content, 1)),
	})
	if err != nil {
		g.Log().Warningf(ctx, "summary failed for chunk %s: %v", c.ChunkID, err)
		return ""
	}
	return strings.TrimSpace(msg.Content)
}
