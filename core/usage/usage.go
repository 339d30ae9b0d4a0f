// Package usage 单轮对话的 token 用量统计
package usage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Malowking/agentchat/core/metrics"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	callbackhelper "github.com/cloudwego/eino/utils/callbacks"
	"github.com/gogf/gf/v2/frame/g"
)

// Record 一个模型在一轮对话中的用量
type Record struct {
	UserID       string
	AgentName    string
	ModelName    string
	InputTokens  int
	OutputTokens int
	CreateTime   time.Time
}

// Store UsageRecord 持久化
type Store interface {
	SaveUsage(ctx context.Context, records []*Record) error
}

type tokens struct {
	input, output int
}

// Collector 带锁的聚合器，每轮对话一个
type Collector struct {
	mu      sync.Mutex
	byModel map[string]*tokens
	pending sync.WaitGroup
}

// NewCollector 创建聚合器
func NewCollector() *Collector {
	return &Collector{byModel: make(map[string]*tokens)}
}

// Add 累加一次模型调用的用量
func (c *Collector) Add(modelName string, input, output int) {
	if modelName == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.byModel[modelName]
	if !ok {
		t = &tokens{}
		c.byModel[modelName] = t
	}
	t.input += input
	t.output += output
}

// Records 按模型名输出用量，会等待仍在读取的流式回调
func (c *Collector) Records(userID, agentName string) []*Record {
	c.pending.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	records := make([]*Record, 0, len(c.byModel))
	for name, t := range c.byModel {
		records = append(records, &Record{
			UserID:       userID,
			AgentName:    agentName,
			ModelName:    name,
			InputTokens:  t.input,
			OutputTokens: t.output,
			CreateTime:   now,
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ModelName < records[j].ModelName })
	return records
}

// Flush 写入 UsageRecord 并累加 prometheus 计数
func (c *Collector) Flush(ctx context.Context, store Store, userID, agentName string) error {
	records := c.Records(userID, agentName)
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		metrics.ModelTokensTotal.WithLabelValues(r.ModelName, "input").Add(float64(r.InputTokens))
		metrics.ModelTokensTotal.WithLabelValues(r.ModelName, "output").Add(float64(r.OutputTokens))
	}
	if store == nil {
		return nil
	}
	return store.SaveUsage(ctx, records)
}

// Bind 为一次模型调用挂上回调，modelName 作为聚合键
func (c *Collector) Bind(ctx context.Context, modelName string) context.Context {
	return callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      modelName,
		Component: components.ComponentOfChatModel,
	}, c.Handler())
}

type promptKey struct{}

// Handler eino 回调；provider 未返回 usage 时用 tiktoken 估算
func (c *Collector) Handler() callbacks.Handler {
	return callbackhelper.NewHandlerHelper().ChatModel(&callbackhelper.ModelCallbackHandler{
		OnStart: func(ctx context.Context, _ *callbacks.RunInfo, input *model.CallbackInput) context.Context {
			if input == nil {
				return ctx
			}
			return context.WithValue(ctx, promptKey{}, input.Messages)
		},
		OnEnd: func(ctx context.Context, info *callbacks.RunInfo, output *model.CallbackOutput) context.Context {
			if output == nil {
				return ctx
			}
			var out string
			if output.Message != nil {
				out = output.Message.Content
			}
			c.observe(ctx, modelNameOf(info, output), output.TokenUsage, out)
			return ctx
		},
		OnEndWithStreamOutput: func(ctx context.Context, info *callbacks.RunInfo, output *schema.StreamReader[*model.CallbackOutput]) context.Context {
			if output == nil {
				return ctx
			}
			c.pending.Add(1)
			go func() {
				defer c.pending.Done()
				defer output.Close()
				var (
					usage *model.TokenUsage
					name  = modelNameOf(info, nil)
					text  []byte
				)
				for {
					chunk, err := output.Recv()
					if err != nil {
						break
					}
					if chunk == nil {
						continue
					}
					if chunk.TokenUsage != nil {
						usage = chunk.TokenUsage
					}
					if name == "" {
						name = modelNameOf(info, chunk)
					}
					if chunk.Message != nil {
						text = append(text, chunk.Message.Content...)
					}
				}
				c.observe(ctx, name, usage, string(text))
			}()
			return ctx
		},
		OnError: func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			g.Log().Debugf(ctx, "model %s call failed: %v", info.Name, err)
			return ctx
		},
	}).Handler()
}

func (c *Collector) observe(ctx context.Context, modelName string, usage *model.TokenUsage, output string) {
	if usage != nil && usage.TotalTokens > 0 {
		c.Add(modelName, usage.PromptTokens, usage.CompletionTokens)
		return
	}
	prompt, _ := ctx.Value(promptKey{}).([]*schema.Message)
	c.Add(modelName, CountMessages(prompt), CountText(output))
}

func modelNameOf(info *callbacks.RunInfo, output *model.CallbackOutput) string {
	if info != nil && info.Name != "" {
		return info.Name
	}
	if output != nil && output.Config != nil {
		return output.Config.Model
	}
	return ""
}

type collectorKey struct{}

// WithCollector 把聚合器绑定到一轮对话的 ctx，子智能体的模型调用也会计入
func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, collectorKey{}, c)
}

// FromContext 未绑定时返回 nil
func FromContext(ctx context.Context) *Collector {
	c, _ := ctx.Value(collectorKey{}).(*Collector)
	return c
}
