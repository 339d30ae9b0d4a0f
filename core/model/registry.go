package model

import (
	"context"
	"sync"

	"github.com/Malowking/agentchat/core/config"
	"github.com/Malowking/agentchat/core/errors"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/gogf/gf/v2/frame/g"
)

// Entry 已创建好的对话模型
type Entry struct {
	LLMID     string // 空表示来自 multi_models 槽位
	ModelName string
	Provider  string
	Model     einoModel.ToolCallingChatModel
}

// LLMSpec 数据库中的 LLM 行
type LLMSpec struct {
	LLMID string
	config.ModelConfig
}

// Registry 模型注册表：multi_models 槽位 + 按 llm_id 注册的模型
type Registry struct {
	factory Factory

	mu    sync.RWMutex
	slots map[string]*Entry
	llms  map[string]*Entry // key = llm_id
}

// NewRegistry factory 为 nil 时使用 NewChatModel
func NewRegistry(factory Factory) *Registry {
	if factory == nil {
		factory = NewChatModel
	}
	return &Registry{
		factory: factory,
		slots:   make(map[string]*Entry),
		llms:    make(map[string]*Entry),
	}
}

// LoadSlots 创建 conversation/tool_call/reasoning/vision 等槽位模型，未配置的槽位跳过
func (r *Registry) LoadSlots(ctx context.Context, slots map[string]*config.ModelConfig) error {
	newSlots := make(map[string]*Entry, len(slots))
	for name, conf := range slots {
		if !conf.Configured() {
			g.Log().Debugf(ctx, "multi_models.%s is not configured, skipped", name)
			continue
		}
		cm, err := r.factory(ctx, conf)
		if err != nil {
			return errors.Wrapf(err, errors.ErrConfigInvalid, "failed to init multi_models.%s", name)
		}
		newSlots[name] = &Entry{ModelName: conf.GetModel(), Provider: conf.GetProvider(), Model: cm}
	}

	r.mu.Lock()
	r.slots = newSlots
	r.mu.Unlock()
	g.Log().Infof(ctx, "Model slots loaded, total: %d", len(newSlots))
	return nil
}

// Reload 从数据库行重建 llm_id 映射（热更新），单个模型创建失败只记日志
func (r *Registry) Reload(ctx context.Context, specs []LLMSpec) {
	newMap := make(map[string]*Entry, len(specs))
	for i := range specs {
		spec := specs[i]
		cm, err := r.factory(ctx, &spec.ModelConfig)
		if err != nil {
			g.Log().Warningf(ctx, "skip llm %s (%s): %v", spec.LLMID, spec.ModelName, err)
			continue
		}
		newMap[spec.LLMID] = &Entry{LLMID: spec.LLMID, ModelName: spec.GetModel(), Provider: spec.GetProvider(), Model: cm}
	}

	// 原子替换，进行中的请求继续使用旧模型
	r.mu.Lock()
	r.llms = newMap
	r.mu.Unlock()
	g.Log().Infof(ctx, "Model registry reloaded successfully, total models: %d", len(newMap))
}

// Slot 获取槽位模型；reasoning_model 未配置时退回 conversation_model
func (r *Registry) Slot(name string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.slots[name]; ok {
		return e, nil
	}
	if name == config.ModelReasoning {
		if e, ok := r.slots[config.ModelConversation]; ok {
			return e, nil
		}
	}
	return nil, errors.Newf(errors.ErrModelNotConfigured, "multi_models.%s is not configured", name)
}

// Resolve 按智能体的 llm_id 解析模型，llm_id 为空时使用 conversation_model
func (r *Registry) Resolve(llmID string) (*Entry, error) {
	if llmID == "" {
		return r.Slot(config.ModelConversation)
	}
	r.mu.RLock()
	e, ok := r.llms[llmID]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.ErrAgentResolve, "llm %s not found", llmID)
	}
	return e, nil
}

// Count 已注册的 llm_id 数量
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.llms)
}
