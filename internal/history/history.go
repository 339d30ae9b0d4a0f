// Package history 对话历史：最近记录、记忆召回与按轮追加
package history

import (
	"context"
	"strings"
	"time"

	"github.com/Malowking/agentchat/core/common"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/Malowking/agentchat/core/retriever"
	gormModel "github.com/Malowking/agentchat/internal/model/gorm"
	pkgschema "github.com/Malowking/agentchat/pkg/schema"
	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/google/uuid"
)

// 记忆集合中一轮对话的文本格式
const (
	userPrefix      = "用户: "
	assistantPrefix = "\n助手: "
)

// memoryFileName 记忆 chunk 的 file_name
const memoryFileName = "history_rag"

// Store *dao.HistoryDAO 实现
type Store interface {
	Recent(ctx context.Context, dialogID string, limit int) ([]*gormModel.HistoryEntry, error)
	AppendTurn(ctx context.Context, dialogID string, entries ...*gormModel.HistoryEntry) error
}

// MemoryWriter *chunkstore.DualStore 实现
type MemoryWriter interface {
	Ensure(ctx context.Context, knowledgeID string) error
	Insert(ctx context.Context, knowledgeID string, chunks []*pkgschema.Chunk) error
}

// Recaller *retriever.Retriever 实现
type Recaller interface {
	Retrieve(ctx context.Context, req *retriever.Request) ([]*pkgschema.RetrievalResult, error)
}

// Manager 聊天历史管理器
type Manager struct {
	store  Store
	memory MemoryWriter
	recall Recaller
	topK   int
	now    func() time.Time
}

// NewManager memory / recall 为 nil 时记忆模式退化为最近历史
func NewManager(store Store, memory MemoryWriter, recall Recaller, topK int) *Manager {
	if topK <= 0 {
		topK = 5
	}
	return &Manager{store: store, memory: memory, recall: recall, topK: topK, now: time.Now}
}

// Load 组装本轮的历史消息，由旧到新。memory 为 true 时按语义召回过去的轮次
func (m *Manager) Load(ctx context.Context, dialogID, query string, memory bool) ([]*schema.Message, error) {
	if memory && m.recall != nil {
		msgs, err := m.recallTurns(ctx, dialogID, query)
		if err == nil {
			return msgs, nil
		}
		g.Log().Warningf(ctx, "recall memory of dialog %s failed, use recent history: %v", dialogID, err)
	}
	entries, err := m.store.Recent(ctx, dialogID, m.topK)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrDatabaseQuery, "load history of dialog %s", dialogID)
	}
	return ToMessages(entries), nil
}

func (m *Manager) recallTurns(ctx context.Context, dialogID, query string) ([]*schema.Message, error) {
	noRewrite := false
	topK := m.topK
	results, err := m.recall.Retrieve(ctx, &retriever.Request{
		Query:         query,
		KnowledgeIDs:  []string{common.HistoryCollectionName(dialogID)},
		TopK:          &topK,
		EnableRewrite: &noRewrite,
	})
	if err != nil {
		return nil, err
	}
	msgs := make([]*schema.Message, 0, len(results)*2)
	// 分数高的在后，离用户输入更近
	for i := len(results) - 1; i >= 0; i-- {
		msgs = append(msgs, parseTurn(results[i].Content)...)
	}
	return msgs, nil
}

// Append 写入一轮的 user 与 assistant 记录，assistant 的时间严格晚于 user
func (m *Manager) Append(ctx context.Context, dialogID, input, answer string, events []*pkgschema.Event) error {
	if events == nil {
		events = []*pkgschema.Event{}
	}
	raw, err := sonic.MarshalString(events)
	if err != nil {
		return errors.Wrapf(err, errors.ErrDatabaseInsert, "marshal events")
	}
	now := m.now()
	user := &gormModel.HistoryEntry{
		ID:         uuid.NewString(),
		DialogID:   dialogID,
		Role:       pkgschema.RoleUser,
		Content:    input,
		Events:     "[]",
		CreateTime: now,
	}
	assistant := &gormModel.HistoryEntry{
		ID:         uuid.NewString(),
		DialogID:   dialogID,
		Role:       pkgschema.RoleAssistant,
		Content:    answer,
		Events:     gormModel.LongText(raw),
		CreateTime: now.Add(time.Millisecond),
	}
	if err := m.store.AppendTurn(ctx, dialogID, user, assistant); err != nil {
		return errors.Wrapf(err, errors.ErrDatabaseInsert, "append history of dialog %s", dialogID)
	}
	return nil
}

// Remember 把一轮对话写入该对话的记忆集合
func (m *Manager) Remember(ctx context.Context, dialogID, input, answer string) error {
	if m.memory == nil {
		return nil
	}
	collection := common.HistoryCollectionName(dialogID)
	if err := m.memory.Ensure(ctx, collection); err != nil {
		return err
	}
	return m.memory.Insert(ctx, collection, []*pkgschema.Chunk{{
		ChunkID:     uuid.NewString(),
		Content:     formatTurn(input, answer),
		FileID:      dialogID,
		FileName:    memoryFileName,
		KnowledgeID: collection,
		UpdateTime:  pkgschema.BeijingNow(),
	}})
}

// ToMessages 转成 eino 消息
func ToMessages(entries []*gormModel.HistoryEntry) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(entries))
	for _, e := range entries {
		switch e.Role {
		case pkgschema.RoleUser:
			msgs = append(msgs, schema.UserMessage(e.Content))
		case pkgschema.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(e.Content, nil))
		}
	}
	return msgs
}

// ToEntry 还原事件列表，用于回放
func ToEntry(e *gormModel.HistoryEntry) (*pkgschema.HistoryEntry, error) {
	out := &pkgschema.HistoryEntry{
		ID:         e.ID,
		DialogID:   e.DialogID,
		Role:       e.Role,
		Content:    e.Content,
		CreateTime: e.CreateTime,
	}
	if e.Events == "" {
		return out, nil
	}
	if err := sonic.UnmarshalString(string(e.Events), &out.Events); err != nil {
		return nil, err
	}
	return out, nil
}

func formatTurn(input, answer string) string {
	return userPrefix + input + assistantPrefix + answer
}

func parseTurn(text string) []*schema.Message {
	body := strings.TrimPrefix(text, userPrefix)
	input, answer, ok := strings.Cut(body, assistantPrefix)
	if !ok {
		return []*schema.Message{schema.UserMessage(text)}
	}
	return []*schema.Message{schema.UserMessage(input), schema.AssistantMessage(answer, nil)}
}
