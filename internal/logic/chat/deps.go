package chat

import (
	"context"
	"time"

	"github.com/Malowking/agentchat/core/agent_tools"
	"github.com/Malowking/agentchat/core/agent_tools/mcp/client"
	"github.com/Malowking/agentchat/core/model"
	"github.com/Malowking/agentchat/core/retriever"
	gormModel "github.com/Malowking/agentchat/internal/model/gorm"
	pkgschema "github.com/Malowking/agentchat/pkg/schema"
	"github.com/cloudwego/eino/schema"
)

// AgentStore *dao.AgentDAO 实现
type AgentStore interface {
	GetByID(ctx context.Context, agentID string) (*gormModel.Agent, error)
}

// DialogStore *dao.DialogDAO 实现
type DialogStore interface {
	GetByID(ctx context.Context, dialogID string) (*gormModel.Dialog, error)
	Create(ctx context.Context, dialog *gormModel.Dialog) error
}

// ToolDefStore *dao.ToolDefDAO 实现
type ToolDefStore interface {
	GetByIDs(ctx context.Context, ids []string) ([]*gormModel.ToolDef, error)
}

// MCPServerStore *dao.MCPServerDAO 实现
type MCPServerStore interface {
	GetByID(ctx context.Context, id string) (*gormModel.MCPServer, error)
	GetByIDs(ctx context.Context, ids []string) ([]*gormModel.MCPServer, error)
	UpdateTools(ctx context.Context, id string, tools []string) error
}

// KnowledgeStore *dao.KnowledgeBaseDAO 实现
type KnowledgeStore interface {
	GetByIDs(ctx context.Context, ids []string) ([]*gormModel.KnowledgeBase, error)
}

// HistoryLister *dao.HistoryDAO 实现
type HistoryLister interface {
	List(ctx context.Context, dialogID string) ([]*gormModel.HistoryEntry, error)
}

// History *history.Manager 实现
type History interface {
	Load(ctx context.Context, dialogID, query string, memory bool) ([]*schema.Message, error)
	Append(ctx context.Context, dialogID, input, answer string, events []*pkgschema.Event) error
	Remember(ctx context.Context, dialogID, input, answer string) error
}

// Answerer *retriever.Retriever 实现
type Answerer interface {
	Answer(ctx context.Context, req *retriever.Request) (string, error)
}

// ModelResolver *model.Registry 实现
type ModelResolver interface {
	Resolve(llmID string) (*model.Entry, error)
}

// ToolResolver *agent_tools.Registry 实现
type ToolResolver interface {
	Resolve(ctx context.Context, toolNames []string, servers []agent_tools.MCPServer) ([]agent_tools.Tool, error)
}

// Prober *client.MultiServerClient 实现
type Prober interface {
	Probe(ctx context.Context, conf client.ServerConfig, timeout time.Duration) ([]string, error)
}

// ToMCPServer 数据库行转成工具注册表使用的服务描述
func ToMCPServer(row *gormModel.MCPServer) agent_tools.MCPServer {
	var env map[string]string
	if len(row.Env) > 0 {
		env = make(map[string]string, len(row.Env))
		for k, v := range row.Env {
			if s, ok := v.(string); ok {
				env[k] = s
			}
		}
	}
	return agent_tools.MCPServer{
		ServerConfig: client.ServerConfig{
			ServerID:  row.MCPServerID,
			Name:      row.ServerName,
			URL:       row.URL,
			Transport: row.Transport,
			Env:       env,
		},
		Tools:       row.Tools,
		AsToolName:  row.MCPAsToolName,
		Description: row.Description,
	}
}
