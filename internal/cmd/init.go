package cmd

import (
	"context"
	"time"

	"github.com/Malowking/agentchat/core/agent"
	"github.com/Malowking/agentchat/core/agent_tools"
	"github.com/Malowking/agentchat/core/agent_tools/file_export"
	"github.com/Malowking/agentchat/core/agent_tools/knowledge_retrieval"
	"github.com/Malowking/agentchat/core/agent_tools/mcp/client"
	"github.com/Malowking/agentchat/core/agent_tools/plugins"
	"github.com/Malowking/agentchat/core/cache"
	"github.com/Malowking/agentchat/core/chunkstore"
	"github.com/Malowking/agentchat/core/common"
	"github.com/Malowking/agentchat/core/config"
	"github.com/Malowking/agentchat/core/file_store"
	"github.com/Malowking/agentchat/core/fulltext"
	"github.com/Malowking/agentchat/core/model"
	"github.com/Malowking/agentchat/core/parser"
	"github.com/Malowking/agentchat/core/retriever"
	"github.com/Malowking/agentchat/core/rewriter"
	"github.com/Malowking/agentchat/core/vector_store"
	"github.com/Malowking/agentchat/internal/dao"
	"github.com/Malowking/agentchat/internal/history"
	"github.com/Malowking/agentchat/internal/logic/chat"
	"github.com/Malowking/agentchat/internal/logic/knowledge"
	gormModel "github.com/Malowking/agentchat/internal/model/gorm"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/gogf/gf/v2/os/gtimer"
	"github.com/samber/lo"
)

// App 启动后的全部组件
type App struct {
	Chat      *chat.Service
	Knowledge *knowledge.Service
	Retriever *retriever.Retriever
	Usage     *dao.UsageDAO

	vectors vector_store.Store
	mcp     *client.MultiServerClient
}

// Close 释放外部连接
func (a *App) Close(ctx context.Context) {
	if a.mcp != nil {
		a.mcp.Close()
	}
	if a.vectors != nil {
		if err := a.vectors.Close(ctx); err != nil {
			g.Log().Warningf(ctx, "close vector store: %v", err)
		}
	}
}

// bootstrap 按依赖顺序初始化：配置 -> 数据库 -> 存储 -> 模型 -> 检索 -> 工具 -> 服务
func bootstrap(ctx context.Context) (*App, error) {
	if err := config.ValidateConfiguration(ctx); err != nil {
		return nil, err
	}
	if err := dao.InitDB(); err != nil {
		return nil, err
	}

	ragConf := config.LoadRAGConfig(ctx)
	agentConf := config.LoadAgentConfig(ctx)
	toolsConf := config.LoadToolsConfig(ctx)

	// 存储
	embedder, err := common.NewEmbeddingClient(ctx, config.LoadEmbeddingConfig(ctx))
	if err != nil {
		return nil, err
	}
	vectors, err := vector_store.NewStore(ctx, ragConf)
	if err != nil {
		return nil, err
	}
	app := &App{Usage: dao.Usage, vectors: vectors}

	var ft fulltext.Store
	if ragConf.EnableElasticsearch {
		es, err := fulltext.NewESStore(fulltext.Config{
			Hosts:    ragConf.ElasticsearchHosts,
			Username: ragConf.ElasticsearchUser,
			Password: ragConf.ElasticsearchPassword,
			Analyzer: ragConf.Analyzer,
		})
		if err != nil {
			return nil, err
		}
		ft = es
	}
	chunks := chunkstore.New(vectors, ft, embedder)

	// 模型
	models := model.NewRegistry(nil)
	slots := make(map[string]*config.ModelConfig)
	for _, slot := range []string{config.ModelConversation, config.ModelToolCall, config.ModelReasoning, config.ModelVision} {
		slots[slot] = config.LoadModelConfig(ctx, slot)
	}
	if err = models.LoadSlots(ctx, slots); err != nil {
		return nil, err
	}
	reloadLLMs(ctx, models)
	if interval := g.Cfg().MustGet(ctx, "agent.llm_reload_interval", "5m").Duration(); interval > 0 {
		gtimer.AddSingleton(ctx, interval, func(ctx context.Context) {
			reloadLLMs(ctx, models)
		})
	}
	conversation, err := models.Slot(config.ModelConversation)
	if err != nil {
		return nil, err
	}

	// 检索
	var rr retriever.Reranker
	if reranker, err := common.NewReranker(config.LoadModelConfig(ctx, config.ModelRerank)); err != nil {
		g.Log().Warningf(ctx, "rerank disabled: %v", err)
	} else {
		rr = reranker
	}
	app.Retriever = retriever.New(chunks.Searchers(), rewriter.New(conversation.Model, conversation.ModelName), rr, retriever.Config{
		TopK:          ragConf.TopK,
		MinScore:      ragConf.MinScore,
		SearchTopK:    ragConf.SearchTopK,
		BackendTopN:   ragConf.BackendTopN,
		Concurrency:   ragConf.RetrievalConcurrency,
		EnableRewrite: ragConf.EnableRewrite,
	})

	// 解析与入库
	var opts []parser.Option
	if ragConf.EnableSummary {
		opts = append(opts, parser.WithSummarizer(parser.NewSummarizer(conversation.Model, ragConf.SummaryConcurrency)))
	}
	if vision := config.LoadModelConfig(ctx, config.ModelVision); vision.Configured() {
		opts = append(opts, parser.WithImageToText(parser.NewImageDescriber(vision.APIKey, vision.BaseURL, vision.ModelName)))
	}
	docParser, err := parser.New(ctx, parser.Config{
		ChunkSize:   ragConf.ChunkSize,
		OverlapSize: ragConf.OverlapSize,
		SofficePath: ragConf.SofficePath,
	}, opts...)
	if err != nil {
		return nil, err
	}
	stager, err := file_store.NewStager(ctx, file_store.LoadConfig(ctx))
	if err != nil {
		return nil, err
	}
	app.Knowledge = knowledge.NewService(dao.KnowledgeBase, dao.KnowledgeFile, stager, docParser, chunks)

	// 工具
	exec := agent.NewExecutor(agentConf)
	app.mcp = client.NewMultiServerClient(nil)
	tools := agent_tools.NewRegistry(app.mcp, dao.MCPUserConfig)
	tools.Register(ctx, plugins.New(toolsConf).All()...)
	tools.Register(ctx,
		knowledge_retrieval.NewTool(app.Retriever),
		file_export.NewTool(file_export.NewExporter(toolsConf.ExportDir)),
	)
	tools.SetSubAgentBuilder(exec.SubAgentBuilder(func(context.Context) (*model.Entry, error) {
		return models.Slot(config.ModelToolCall)
	}))
	g.Log().Infof(ctx, "Local tools registered: %v", tools.Names())

	// 对话
	locker, err := turnLocker(ctx, agentConf.TurnTimeout)
	if err != nil {
		return nil, err
	}
	app.Chat = chat.NewService(chat.Deps{
		Agents:     dao.Agent,
		Dialogs:    dao.Dialog,
		ToolDefs:   dao.ToolDef,
		MCPServers: dao.MCPServer,
		Knowledge:  dao.KnowledgeBase,
		Entries:    dao.History,
		History:    history.NewManager(dao.History, chunks, app.Retriever, agentConf.HistoryTopK),
		Retriever:  app.Retriever,
		Models:     models,
		Tools:      tools,
		Prober:     app.mcp,
		Locker:     locker,
		Usage:      dao.Usage,
		Executor:   exec,
		Conf:       agentConf,
	})
	return app, nil
}

// reloadLLMs 数据库中启用的模型覆盖进注册表
func reloadLLMs(ctx context.Context, models *model.Registry) {
	rows, err := dao.LLM.ListEnabled(ctx)
	if err != nil {
		g.Log().Errorf(ctx, "load llm table: %v", err)
		return
	}
	models.Reload(ctx, lo.Map(rows, func(row *gormModel.LLM, _ int) model.LLMSpec {
		return model.LLMSpec{
			LLMID: row.LLMID,
			ModelConfig: config.ModelConfig{
				ModelName: row.ModelName,
				APIKey:    row.APIKey,
				BaseURL:   row.BaseURL,
				Provider:  row.Provider,
			},
		}
	}))
}

// turnLocker 配置了 redis 时跨进程互斥，否则退回进程内锁
func turnLocker(ctx context.Context, ttl time.Duration) (cache.TurnLocker, error) {
	conf := cache.LoadRedisConfig(ctx)
	if conf.Address == "" {
		return cache.NewMemoryTurnLocker(), nil
	}
	rdb, err := cache.NewRedisClient(ctx, conf)
	if err != nil {
		return nil, err
	}
	return cache.NewRedisTurnLocker(rdb, ttl), nil
}
