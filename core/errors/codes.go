package errors

// ErrCode 业务错误码类型
type ErrCode int

const (
	// 通用错误 1000-1999
	ErrInvalidParameter ErrCode = 1001 // 参数错误
	ErrPermissionDenied ErrCode = 1002 // 无权访问
	ErrInternalError    ErrCode = 1003 // 内部错误
	ErrNotFound         ErrCode = 1004 // 资源未找到
	ErrAlreadyExists    ErrCode = 1005 // 资源已存在
	ErrOperationFailed  ErrCode = 1006 // 操作失败
	ErrConfigInvalid    ErrCode = 1010 // 配置缺失或模型端点不可达

	// 模型相关 2000-2999
	ErrModelNotFound      ErrCode = 2001 // 模型未找到
	ErrModelConfigInvalid ErrCode = 2002 // 模型配置无效
	ErrEmbeddingFailed    ErrCode = 2003 // Embedding失败
	ErrLLMCallFailed      ErrCode = 2004 // LLM调用失败
	ErrModelNotConfigured ErrCode = 2005 // 模型未配置
	ErrRerankFailed       ErrCode = 2006 // Rerank失败
	ErrStreamingFailed    ErrCode = 2007 // 流式响应失败

	// 知识库相关 3000-3999
	ErrKBNotFound      ErrCode = 3001 // 知识库未找到
	ErrKBAlreadyExists ErrCode = 3002 // 知识库已存在
	ErrKBCreateFailed  ErrCode = 3003 // 知识库创建失败
	ErrKBDeleteFailed  ErrCode = 3004 // 知识库删除失败
	ErrKBInvalidID     ErrCode = 3005 // 知识库ID不合法

	// 文档相关 4000-4999
	ErrDocumentNotFound    ErrCode = 4001 // 文档未找到
	ErrDocumentParseFailed ErrCode = 4002 // 文档解析失败
	ErrFileDownloadFailed  ErrCode = 4005 // 文件下载失败
	ErrFileReadFailed      ErrCode = 4007 // 文件读取失败
	ErrIndexingFailed      ErrCode = 4009 // 索引失败
	ErrUnsupportedFormat   ErrCode = 4010 // 不支持的文件格式

	// 向量数据库 5000-5099
	ErrVectorStoreInit ErrCode = 5001 // 向量库初始化失败
	ErrVectorSearch    ErrCode = 5002 // 向量搜索失败
	ErrVectorInsert    ErrCode = 5003 // 向量插入失败
	ErrVectorDelete    ErrCode = 5004 // 向量删除失败

	// 全文检索 5100-5199
	ErrFullTextInit   ErrCode = 5101 // 全文索引初始化失败
	ErrFullTextSearch ErrCode = 5102 // 全文搜索失败
	ErrFullTextIndex  ErrCode = 5103 // 全文写入失败
	ErrFullTextDelete ErrCode = 5104 // 全文删除失败

	// 数据库相关 6000-6999
	ErrDatabaseQuery  ErrCode = 6001 // 数据库查询失败
	ErrDatabaseInsert ErrCode = 6002 // 数据库插入失败
	ErrDatabaseUpdate ErrCode = 6003 // 数据库更新失败
	ErrDatabaseDelete ErrCode = 6004 // 数据库删除失败
	ErrDatabaseInit   ErrCode = 6005 // 数据库初始化失败

	// 对话相关 7000-7999
	ErrDialogNotFound  ErrCode = 7001 // 对话未找到
	ErrChatFailed      ErrCode = 7003 // 聊天失败
	ErrCancelled       ErrCode = 7004 // 客户端断开或超时
	ErrAgentResolve    ErrCode = 7005 // 智能体引用无法解析
	ErrDialogBusy      ErrCode = 7006 // 对话正在进行中
	ErrMaxStepsReached ErrCode = 7007 // 超过最大步数

	// 工具 / MCP 8000-8999
	ErrMCPConnectFailed ErrCode = 8001 // MCP连接失败
	ErrMCPCallFailed    ErrCode = 8002 // MCP调用失败
	ErrToolFailed       ErrCode = 8003 // 工具执行失败
	ErrToolNotFound     ErrCode = 8004 // 工具未找到

	// 检索相关 9000-9999
	ErrRetrievalFailed ErrCode = 9001 // 检索失败
	ErrRewriteFailed   ErrCode = 9002 // 查询重写失败
)

// HTTPStatusCode 返回错误码对应的HTTP状态码
func (e ErrCode) HTTPStatusCode() int {
	switch e {
	case ErrInvalidParameter, ErrKBInvalidID, ErrUnsupportedFormat:
		return 400
	case ErrPermissionDenied:
		return 403
	case ErrNotFound, ErrModelNotFound, ErrKBNotFound, ErrDocumentNotFound, ErrDialogNotFound, ErrToolNotFound:
		return 404
	case ErrAlreadyExists, ErrKBAlreadyExists, ErrDialogBusy:
		return 409
	case ErrCancelled:
		return 499
	case ErrConfigInvalid, ErrMCPConnectFailed:
		return 503
	default:
		return 500
	}
}

// Retryable 仅幂等读取类错误允许重试
func (e ErrCode) Retryable() bool {
	switch e {
	case ErrEmbeddingFailed, ErrLLMCallFailed, ErrRerankFailed:
		return true
	default:
		return false
	}
}
