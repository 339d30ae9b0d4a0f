package model

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/Malowking/agentchat/core/config"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	einoModel "github.com/cloudwego/eino/components/model"
)

// Factory 根据端点配置创建对话模型
type Factory func(ctx context.Context, conf *config.ModelConfig) (einoModel.ToolCallingChatModel, error)

// NewChatModel 默认工厂：qwen 走 DashScope 兼容模式，其余按 openai 协议
func NewChatModel(ctx context.Context, conf *config.ModelConfig) (einoModel.ToolCallingChatModel, error) {
	if !conf.Configured() {
		return nil, errors.New(errors.ErrModelNotConfigured, "model_name and base_url are required")
	}

	switch conf.GetProvider() {
	case config.ProviderQwen:
		cm, err := qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
			APIKey:     conf.GetAPIKey(),
			BaseURL:    conf.GetBaseURL(),
			Model:      conf.GetModel(),
			HTTPClient: newHTTPClient(),
		})
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrModelConfigInvalid, "failed to create qwen chat model %s", conf.GetModel())
		}
		return cm, nil
	default:
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:     conf.GetAPIKey(),
			BaseURL:    conf.GetBaseURL(),
			Model:      conf.GetModel(),
			HTTPClient: newHTTPClient(),
		})
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrModelConfigInvalid, "failed to create openai chat model %s", conf.GetModel())
		}
		return cm, nil
	}
}

// newHTTPClient 流式响应不设总超时，只限制建连和首包
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 60 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
		},
	}
}
