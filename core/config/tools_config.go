package config

import (
	"context"
	"time"

	"github.com/gogf/gf/v2/frame/g"
)

// 本地工具默认端点
const (
	DefaultWeatherEndpoint = "https://restapi.amap.com/v3/weather/weatherInfo"
	DefaultTavilyEndpoint  = "https://api.tavily.com/search"
	DefaultArxivEndpoint   = "http://export.arxiv.org/api/query"

	DefaultDeliveryEndpoint   = "https://qyexpress.market.alicloudapi.com/composite/queryexpress"
	DefaultText2ImageEndpoint = "https://dashscope.aliyuncs.com/api/v1"
	DefaultText2ImageModel    = "wanx2.1-t2i-turbo"
	DefaultSMTPHost           = "smtp.qq.com"
	DefaultSMTPPort           = 465
)

// EndpointConfig 第三方接口端点
type EndpointConfig struct {
	Endpoint string
	APIKey   string
}

// ImageConfig 文生图接口，轮询异步任务直到完成
type ImageConfig struct {
	EndpointConfig
	Model        string
	Size         string
	PollInterval time.Duration
}

// EmailConfig SMTP 发件账号
type EmailConfig struct {
	Host       string
	Port       int
	Username   string // 发件地址
	Password   string // 密码或授权码
	SenderName string
}

// ToolsConfig tools.* 配置
type ToolsConfig struct {
	Weather    EndpointConfig
	Tavily     EndpointConfig
	Arxiv      EndpointConfig
	Delivery   EndpointConfig
	Text2Image ImageConfig
	Email      EmailConfig

	ExportDir string        // file_export 工具的输出目录
	Timeout   time.Duration // 本地工具单次 HTTP 调用超时
}

// LoadToolsConfig 读取 tools.*
func LoadToolsConfig(ctx context.Context) *ToolsConfig {
	c := &ToolsConfig{
		Weather: EndpointConfig{
			Endpoint: g.Cfg().MustGet(ctx, "tools.weather.endpoint", DefaultWeatherEndpoint).String(),
			APIKey:   g.Cfg().MustGet(ctx, "tools.weather.api_key", "").String(),
		},
		Tavily: EndpointConfig{
			Endpoint: g.Cfg().MustGet(ctx, "tools.tavily.endpoint", DefaultTavilyEndpoint).String(),
			APIKey:   g.Cfg().MustGet(ctx, "tools.tavily.api_key", "").String(),
		},
		Arxiv: EndpointConfig{
			Endpoint: g.Cfg().MustGet(ctx, "tools.arxiv.endpoint", DefaultArxivEndpoint).String(),
		},
		Delivery: EndpointConfig{
			Endpoint: g.Cfg().MustGet(ctx, "tools.delivery.endpoint", DefaultDeliveryEndpoint).String(),
			APIKey:   g.Cfg().MustGet(ctx, "tools.delivery.api_key", "").String(),
		},
		Text2Image: ImageConfig{
			EndpointConfig: EndpointConfig{
				Endpoint: g.Cfg().MustGet(ctx, "tools.text2image.endpoint", DefaultText2ImageEndpoint).String(),
				APIKey:   g.Cfg().MustGet(ctx, "tools.text2image.api_key", "").String(),
			},
			Model:        g.Cfg().MustGet(ctx, "tools.text2image.model", DefaultText2ImageModel).String(),
			Size:         g.Cfg().MustGet(ctx, "tools.text2image.size", "1024*1024").String(),
			PollInterval: g.Cfg().MustGet(ctx, "tools.text2image.poll_interval", "2s").Duration(),
		},
		Email: EmailConfig{
			Host:       g.Cfg().MustGet(ctx, "tools.email.host", DefaultSMTPHost).String(),
			Port:       g.Cfg().MustGet(ctx, "tools.email.port", DefaultSMTPPort).Int(),
			Username:   g.Cfg().MustGet(ctx, "tools.email.username", "").String(),
			Password:   g.Cfg().MustGet(ctx, "tools.email.password", "").String(),
			SenderName: g.Cfg().MustGet(ctx, "tools.email.sender_name", "AI").String(),
		},
		ExportDir: g.Cfg().MustGet(ctx, "tools.export_dir", "upload").String(),
		Timeout:   g.Cfg().MustGet(ctx, "tools.timeout", "10s").Duration(),
	}
	return c.WithDefaults()
}

// WithDefaults 补全零值字段
func (c *ToolsConfig) WithDefaults() *ToolsConfig {
	if c.Weather.Endpoint == "" {
		c.Weather.Endpoint = DefaultWeatherEndpoint
	}
	if c.Tavily.Endpoint == "" {
		c.Tavily.Endpoint = DefaultTavilyEndpoint
	}
	if c.Arxiv.Endpoint == "" {
		c.Arxiv.Endpoint = DefaultArxivEndpoint
	}
	if c.Delivery.Endpoint == "" {
		c.Delivery.Endpoint = DefaultDeliveryEndpoint
	}
	if c.Text2Image.Endpoint == "" {
		c.Text2Image.Endpoint = DefaultText2ImageEndpoint
	}
	if c.Text2Image.Model == "" {
		c.Text2Image.Model = DefaultText2ImageModel
	}
	if c.Text2Image.Size == "" {
		c.Text2Image.Size = "1024*1024"
	}
	if c.Text2Image.PollInterval <= 0 {
		c.Text2Image.PollInterval = 2 * time.Second
	}
	if c.Email.Host == "" {
		c.Email.Host = DefaultSMTPHost
	}
	if c.Email.Port == 0 {
		c.Email.Port = DefaultSMTPPort
	}
	if c.Email.SenderName == "" {
		c.Email.SenderName = "AI"
	}
	if c.ExportDir == "" {
		c.ExportDir = "upload"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}
