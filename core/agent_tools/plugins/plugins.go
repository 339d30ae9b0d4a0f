// Package plugins 本地工具适配器
package plugins

import (
	"context"
	"net/http"

	"github.com/Malowking/agentchat/core/agent_tools"
	"github.com/Malowking/agentchat/core/config"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/gogf/gf/v2/net/gclient"
)

// 本地工具名称
const (
	NameWeather     = "weather"
	NameWebSearch   = "web_search"
	NameArxiv       = "arxiv"
	NameCurrentTime = "get_current_time"
	NameDelivery    = "get_delivery_info"
	NameText2Image  = "text_to_image"
	NameEmail       = "send_email"
	NameCrawlWeb    = "crawl_web"
)

// Plugins 依赖 tools.* 配置的本地工具集合
type Plugins struct {
	conf   *config.ToolsConfig
	mailer MailSender
}

// New conf 为 nil 时使用默认端点
func New(conf *config.ToolsConfig) *Plugins {
	if conf == nil {
		conf = &config.ToolsConfig{}
	}
	conf = conf.WithDefaults()
	return &Plugins{conf: conf, mailer: &smtpSender{conf: conf.Email}}
}

// All 全部本地工具
func (p *Plugins) All() []agent_tools.Tool {
	return []agent_tools.Tool{
		p.Weather(),
		p.WebSearch(),
		p.Arxiv(),
		p.Delivery(),
		p.Text2Image(),
		p.Email(),
		p.CrawlWeb(),
		CurrentTime(),
	}
}

func (p *Plugins) httpClient() *gclient.Client {
	c := g.Client()
	c.SetTimeout(p.conf.Timeout)
	return c
}

// readOK 读取响应体，非 2xx 视为工具错误
func readOK(ctx context.Context, tool string, resp *gclient.Response, err error) ([]byte, error) {
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrToolFailed, "%s: 请求失败", tool)
	}
	defer resp.Close()
	body := resp.ReadAll()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		g.Log().Warningf(ctx, "[%s] unexpected status %d: %s", tool, resp.StatusCode, string(body))
		return nil, errors.Newf(errors.ErrToolFailed, "%s: 接口返回状态码 %d", tool, resp.StatusCode)
	}
	return body, nil
}
