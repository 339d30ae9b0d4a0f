package plugins

import (
	"context"
	"net/http"
	"strings"

	"github.com/Malowking/agentchat/core/agent_tools"
	"github.com/Malowking/agentchat/core/common"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/cloudwego/eino-ext/components/document/loader/url"
	"github.com/cloudwego/eino-ext/components/document/parser/html"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
)

// 网页正文按段输出，超过上限截断
const (
	crawlSegmentRunes = 1000
	crawlMaxRunes     = 20000
)

// CrawlWeb 抓取网页正文，边解析边分段输出
func (p *Plugins) CrawlWeb() agent_tools.Tool {
	return agent_tools.NewStreamingLocalTool(NameCrawlWeb, "帮助用户爬取网页的内容信息",
		map[string]*schema.ParameterInfo{
			"web_url": {Type: schema.String, Desc: "想要爬取内容的网页地址", Required: true},
		},
		p.crawl)
}

func (p *Plugins) crawl(ctx context.Context, args map[string]any, send func(string)) error {
	pageURL := strings.TrimSpace(agent_tools.StringArg(args, "web_url"))
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return errors.Newf(errors.ErrInvalidParameter, "crawl_web: 不支持的网址 %q", pageURL)
	}

	htmlParser, err := html.NewParser(ctx, &html.Config{})
	if err != nil {
		return errors.Wrapf(err, errors.ErrToolFailed, "crawl_web: 初始化解析器失败")
	}
	loader, err := url.NewLoader(ctx, &url.LoaderConfig{
		Parser: htmlParser,
		Client: &http.Client{Timeout: p.conf.Timeout},
	})
	if err != nil {
		return errors.Wrapf(err, errors.ErrToolFailed, "crawl_web: 初始化加载器失败")
	}
	docs, err := loader.Load(ctx, document.Source{URI: pageURL})
	if err != nil {
		return errors.Wrapf(err, errors.ErrToolFailed, "crawl_web: 抓取 %s 失败", pageURL)
	}

	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.Content)
	}
	text := []rune(common.CleanParsedText(strings.Join(parts, "\n")))
	if len(text) == 0 {
		send("网页没有可读取的正文")
		return nil
	}
	truncated := len(text) > crawlMaxRunes
	if truncated {
		text = text[:crawlMaxRunes]
	}
	for start := 0; start < len(text); start += crawlSegmentRunes {
		end := min(start+crawlSegmentRunes, len(text))
		send(string(text[start:end]))
	}
	if truncated {
		send("\n（正文过长，已截断）")
	}
	return nil
}
