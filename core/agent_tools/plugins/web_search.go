package plugins

import (
	"context"
	"fmt"

	"github.com/Malowking/agentchat/core/agent_tools"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
	"github.com/gogf/gf/v2/frame/g"
)

type tavilyResp struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// WebSearch Tavily 联网搜索，每条结果作为一段输出
func (p *Plugins) WebSearch() agent_tools.Tool {
	return agent_tools.NewStreamingLocalTool(NameWebSearch, "根据用户的问题以及查询参数进行联网搜索",
		map[string]*schema.ParameterInfo{
			"query":       {Type: schema.String, Desc: "用户想要搜索的问题", Required: true},
			"topic":       {Type: schema.String, Desc: "搜索主题领域，general为通用，news为新闻，finance为财经", Enum: []string{"general", "news", "finance"}},
			"max_results": {Type: schema.Integer, Desc: "最大返回结果数量"},
			"time_range":  {Type: schema.String, Desc: "时间范围", Enum: []string{"day", "week", "month", "year"}},
		},
		p.search)
}

func (p *Plugins) search(ctx context.Context, args map[string]any, send func(string)) error {
	query := agent_tools.StringArg(args, "query")
	if query == "" {
		return errors.New(errors.ErrInvalidParameter, "web_search: query 不能为空")
	}
	body := g.Map{
		"api_key":     p.conf.Tavily.APIKey,
		"query":       query,
		"max_results": agent_tools.IntArg(args, "max_results", 5),
		"topic":       "general",
	}
	if topic := agent_tools.StringArg(args, "topic"); topic != "" {
		body["topic"] = topic
	}
	if tr := agent_tools.StringArg(args, "time_range"); tr != "" {
		body["time_range"] = tr
	}

	c := p.httpClient().ContentJson()
	c.SetHeader("Authorization", "Bearer "+p.conf.Tavily.APIKey)
	resp, err := c.Post(ctx, p.conf.Tavily.Endpoint, body)
	raw, err := readOK(ctx, NameWebSearch, resp, err)
	if err != nil {
		return err
	}

	var out tavilyResp
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return errors.Wrapf(err, errors.ErrToolFailed, "web_search: 响应解析失败")
	}
	if len(out.Results) == 0 {
		send("没有搜索到相关结果")
		return nil
	}
	for i, r := range out.Results {
		if i > 0 {
			send("\n\n")
		}
		send(fmt.Sprintf("网址:%s, 内容: %s", r.URL, r.Content))
	}
	return nil
}
