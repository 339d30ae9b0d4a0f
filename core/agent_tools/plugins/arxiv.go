package plugins

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/Malowking/agentchat/core/agent_tools"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/cloudwego/eino/schema"
	"github.com/gogf/gf/v2/frame/g"
)

type arxivFeed struct {
	Entries []struct {
		ID        string `xml:"id"`
		Title     string `xml:"title"`
		Summary   string `xml:"summary"`
		Published string `xml:"published"`
		Authors   []struct {
			Name string `xml:"name"`
		} `xml:"author"`
	} `xml:"entry"`
}

// Arxiv 论文检索
func (p *Plugins) Arxiv() agent_tools.Tool {
	return agent_tools.NewLocalTool(NameArxiv, "在 arXiv 上搜索与问题相关的论文，返回标题、作者、摘要和链接",
		map[string]*schema.ParameterInfo{
			"query":       {Type: schema.String, Desc: "论文检索关键词，建议使用英文", Required: true},
			"max_results": {Type: schema.Integer, Desc: "返回论文数量，默认3"},
		},
		p.searchArxiv)
}

func (p *Plugins) searchArxiv(ctx context.Context, args map[string]any) (string, error) {
	query := agent_tools.StringArg(args, "query")
	if query == "" {
		return "", errors.New(errors.ErrInvalidParameter, "arxiv: query 不能为空")
	}
	resp, err := p.httpClient().Get(ctx, p.conf.Arxiv.Endpoint, g.Map{
		"search_query": "all:" + query,
		"start":        0,
		"max_results":  agent_tools.IntArg(args, "max_results", 3),
	})
	raw, err := readOK(ctx, NameArxiv, resp, err)
	if err != nil {
		return "", err
	}

	var feed arxivFeed
	if err := xml.Unmarshal(raw, &feed); err != nil {
		return "", errors.Wrapf(err, errors.ErrToolFailed, "arxiv: 响应解析失败")
	}
	if len(feed.Entries) == 0 {
		return "没有找到相关论文", nil
	}

	var b strings.Builder
	for i, e := range feed.Entries {
		authors := make([]string, 0, len(e.Authors))
		for _, a := range e.Authors {
			authors = append(authors, a.Name)
		}
		published := e.Published
		if len(published) >= 10 {
			published = published[:10]
		}
		fmt.Fprintf(&b, "%d. %s\n作者: %s\n发布时间: %s\n链接: %s\n摘要: %s\n\n",
			i+1, oneLine(e.Title), strings.Join(authors, ", "), published, strings.TrimSpace(e.ID), oneLine(e.Summary))
	}
	return strings.TrimSpace(b.String()), nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
