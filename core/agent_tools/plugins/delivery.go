package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/Malowking/agentchat/core/agent_tools"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
	"github.com/gogf/gf/v2/frame/g"
)

type expressResp struct {
	Code int    `json:"code"`
	Desc string `json:"desc"`
	Data struct {
		TypeName string `json:"typename"`
		List     []struct {
			Time   string `json:"time"`
			Status string `json:"status"`
		} `json:"list"`
	} `json:"data"`
}

// Delivery 阿里云市场快递物流查询
func (p *Plugins) Delivery() agent_tools.Tool {
	return agent_tools.NewLocalTool(NameDelivery, "根据用户提供的快递号码查询快递物流信息",
		map[string]*schema.ParameterInfo{
			"delivery_number": {Type: schema.String, Desc: "用户提供的快递号码", Required: true},
		},
		p.queryDelivery)
}

func (p *Plugins) queryDelivery(ctx context.Context, args map[string]any) (string, error) {
	number := strings.TrimSpace(agent_tools.StringArg(args, "delivery_number"))
	if number == "" {
		return "", errors.New(errors.ErrInvalidParameter, "delivery: delivery_number 不能为空")
	}

	c := p.httpClient()
	c.SetHeader("Authorization", "APPCODE "+p.conf.Delivery.APIKey)
	resp, err := c.Get(ctx, p.conf.Delivery.Endpoint, g.Map{
		"number": number,
		"mobile": "mobile",
		"type":   "type",
	})
	raw, err := readOK(ctx, NameDelivery, resp, err)
	if err != nil {
		return "", err
	}

	var out expressResp
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return "", errors.Wrapf(err, errors.ErrToolFailed, "delivery: 响应解析失败")
	}
	if len(out.Data.List) == 0 {
		if out.Desc != "" {
			return fmt.Sprintf("未查询到单号 %s 的物流信息：%s", number, out.Desc), nil
		}
		return fmt.Sprintf("未查询到单号 %s 的物流信息", number), nil
	}

	// 接口按时间倒序返回，输出时由早到晚
	var b strings.Builder
	fmt.Fprintf(&b, "您的%s单号为%s的信息如下:\n", out.Data.TypeName, number)
	for i := len(out.Data.List) - 1; i >= 0; i-- {
		item := out.Data.List[i]
		fmt.Fprintf(&b, "时间为%s, 快递信息是: %s\n", item.Time, item.Status)
	}
	return strings.TrimSpace(b.String()), nil
}
