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

type amapForecastResp struct {
	Status    string `json:"status"`
	Info      string `json:"info"`
	Forecasts []struct {
		City  string `json:"city"`
		Casts []struct {
			Date         string `json:"date"`
			DayWeather   string `json:"dayweather"`
			NightWeather string `json:"nightweather"`
			DayTemp      string `json:"daytemp"`
			NightTemp    string `json:"nighttemp"`
			DayWind      string `json:"daywind"`
			DayPower     string `json:"daypower"`
		} `json:"casts"`
	} `json:"forecasts"`
}

// Weather 高德天气预报
func (p *Plugins) Weather() agent_tools.Tool {
	return agent_tools.NewLocalTool(NameWeather, "帮助用户查询指定城市的天气预报",
		map[string]*schema.ParameterInfo{
			"location": {Type: schema.String, Desc: "想要查询天气的城市名称或行政区编码，例如：北京", Required: true},
		},
		p.queryWeather)
}

func (p *Plugins) queryWeather(ctx context.Context, args map[string]any) (string, error) {
	location := agent_tools.StringArg(args, "location")
	if location == "" {
		return "", errors.New(errors.ErrInvalidParameter, "weather: location 不能为空")
	}

	resp, err := p.httpClient().Get(ctx, p.conf.Weather.Endpoint, g.Map{
		"key":        p.conf.Weather.APIKey,
		"city":       location,
		"extensions": "all",
	})
	body, err := readOK(ctx, NameWeather, resp, err)
	if err != nil {
		return "", err
	}

	var out amapForecastResp
	if err := sonic.Unmarshal(body, &out); err != nil {
		return "", errors.Wrapf(err, errors.ErrToolFailed, "weather: 响应解析失败")
	}
	if out.Status != "1" {
		return "", errors.Newf(errors.ErrToolFailed, "weather: %s", out.Info)
	}
	if len(out.Forecasts) == 0 || len(out.Forecasts[0].Casts) == 0 {
		return fmt.Sprintf("未查询到 %s 的天气信息", location), nil
	}

	fc := out.Forecasts[0]
	var b strings.Builder
	for i, c := range fc.Casts {
		line := fmt.Sprintf("%s：白天%s %s℃，夜间%s %s℃，%s风%s级",
			c.Date, c.DayWeather, c.DayTemp, c.NightWeather, c.NightTemp, c.DayWind, c.DayPower)
		if i == 0 {
			fmt.Fprintf(&b, "%s今天的天气 %s\n", fc.City, line)
			if len(fc.Casts) > 1 {
				b.WriteString("未来几天：\n")
			}
			continue
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimSpace(b.String()), nil
}
