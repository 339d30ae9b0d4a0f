package plugins

import (
	"context"
	"fmt"
	"time"

	"github.com/Malowking/agentchat/core/agent_tools"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/cloudwego/eino/schema"
)

const defaultTimezone = "Asia/Shanghai"

var weekdays = [...]string{"星期日", "星期一", "星期二", "星期三", "星期四", "星期五", "星期六"}

// now 测试时替换
var now = time.Now

// CurrentTime 当前时间
func CurrentTime() agent_tools.Tool {
	return agent_tools.NewLocalTool(NameCurrentTime, "获取当前的日期和时间",
		map[string]*schema.ParameterInfo{
			"timezone": {Type: schema.String, Desc: "IANA 时区名称，默认 Asia/Shanghai"},
		},
		func(_ context.Context, args map[string]any) (string, error) {
			tz := agent_tools.StringArg(args, "timezone")
			if tz == "" {
				tz = defaultTimezone
			}
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return "", errors.Newf(errors.ErrInvalidParameter, "get_current_time: 未知时区 %s", tz)
			}
			t := now().In(loc)
			return fmt.Sprintf("%s %s (%s)", t.Format("2006-01-02 15:04:05"), weekdays[t.Weekday()], tz), nil
		})
}
