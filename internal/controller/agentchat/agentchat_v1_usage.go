package agentchat

import (
	"context"
	"time"

	v1 "github.com/Malowking/agentchat/api/agentchat/v1"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/Malowking/agentchat/internal/dao"
	"github.com/gogf/gf/v2/os/gtime"
	"github.com/samber/lo"
)

// defaultUsageWindow 未指定起点时统计最近 30 天
const defaultUsageWindow = 30 * 24 * time.Hour

func (c *ControllerV1) Usage(ctx context.Context, req *v1.UsageReq) (res *v1.UsageRes, err error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	from, to, err := usageWindow(req.From, req.To, time.Now())
	if err != nil {
		return nil, err
	}
	stats, err := c.usage.Aggregate(ctx, uid, from, to)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrDatabaseQuery, "aggregate usage")
	}
	return &v1.UsageRes{Stats: lo.Map(stats, func(s *dao.UsageStat, _ int) *v1.UsageStat {
		return &v1.UsageStat{
			ModelName:    s.ModelName,
			AgentName:    s.AgentName,
			Calls:        s.Calls,
			InputTokens:  s.InputTokens,
			OutputTokens: s.OutputTokens,
		}
	})}, nil
}

// usageWindow 解析 [from, to)
func usageWindow(fromStr, toStr string, now time.Time) (time.Time, time.Time, error) {
	from, to := now.Add(-defaultUsageWindow), now
	if fromStr != "" {
		t, err := gtime.StrToTime(fromStr)
		if err != nil {
			return from, to, errors.Newf(errors.ErrInvalidParameter, "invalid from: %s", fromStr)
		}
		from = t.Time
	}
	if toStr != "" {
		t, err := gtime.StrToTime(toStr)
		if err != nil {
			return from, to, errors.Newf(errors.ErrInvalidParameter, "invalid to: %s", toStr)
		}
		to = t.Time
	}
	if !from.Before(to) {
		return from, to, errors.New(errors.ErrInvalidParameter, "from must be before to")
	}
	return from, to, nil
}
