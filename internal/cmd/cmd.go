package cmd

import (
	"context"

	"github.com/Malowking/agentchat/core/metrics"
	"github.com/Malowking/agentchat/internal/controller/agentchat"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/gogf/gf/v2/net/ghttp"
	"github.com/gogf/gf/v2/os/gcmd"
)

var (
	Main = gcmd.Command{
		Name:  "main",
		Usage: "main",
		Brief: "start http server",
		Func: func(ctx context.Context, parser *gcmd.Parser) (err error) {
			app, err := bootstrap(ctx)
			if err != nil {
				g.Log().Fatalf(ctx, "Bootstrap failed:\n%v", err)
			}
			defer app.Close(ctx)

			s := g.Server()
			s.BindHandler("/metrics", ghttp.WrapH(metrics.Handler()))
			s.Group("/api", func(group *ghttp.RouterGroup) {
				group.Middleware(MiddlewareHandlerResponse, ghttp.MiddlewareCORS, MiddlewareUserID)
				group.Bind(
					agentchat.NewV1(app.Chat, app.Knowledge, app.Retriever, app.Usage),
				)
			})
			s.Run()
			return nil
		},
	}
)
