package v1

import "github.com/gogf/gf/v2/frame/g"

type MCPProbeReq struct {
	g.Meta `path:"/v1/mcp/{id}/probe" method:"post" tags:"mcp" summary:"List tools of an MCP server and cache their names"`
	Id     string `v:"required" dc:"mcp server id"`
}

type MCPProbeRes struct {
	Tools []string `json:"tools"`
}
