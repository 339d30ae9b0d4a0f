package file_export

import (
	"context"
	"fmt"

	"github.com/Malowking/agentchat/core/agent_tools"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/cloudwego/eino/schema"
)

// ToolName 文件导出工具名
const ToolName = "file_export"

// NewTool 把模型整理好的表格导出为文件
func NewTool(e *Exporter) agent_tools.Tool {
	formats := make([]string, len(SupportedFormats))
	for i, f := range SupportedFormats {
		formats[i] = string(f)
	}
	return agent_tools.NewLocalTool(ToolName, "将表格数据导出为 csv/xlsx/md/txt/json 文件，返回文件下载地址",
		map[string]*schema.ParameterInfo{
			"format": {Type: schema.String, Desc: "导出格式", Enum: formats, Required: true},
			"title":  {Type: schema.String, Desc: "文件标题"},
			"columns": {Type: schema.Array, Desc: "列名列表", Required: true,
				ElemInfo: &schema.ParameterInfo{Type: schema.String}},
			"rows": {Type: schema.Array, Desc: "数据行，每行是与列名顺序一致的单元格数组", Required: true,
				ElemInfo: &schema.ParameterInfo{Type: schema.Array, ElemInfo: &schema.ParameterInfo{Type: schema.String}}},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			table, err := tableFromArgs(args)
			if err != nil {
				return "", err
			}
			res, err := e.Export(ctx, Format(agent_tools.StringArg(args, "format")), table)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("文件已生成：%s（%d 行，%d 字节），下载地址：%s", res.Filename, res.Rows, res.Size, res.URL), nil
		})
}

func tableFromArgs(args map[string]any) (*Table, error) {
	t := &Table{Title: agent_tools.StringArg(args, "title")}
	cols, ok := args["columns"].([]any)
	if !ok {
		return nil, errors.New(errors.ErrInvalidParameter, "file_export: columns 必须是数组")
	}
	for _, c := range cols {
		t.Columns = append(t.Columns, fmt.Sprint(c))
	}
	rows, ok := args["rows"].([]any)
	if !ok {
		return nil, errors.New(errors.ErrInvalidParameter, "file_export: rows 必须是数组")
	}
	for i, r := range rows {
		cells, ok := r.([]any)
		if !ok {
			return nil, errors.Newf(errors.ErrInvalidParameter, "file_export: 第 %d 行不是数组", i+1)
		}
		t.Rows = append(t.Rows, cells)
	}
	return t, nil
}
