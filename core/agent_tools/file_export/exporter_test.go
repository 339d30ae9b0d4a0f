package file_export

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/Malowking/agentchat/core/errors"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleTable() *Table {
	return &Table{
		Title:   "城市天气",
		Columns: []string{"城市", "温度"},
		Rows:    [][]any{{"北京", 21}, {"上海", "25"}},
	}
}

func TestExportFormats(t *testing.T) {
	ctx := context.Background()
	e := NewExporter(t.TempDir())

	t.Run("csv带BOM", func(t *testing.T) {
		res, err := e.Export(ctx, FormatCSV, sampleTable())
		require.NoError(t, err)
		raw, err := os.ReadFile(res.Path)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, raw[:3])
		assert.Contains(t, string(raw), "北京,21")
		assert.Equal(t, 2, res.Rows)
	})

	t.Run("markdown", func(t *testing.T) {
		res, err := e.Export(ctx, FormatMarkdown, sampleTable())
		require.NoError(t, err)
		raw, _ := os.ReadFile(res.Path)
		assert.True(t, strings.HasPrefix(string(raw), "# 城市天气"))
		assert.Contains(t, string(raw), "| 上海 | 25 |")
	})

	t.Run("json", func(t *testing.T) {
		res, err := e.Export(ctx, FormatJSON, sampleTable())
		require.NoError(t, err)
		raw, _ := os.ReadFile(res.Path)
		var out struct {
			Count int              `json:"count"`
			Data  []map[string]any `json:"data"`
		}
		require.NoError(t, sonic.Unmarshal(raw, &out))
		assert.Equal(t, 2, out.Count)
		assert.Equal(t, "北京", out.Data[0]["城市"])
	})

	t.Run("txt对齐", func(t *testing.T) {
		res, err := e.Export(ctx, FormatText, sampleTable())
		require.NoError(t, err)
		raw, _ := os.ReadFile(res.Path)
		assert.Contains(t, string(raw), "总计: 2 行")
	})

	t.Run("不支持的格式", func(t *testing.T) {
		_, err := e.Export(ctx, Format("pdf"), sampleTable())
		assert.True(t, errors.HasCode(err, errors.ErrInvalidParameter))
	})

	t.Run("缺少列名", func(t *testing.T) {
		_, err := e.Export(ctx, FormatCSV, &Table{})
		assert.True(t, errors.HasCode(err, errors.ErrInvalidParameter))
	})
}

// 超过26列时列名为 AA、AB...
func TestExportExcelWithManyColumns(t *testing.T) {
	e := NewExporter(t.TempDir())
	table := &Table{Title: "Test with 30 columns"}
	row := make([]any, 30)
	for i := 0; i < 30; i++ {
		name, err := excelize.ColumnNumberToName(i + 1)
		require.NoError(t, err)
		table.Columns = append(table.Columns, name)
		row[i] = i
	}
	table.Rows = [][]any{row}

	res, err := e.Export(context.Background(), FormatExcel, table)
	require.NoError(t, err)

	f, err := excelize.OpenFile(res.Path)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue("Sheet1", "AD2")
	require.NoError(t, err)
	assert.Equal(t, "AD", v)
	v, err = f.GetCellValue("Sheet1", "AD3")
	require.NoError(t, err)
	assert.Equal(t, "29", v)
}

func TestExportTool(t *testing.T) {
	tool := NewTool(NewExporter(t.TempDir()))
	out, err := tool.InvokableRun(context.Background(),
		`{"format":"csv","columns":["a","b"],"rows":[["1","2"],["3"]]}`)
	require.NoError(t, err)
	assert.Contains(t, out, "2 行")

	_, err = tool.InvokableRun(context.Background(), `{"format":"csv","columns":"a","rows":[]}`)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidParameter))
}
