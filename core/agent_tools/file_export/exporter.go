package file_export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Malowking/agentchat/core/errors"
	"github.com/bytedance/sonic"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/gogf/gf/v2/os/gfile"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// Format 导出文件格式
type Format string

const (
	FormatCSV      Format = "csv"
	FormatExcel    Format = "xlsx"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
)

// SupportedFormats 支持的格式
var SupportedFormats = []Format{FormatCSV, FormatExcel, FormatMarkdown, FormatText, FormatJSON}

// Table 待导出的二维表
type Table struct {
	Title   string
	Columns []string
	Rows    [][]any
}

// Result 导出结果
type Result struct {
	Path     string // 本地路径
	URL      string // 相对下载地址
	Filename string
	Size     int64
	Rows     int
}

// Exporter 把表格写成文件
type Exporter struct {
	baseDir string
}

// NewExporter baseDir 为空时使用 upload
func NewExporter(baseDir string) *Exporter {
	if baseDir == "" {
		baseDir = "upload"
	}
	return &Exporter{baseDir: baseDir}
}

// Export 写入 <baseDir>/export/<uuid>.<ext>
func (e *Exporter) Export(ctx context.Context, format Format, table *Table) (*Result, error) {
	if err := validate(table); err != nil {
		return nil, err
	}

	var (
		content []byte
		err     error
	)
	switch format {
	case FormatCSV:
		content, err = renderCSV(table)
	case FormatExcel:
		content, err = renderExcel(table)
	case FormatJSON:
		content, err = renderJSON(table)
	case FormatMarkdown:
		content = renderMarkdown(table)
	case FormatText:
		content = renderText(table)
	default:
		return nil, errors.Newf(errors.ErrInvalidParameter, "unsupported export format: %s", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrToolFailed, "render %s failed", format)
	}

	dir := filepath.Join(e.baseDir, "export")
	if !gfile.Exists(dir) {
		if err := gfile.Mkdir(dir); err != nil {
			return nil, errors.Wrapf(err, errors.ErrToolFailed, "failed to create directory %s", dir)
		}
	}
	name := strings.ReplaceAll(uuid.New().String(), "-", "") + "." + string(format)
	path := filepath.Join(dir, name)
	if err := gfile.PutBytes(path, content); err != nil {
		return nil, errors.Wrapf(err, errors.ErrToolFailed, "failed to write %s", path)
	}
	g.Log().Infof(ctx, "Export completed: %s, size: %d bytes, rows: %d", path, len(content), len(table.Rows))

	return &Result{
		Path:     path,
		URL:      "/" + filepath.ToSlash(filepath.Join(filepath.Base(e.baseDir), "export", name)),
		Filename: name,
		Size:     int64(len(content)),
		Rows:     len(table.Rows),
	}, nil
}

func validate(t *Table) error {
	if t == nil || len(t.Columns) == 0 {
		return errors.New(errors.ErrInvalidParameter, "columns are required")
	}
	for i, row := range t.Rows {
		if len(row) > len(t.Columns) {
			return errors.Newf(errors.ErrInvalidParameter, "row %d has %d cells, only %d columns", i+1, len(row), len(t.Columns))
		}
	}
	return nil
}

func cell(row []any, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	return fmt.Sprint(row[i])
}

func renderCSV(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write([]byte{0xEF, 0xBB, 0xBF}) // UTF-8 BOM，兼容 Excel
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns); err != nil {
		return nil, err
	}
	for _, row := range t.Rows {
		record := make([]string, len(t.Columns))
		for i := range t.Columns {
			record[i] = cell(row, i)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func renderExcel(t *Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"

	row := 1
	if t.Title != "" {
		if err := f.SetCellValue(sheet, "A1", t.Title); err != nil {
			return nil, err
		}
		if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}); err == nil {
			_ = f.SetCellStyle(sheet, "A1", "A1", style)
		}
		row++
	}

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := writeRow(f, sheet, row, header); err != nil {
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err == nil {
		first, _ := excelize.CoordinatesToCellName(1, row)
		last, _ := excelize.CoordinatesToCellName(len(t.Columns), row)
		_ = f.SetCellStyle(sheet, first, last, headerStyle)
	}
	row++

	for _, r := range t.Rows {
		if err := writeRow(f, sheet, row, r); err != nil {
			return nil, err
		}
		row++
	}

	lastCol, err := excelize.ColumnNumberToName(len(t.Columns))
	if err != nil {
		return nil, err
	}
	_ = f.SetColWidth(sheet, "A", lastCol, 15)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, start, &values)
}

func renderJSON(t *Table) ([]byte, error) {
	records := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			if i < len(row) {
				rec[c] = row[i]
			}
		}
		records = append(records, rec)
	}
	out := map[string]any{"columns": t.Columns, "data": records, "count": len(records)}
	if t.Title != "" {
		out["title"] = t.Title
	}
	return sonic.ConfigStd.MarshalIndent(out, "", "  ")
}

func renderMarkdown(t *Table) []byte {
	var b strings.Builder
	if t.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", t.Title)
	}
	b.WriteString("| " + strings.Join(t.Columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(t.Columns)) + "\n")
	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i := range t.Columns {
			cells[i] = strings.ReplaceAll(cell(row, i), "|", "\\|")
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	fmt.Fprintf(&b, "\n总计: %d 行\n", len(t.Rows))
	return []byte(b.String())
}

func renderText(t *Table) []byte {
	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = len([]rune(c))
	}
	for _, row := range t.Rows {
		for i := range t.Columns {
			if n := len([]rune(cell(row, i))); n > widths[i] {
				widths[i] = n
			}
		}
	}
	pad := func(s string, w int) string {
		return s + strings.Repeat(" ", w-len([]rune(s)))
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString(t.Title + "\n" + strings.Repeat("=", len([]rune(t.Title))) + "\n\n")
	}
	for i, c := range t.Columns {
		b.WriteString(pad(c, widths[i]) + "  ")
	}
	b.WriteString("\n")
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w) + "  ")
	}
	b.WriteString("\n")
	for _, row := range t.Rows {
		for i := range t.Columns {
			b.WriteString(pad(cell(row, i), widths[i]) + "  ")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n总计: %d 行\n", len(t.Rows))
	return []byte(b.String())
}
