package parser

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Malowking/agentchat/core/common"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/sashabaranov/go-openai"
)

// soffice 单文件转换超时
const officeConvertTimeout = 3 * time.Minute

const imagePrompt = "图中描绘的是什么景象? 要求：1.字数不超过300字。2.直接输出图片描述文本"

// officeToPDF 调用 soffice 将办公文档转为 pdf，输出写入 workDir
func officeToPDF(ctx context.Context, soffice, src, workDir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, officeConvertTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, soffice, "--headless", "--convert-to", "pdf", "--outdir", workDir, src)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, errors.ErrDocumentParseFailed, "soffice convert %s failed: %s", filepath.Base(src), strings.TrimSpace(stderr.String()))
	}

	out := filepath.Join(workDir, common.FileStem(src)+".pdf")
	if _, err := os.Stat(out); err != nil {
		return "", errors.Wrapf(err, errors.ErrDocumentParseFailed, "soffice produced no pdf for %s", filepath.Base(src))
	}
	g.Log().Infof(ctx, "converted %s to pdf", filepath.Base(src))
	return out, nil
}

// parseWith 用 eino parser 读取文件并拼接文本
func parseWith(ctx context.Context, p parser.Parser, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileReadFailed, "open %s", filepath.Base(path))
	}
	defer f.Close()

	docs, err := p.Parse(ctx, f, parser.WithURI(path))
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrDocumentParseFailed, "parse %s", filepath.Base(path))
	}
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if strings.TrimSpace(d.Content) != "" {
			parts = append(parts, d.Content)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// jsonToText 保持键顺序的缩进输出
func jsonToText(raw []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(raw), "", "  "); err != nil {
		return "", errors.Wrapf(err, errors.ErrDocumentParseFailed, "invalid json")
	}
	return buf.String(), nil
}

// csvToText 每行以 tab 连接
func csvToText(r io.Reader) (string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	var b strings.Builder
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.Wrapf(err, errors.ErrDocumentParseFailed, "invalid csv")
		}
		b.WriteString(strings.Join(row, "\t"))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// ImageDescriber 视觉模型描述图片
type ImageDescriber struct {
	client *openai.Client
	model  string
}

func NewImageDescriber(apiKey, baseURL, model string) *ImageDescriber {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &ImageDescriber{client: openai.NewClientWithConfig(cfg), model: model}
}

// Describe 以 data URL 形式上传本地图片
func (d *ImageDescriber) Describe(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileReadFailed, "read image %s", filepath.Base(path))
	}
	mime, ok := common.ImageMimeType("." + common.FileSuffix(path))
	if !ok {
		return "", errors.Newf(errors.ErrUnsupportedFormat, "unsupported image type: %s", filepath.Base(path))
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a helpful assistant."},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
					{Type: openai.ChatMessagePartTypeText, Text: imagePrompt},
				},
			},
		},
	})
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrDocumentParseFailed, "vision model failed for %s", filepath.Base(path))
	}
	if len(resp.Choices) == 0 {
		return "", errors.Newf(errors.ErrDocumentParseFailed, "vision model returned no choices for %s", filepath.Base(path))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
