package parser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/Malowking/agentchat/core/common"
	"github.com/Malowking/agentchat/core/errors"
	pkgSchema "github.com/Malowking/agentchat/pkg/schema"
	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino-ext/components/document/loader/url"
	"github.com/cloudwego/eino-ext/components/document/parser/html"
	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino-ext/components/document/parser/xlsx"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/google/uuid"
)

// 解析管线
type pipeline int

const (
	pipeText pipeline = iota
	pipeMarkdown
	pipePDF
	pipeOffice
	pipeSheet
	pipeImage
	pipeNormalize
)

// 后缀分发表，后缀统一小写
var suffixPipelines = map[string]pipeline{
	"md":   pipeMarkdown,
	"txt":  pipeText,
	"pdf":  pipePDF,
	"docx": pipeOffice,
	"doc":  pipeOffice,
	"pptx": pipeOffice,
	"ppt":  pipeOffice,
	"odt":  pipeOffice,
	"rtf":  pipeOffice,
	"odp":  pipeOffice,
	"xls":  pipeOffice,
	"ods":  pipeOffice,
	"xlsx": pipeSheet,
	"png":  pipeImage,
	"jpg":  pipeImage,
	"jpeg": pipeImage,
	"webp": pipeImage,
	"json": pipeNormalize,
	"html": pipeNormalize,
	"htm":  pipeNormalize,
	"csv":  pipeNormalize,
}

// Supported 是否支持该文件后缀
func Supported(fileName string) bool {
	_, ok := suffixPipelines[common.FileSuffix(fileName)]
	return ok
}

// ImageToText 图片转文字
type ImageToText interface {
	Describe(ctx context.Context, path string) (string, error)
}

// Config 解析参数
type Config struct {
	ChunkSize   int
	OverlapSize int
	SofficePath string
}

// Option 可选组件
type Option func(*Parser)

// WithSummarizer 开启切片摘要
func WithSummarizer(s *Summarizer) Option {
	return func(p *Parser) { p.summarizer = s }
}

// WithImageToText 配置图片解析
func WithImageToText(v ImageToText) Option {
	return func(p *Parser) { p.vision = v }
}

// Parser 文档解析器：格式转换 -> 文本/markdown -> 切片 -> 可选摘要
type Parser struct {
	conf       Config
	chunker    *LineChunker
	markdown   *MarkdownSplitter
	pdf        parser.Parser
	html       parser.Parser
	xlsx       parser.Parser
	fileLoader document.Loader
	urlLoader  document.Loader
	vision     ImageToText
	summarizer *Summarizer
}

// New 创建解析器
func New(ctx context.Context, conf Config, opts ...Option) (*Parser, error) {
	if conf.SofficePath == "" {
		conf.SofficePath = "soffice"
	}
	chunker, err := NewLineChunker(ctx, conf.ChunkSize, conf.OverlapSize)
	if err != nil {
		return nil, err
	}
	md, err := NewMarkdownSplitter(ctx, chunker)
	if err != nil {
		return nil, err
	}
	pdfParser, err := pdf.NewPDFParser(ctx, &pdf.Config{})
	if err != nil {
		return nil, err
	}
	htmlParser, err := html.NewParser(ctx, &html.Config{})
	if err != nil {
		return nil, err
	}
	xlsxParser, err := xlsx.NewXlsxParser(ctx, &xlsx.Config{})
	if err != nil {
		return nil, err
	}
	fldr, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: false,
		Parser:      parser.TextParser{},
	})
	if err != nil {
		return nil, err
	}
	uldr, err := url.NewLoader(ctx, &url.LoaderConfig{Parser: htmlParser})
	if err != nil {
		return nil, err
	}

	p := &Parser{
		conf:       conf,
		chunker:    chunker,
		markdown:   md,
		pdf:        pdfParser,
		html:       htmlParser,
		xlsx:       xlsxParser,
		fileLoader: fldr,
		urlLoader:  uldr,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Parse 解析本地文件为有序切片，中间临时文件在返回前删除
func (p *Parser) Parse(ctx context.Context, fileID, localPath, knowledgeID string) ([]*pkgSchema.Chunk, error) {
	suffix := common.FileSuffix(localPath)
	pipe, ok := suffixPipelines[suffix]
	if !ok {
		return nil, errors.Newf(errors.ErrUnsupportedFormat, "unsupported file format: %q", suffix)
	}

	workDir, err := os.MkdirTemp("", "agentchat-parse-*")
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrDocumentParseFailed, "create work dir")
	}
	defer os.RemoveAll(workDir)

	contents, err := p.split(ctx, pipe, suffix, localPath, workDir)
	if err != nil {
		return nil, err
	}

	chunks := p.buildChunks(fileID, filepath.Base(localPath), knowledgeID, contents)
	g.Log().Infof(ctx, "parsed %s into %d chunks", filepath.Base(localPath), len(chunks))
	p.summarize(ctx, chunks)
	return chunks, nil
}

// ParseURL 抓取网页并按文本管线切分
func (p *Parser) ParseURL(ctx context.Context, fileID, pageURL, fileName, knowledgeID string) ([]*pkgSchema.Chunk, error) {
	docs, err := p.urlLoader.Load(ctx, document.Source{URI: pageURL})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileDownloadFailed, "load %s", pageURL)
	}
	var parts []string
	for _, d := range docs {
		parts = append(parts, d.Content)
	}
	text := common.CleanParsedText(strings.Join(parts, "\n"))
	chunks := p.buildChunks(fileID, fileName, knowledgeID, p.chunker.Split(ctx, text))
	p.summarize(ctx, chunks)
	return chunks, nil
}

func (p *Parser) split(ctx context.Context, pipe pipeline, suffix, path, workDir string) ([]string, error) {
	switch pipe {
	case pipeMarkdown:
		text, err := p.loadText(ctx, path)
		if err != nil {
			return nil, err
		}
		return p.splitMarkdown(ctx, text)

	case pipeText:
		text, err := p.loadText(ctx, path)
		if err != nil {
			return nil, err
		}
		return p.chunker.Split(ctx, common.CleanParsedText(text)), nil

	case pipePDF:
		return p.pdfToChunks(ctx, path)

	case pipeOffice:
		pdfPath, err := officeToPDF(ctx, p.conf.SofficePath, path, workDir)
		if err != nil {
			return nil, err
		}
		return p.pdfToChunks(ctx, pdfPath)

	case pipeSheet:
		text, err := parseWith(ctx, p.xlsx, path)
		if err != nil || strings.TrimSpace(text) == "" {
			g.Log().Warningf(ctx, "xlsx parser failed for %s, falling back to soffice: %v", filepath.Base(path), err)
			pdfPath, cerr := officeToPDF(ctx, p.conf.SofficePath, path, workDir)
			if cerr != nil {
				return nil, cerr
			}
			return p.pdfToChunks(ctx, pdfPath)
		}
		return p.chunker.Split(ctx, common.CleanParsedText(text)), nil

	case pipeImage:
		if p.vision == nil {
			return nil, errors.New(errors.ErrModelNotConfigured, "vision model is not configured")
		}
		text, err := p.vision.Describe(ctx, path)
		if err != nil {
			return nil, err
		}
		return p.chunker.Split(ctx, common.CleanParsedText(text)), nil

	case pipeNormalize:
		text, err := p.normalize(ctx, suffix, path)
		if err != nil {
			return nil, err
		}
		return p.chunker.Split(ctx, strings.TrimSpace(text)), nil
	}
	return nil, errors.Newf(errors.ErrUnsupportedFormat, "unsupported file format: %q", suffix)
}

func (p *Parser) pdfToChunks(ctx context.Context, path string) ([]string, error) {
	text, err := parseWith(ctx, p.pdf, path)
	if err != nil {
		return nil, err
	}
	return p.splitMarkdown(ctx, common.CleanParsedText(text))
}

func (p *Parser) splitMarkdown(ctx context.Context, text string) ([]string, error) {
	out, err := p.markdown.Split(ctx, text)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrDocumentParseFailed, "split markdown")
	}
	return out, nil
}

// loadText 通过 eino file loader 读取文本
func (p *Parser) loadText(ctx context.Context, path string) (string, error) {
	docs, err := p.fileLoader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileReadFailed, "read %s", filepath.Base(path))
	}
	var b strings.Builder
	for _, d := range docs {
		b.WriteString(d.Content)
	}
	if !utf8.ValidString(b.String()) {
		return strings.ToValidUTF8(b.String(), ""), nil
	}
	return b.String(), nil
}

func (p *Parser) normalize(ctx context.Context, suffix, path string) (string, error) {
	switch suffix {
	case "html", "htm":
		text, err := parseWith(ctx, p.html, path)
		return common.CleanParsedText(text), err
	case "csv":
		f, err := os.Open(path)
		if err != nil {
			return "", errors.Wrapf(err, errors.ErrFileReadFailed, "open %s", filepath.Base(path))
		}
		defer f.Close()
		return csvToText(f)
	default:
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", errors.Wrapf(err, errors.ErrFileReadFailed, "read %s", filepath.Base(path))
		}
		return jsonToText(raw)
	}
}

func (p *Parser) summarize(ctx context.Context, chunks []*pkgSchema.Chunk) {
	if p.summarizer == nil || len(chunks) == 0 {
		return
	}
	p.summarizer.Fill(ctx, chunks)
}

func (p *Parser) buildChunks(fileID, fileName, knowledgeID string, contents []string) []*pkgSchema.Chunk {
	now := pkgSchema.BeijingNow()
	chunks := make([]*pkgSchema.Chunk, 0, len(contents))
	for _, content := range contents {
		chunks = append(chunks, &pkgSchema.Chunk{
			ChunkID:     NewChunkID(fileName),
			Content:     content,
			FileID:      fileID,
			FileName:    fileName,
			KnowledgeID: knowledgeID,
			UpdateTime:  now,
		})
	}
	return chunks
}

// NewChunkID "<文件名去后缀>_<uuid>"，超长时截断文件名部分以保留 uuid
func NewChunkID(fileName string) string {
	suffix := "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	stem := common.FileStem(fileName)
	if room := pkgSchema.MaxChunkIDLength - len(suffix); len(stem) > room {
		stem = truncateBytes(stem, room)
	}
	return stem + suffix
}

// truncateBytes 按字节截断且不切断 UTF-8 字符
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
