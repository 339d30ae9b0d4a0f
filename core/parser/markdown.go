package parser

import (
	"context"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/markdown"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
)

// 标题层级在 metadata 中的键
var headerKeys = []string{"h1", "h2", "h3", "h4", "h5"}

// 标题路径最长字符数，超出时从最高层开始丢弃
const maxHeaderPathLen = 512

// MarkdownSplitter 按标题切节，每个切片以 "h1 > h2 > ..." 标题路径开头
type MarkdownSplitter struct {
	headers document.Transformer
	chunker *LineChunker
}

func NewMarkdownSplitter(ctx context.Context, chunker *LineChunker) (*MarkdownSplitter, error) {
	hs, err := markdown.NewHeaderSplitter(ctx, &markdown.HeaderConfig{
		Headers: map[string]string{
			"#":     headerKeys[0],
			"##":    headerKeys[1],
			"###":   headerKeys[2],
			"####":  headerKeys[3],
			"#####": headerKeys[4],
		},
		TrimHeaders: true,
	})
	if err != nil {
		return nil, err
	}
	return &MarkdownSplitter{headers: hs, chunker: chunker}, nil
}

// Split 返回带标题路径前缀的切片
func (s *MarkdownSplitter) Split(ctx context.Context, text string) ([]string, error) {
	sections, err := s.headers.Transform(ctx, []*schema.Document{{Content: text}})
	if err != nil {
		return nil, err
	}

	var out []string
	for _, sec := range sections {
		path := headerPath(sec.MetaData)
		for _, piece := range s.chunker.Split(ctx, sec.Content) {
			if path == "" {
				out = append(out, piece)
				continue
			}
			out = append(out, path+"\n\n"+piece)
		}
	}
	return out, nil
}

func headerPath(meta map[string]any) string {
	var parts []string
	for _, k := range headerKeys {
		if v, ok := meta[k].(string); ok && strings.TrimSpace(v) != "" {
			parts = append(parts, strings.TrimSpace(v))
		}
	}
	for len(parts) > 1 && len(strings.Join(parts, " > ")) > maxHeaderPathLen {
		parts = parts[1:]
	}
	return strings.Join(parts, " > ")
}
