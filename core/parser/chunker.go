package parser

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/Malowking/agentchat/core/common"
	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
)

// LineChunker 按行贪心装箱，每个切片以前一切片末尾 overlap 个字符开头
type LineChunker struct {
	chunkSize   int
	overlapSize int
	// 超长单行的二次切分
	longLine document.Transformer
}

// NewLineChunker overlap 必须小于 chunkSize
func NewLineChunker(ctx context.Context, chunkSize, overlapSize int) (*LineChunker, error) {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if overlapSize < 0 || overlapSize >= chunkSize {
		overlapSize = 0
	}
	rec, err := recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   chunkSize,
		OverlapSize: 0,
		Separators:  []string{"。", "！", "？", ". ", "!", "?", "；", ";", "，", ",", " "},
		LenFunc:     utf8.RuneCountInString,
	})
	if err != nil {
		return nil, err
	}
	return &LineChunker{chunkSize: chunkSize, overlapSize: overlapSize, longLine: rec}, nil
}

// Split 切分文本，空白文本返回空切片
func (c *LineChunker) Split(ctx context.Context, text string) []string {
	var (
		chunks  []string
		current []string
		length  int
	)
	for _, line := range c.lines(ctx, text) {
		n := utf8.RuneCountInString(line)
		if length+n > c.chunkSize && len(current) > 0 {
			chunk := strings.Join(current, "\n")
			chunks = append(chunks, chunk)
			current = current[:0]
			length = 0
			if c.overlapSize > 0 {
				if overlap := common.LastRunes(chunk, c.overlapSize); overlap != "" {
					current = append(current, overlap)
					length = utf8.RuneCountInString(overlap)
				}
			}
		}
		current = append(current, line)
		length += n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}

	out := chunks[:0]
	for _, ch := range chunks {
		if strings.TrimSpace(ch) != "" {
			out = append(out, ch)
		}
	}
	return out
}

// lines 拆行，超过 chunkSize 的行再按句读切开
func (c *LineChunker) lines(ctx context.Context, text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		if utf8.RuneCountInString(line) <= c.chunkSize {
			out = append(out, line)
			continue
		}
		out = append(out, c.splitLong(ctx, line)...)
	}
	return out
}

func (c *LineChunker) splitLong(ctx context.Context, line string) []string {
	docs, err := c.longLine.Transform(ctx, []*schema.Document{{Content: line}})
	var out []string
	if err == nil {
		for _, d := range docs {
			out = append(out, hardWrap(d.Content, c.chunkSize)...)
		}
		return out
	}
	return hardWrap(line, c.chunkSize)
}

// hardWrap 按字符数硬切
func hardWrap(s string, size int) []string {
	r := []rune(s)
	if len(r) <= size {
		return []string{s}
	}
	var out []string
	for start := 0; start < len(r); start += size {
		end := start + size
		if end > len(r) {
			end = len(r)
		}
		out = append(out, string(r[start:end]))
	}
	return out
}
