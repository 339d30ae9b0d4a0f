package parser

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/Malowking/agentchat/core/errors"
	pkgSchema "github.com/Malowking/agentchat/pkg/schema"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser(t *testing.T, chunkSize, overlap int, opts ...Option) *Parser {
	t.Helper()
	p, err := New(context.Background(), Config{ChunkSize: chunkSize, OverlapSize: overlap}, opts...)
	require.NoError(t, err)
	return p
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLineChunkerOverlap(t *testing.T) {
	c, err := NewLineChunker(context.Background(), 10, 3)
	require.NoError(t, err)

	// 换行不计入长度
	chunks := c.Split(context.Background(), "aaaaa\nbbbbb\nccccc")
	require.Len(t, chunks, 2)
	assert.Equal(t, "aaaaa\nbbbbb", chunks[0])
	assert.Equal(t, "bbb\nccccc", chunks[1])
}

func TestLineChunkerPacksShortLines(t *testing.T) {
	c, err := NewLineChunker(context.Background(), 100, 10)
	require.NoError(t, err)

	chunks := c.Split(context.Background(), "one\ntwo\nthree")
	assert.Equal(t, []string{"one\ntwo\nthree"}, chunks)
	assert.Empty(t, c.Split(context.Background(), "\n\n  \n"))
}

func TestLineChunkerSplitsLongLine(t *testing.T) {
	c, err := NewLineChunker(context.Background(), 20, 0)
	require.NoError(t, err)

	line := strings.Repeat("中文句子。", 12)
	for _, ch := range c.Split(context.Background(), line) {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch), 20)
	}
}

func TestMarkdownHeaderPath(t *testing.T) {
	p := newTestParser(t, 200, 20)
	path := writeFile(t, "guide.md", "# Intro\nhello\n## Install\nrun make\n# Usage\nuse it\n")

	chunks, err := p.Parse(context.Background(), "f1", path, "kb1")
	require.NoError(t, err)

	var contents []string
	for _, c := range chunks {
		contents = append(contents, c.Content)
	}
	joined := strings.Join(contents, "\n---\n")
	assert.Contains(t, joined, "Intro > Install\n\nrun make")
	assert.Contains(t, joined, "Usage\n\nuse it")
	assert.NotContains(t, joined, "Usage > Install")
}

func TestParseTextFillsChunkFields(t *testing.T) {
	p := newTestParser(t, 500, 100)
	path := writeFile(t, "notes.txt", "AgentChat supports MCP.")

	chunks, err := p.Parse(context.Background(), "file-1", path, "kb1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	c := chunks[0]
	assert.Equal(t, "AgentChat supports MCP.", c.Content)
	assert.Equal(t, "file-1", c.FileID)
	assert.Equal(t, "notes.txt", c.FileName)
	assert.Equal(t, "kb1", c.KnowledgeID)
	assert.True(t, strings.HasPrefix(c.ChunkID, "notes_"))
	assert.Empty(t, c.Summary)
	assert.NotEmpty(t, c.UpdateTime)
}

func TestParseSuffixCaseInsensitive(t *testing.T) {
	p := newTestParser(t, 500, 100)
	upper, err := p.Parse(context.Background(), "f", writeFile(t, "A.TXT", "same text"), "kb")
	require.NoError(t, err)
	lower, err := p.Parse(context.Background(), "f", writeFile(t, "a.txt", "same text"), "kb")
	require.NoError(t, err)
	require.Len(t, upper, 1)
	assert.Equal(t, lower[0].Content, upper[0].Content)
}

func TestParseUnsupported(t *testing.T) {
	p := newTestParser(t, 500, 100)
	_, err := p.Parse(context.Background(), "f", writeFile(t, "a.exe", "x"), "kb")
	require.Error(t, err)
	assert.Equal(t, errors.ErrUnsupportedFormat, errors.CodeOf(err))
	assert.False(t, Supported("a.exe"))
	assert.True(t, Supported("a.DOCX"))
}

func TestParseCSVAndJSON(t *testing.T) {
	p := newTestParser(t, 500, 100)

	chunks, err := p.Parse(context.Background(), "f", writeFile(t, "t.csv", "name,city\nbob,beijing\n"), "kb")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "name\tcity\nbob\tbeijing", chunks[0].Content)

	chunks, err = p.Parse(context.Background(), "f", writeFile(t, "t.json", `{"b":1,"a":"中"}`), "kb")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "{\n  \"b\": 1,\n  \"a\": \"中\"\n}", chunks[0].Content)

	_, err = p.Parse(context.Background(), "f", writeFile(t, "bad.json", `{oops`), "kb")
	assert.Equal(t, errors.ErrDocumentParseFailed, errors.CodeOf(err))
}

func TestParseImageWithoutVision(t *testing.T) {
	p := newTestParser(t, 500, 100)
	_, err := p.Parse(context.Background(), "f", writeFile(t, "a.png", "x"), "kb")
	require.Error(t, err)
}

type fakeVision struct{ text string }

func (f fakeVision) Describe(context.Context, string) (string, error) { return f.text, nil }

func TestParseImageWithVision(t *testing.T) {
	p := newTestParser(t, 500, 100, WithImageToText(fakeVision{text: "一只猫"}))
	chunks, err := p.Parse(context.Background(), "f", writeFile(t, "cat.JPG", "x"), "kb")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "一只猫", chunks[0].Content)
}

func TestNewChunkIDTruncates(t *testing.T) {
	long := strings.Repeat("文", 100) + ".pdf"
	a, b := NewChunkID(long), NewChunkID(long)
	assert.LessOrEqual(t, len(a), pkgSchema.MaxChunkIDLength)
	assert.True(t, utf8.ValidString(a))
	assert.NotEqual(t, a, b)
}

type fakeSummaryModel struct {
	calls atomic.Int32
}

func (f *fakeSummaryModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.calls.Add(1)
	if strings.Contains(in[0].Content, "FAIL") {
		return nil, stderrors.New("model down")
	}
	return schema.AssistantMessage(" 摘要 ", nil), nil
}

func (f *fakeSummaryModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, stderrors.New("not implemented")
}

func TestSummarizerLeavesFailuresEmpty(t *testing.T) {
	m := &fakeSummaryModel{}
	s := NewSummarizer(m, 2)
	chunks := []*pkgSchema.Chunk{{ChunkID: "1", Content: "ok"}, {ChunkID: "2", Content: "FAIL"}, {ChunkID: "3", Content: "ok"}}

	s.Fill(context.Background(), chunks)
	assert.Equal(t, "摘要", chunks[0].Summary)
	assert.Equal(t, "", chunks[1].Summary)
	assert.Equal(t, "摘要", chunks[2].Summary)
	assert.Equal(t, int32(3), m.calls.Load())
}

func TestParseWithoutSummarizerMakesNoCalls(t *testing.T) {
	p := newTestParser(t, 500, 100)
	chunks, err := p.Parse(context.Background(), "f", writeFile(t, "a.txt", "hello"), "kb")
	require.NoError(t, err)
	assert.Equal(t, "", chunks[0].Summary)
}
