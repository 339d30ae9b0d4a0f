package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSuffixCaseInsensitive(t *testing.T) {
	assert.Equal(t, "pdf", FileSuffix("/tmp/Report.PDF"))
	assert.Equal(t, "md", FileSuffix("notes.md"))
	assert.Equal(t, "", FileSuffix("/tmp/noext"))
	assert.Equal(t, "", FileSuffix("/tmp/dot."))
}

func TestFileStem(t *testing.T) {
	assert.Equal(t, "Report", FileStem("/tmp/a/Report.PDF"))
	assert.Equal(t, "archive.tar", FileStem("archive.tar.gz"))
	assert.Equal(t, ".env", FileStem(".env"))
}

func TestRuneHelpers(t *testing.T) {
	assert.Equal(t, "你好", TruncateRunes("你好世界", 2))
	assert.Equal(t, "世界", LastRunes("你好世界", 2))
	assert.Equal(t, "ab", LastRunes("ab", 5))
	assert.Equal(t, "", LastRunes("ab", 0))
}

func TestDecodeLLMJSON(t *testing.T) {
	type envelope struct {
		OriginalQuery string   `json:"original_query"`
		Variations    []string `json:"variations"`
	}

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"fenced", "```json\n{\"original_query\":\"q\",\"variations\":[\"a\",\"b\"]}\n```", []string{"a", "b"}},
		{"prose around", "好的，结果如下：{\"variations\":[\"x\"]} 希望有帮助", []string{"x"}},
		{"missing field", `{"original_query":"q"}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e envelope
			require.NoError(t, DecodeLLMJSON(tt.raw, &e))
			assert.Equal(t, tt.want, e.Variations)
		})
	}

	var e envelope
	assert.Error(t, DecodeLLMJSON("not json at all", &e))
}
