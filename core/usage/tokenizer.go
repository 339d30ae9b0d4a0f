package usage

import (
	"sync"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
	"github.com/pkoukk/tiktoken-go"
)

const fallbackEncoding = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding(fallbackEncoding)
		if err == nil {
			enc = e
		}
	})
	return enc
}

// CountText 估算文本 token 数；编码表不可用时按字符数估算
func CountText(text string) int {
	if text == "" {
		return 0
	}
	if e := encoding(); e != nil {
		return len(e.Encode(text, nil, nil))
	}
	return utf8.RuneCountInString(text)
}

// CountMessages 估算一组消息的 prompt token 数
func CountMessages(msgs []*schema.Message) int {
	var n int
	for _, m := range msgs {
		if m == nil {
			continue
		}
		n += 4 // <|start|>{role}\n{content}<|end|>\n
		n += CountText(string(m.Role))
		n += CountText(m.Content)
	}
	if n > 0 {
		n += 3
	}
	return n
}
