package common

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	// 多个空格/制表符合并为一个空格
	spaceRe = regexp.MustCompile(`[ \t\f\v]+`)
	// 3个及以上换行合并为两个
	newlineRe = regexp.MustCompile(`\n{3,}`)
)

// 零宽字符以及 BOM
var zeroWidthRunes = map[rune]bool{
	'\u200B': true,
	'\u200C': true,
	'\u200D': true,
	'\uFEFF': true,
	'\u2060': true,
	'\u180E': true,
}

// CleanParsedText 解析后的文本在分块前统一清洗，保留行结构
func CleanParsedText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7F || zeroWidthRunes[r]:
			// 丢弃
		case r >= 0xE000 && r <= 0xF8FF:
			// 私有使用区
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}

	s = norm.NFC.String(b.String())
	s = spaceRe.ReplaceAllString(s, " ")
	s = newlineRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
