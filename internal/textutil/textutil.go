// Package textutil 清洗并截断送往 LLM 的文本
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	// MaxContentLength README / commit 文本在 prompt 中的上限
	MaxContentLength = 15000
	// MaxDocumentLength 简历等自由文本的上限
	MaxDocumentLength = 20000

	TruncationMarker = "\n... (truncated)"
)

var typographic = strings.NewReplacer(
	"\u201c", `"`, "\u201d", `"`,
	"\u2018", "'", "\u2019", "'",
	"\u2014", "--", "\u2013", "-",
	"\u2026", "...",
	"\u2022", "*",
	"\u00a0", " ",
)

// Sanitize 把排版标点换成 ASCII，NFKD 分解后只保留可打印 ASCII (保留换行和制表符)
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKD.String(typographic.Replace(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r == '\r':
		case r < unicode.MaxASCII && unicode.IsPrint(r):
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Truncate 超过 max 字节时截断并追加标记
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + TruncationMarker
}

// LimitAndSanitize 清洗 + 截断；空结果返回 "N/A"
func LimitAndSanitize(s string, max int) string {
	out := Truncate(Sanitize(s), max)
	if out == "" {
		return "N/A"
	}
	return out
}
