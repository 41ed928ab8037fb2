package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "空字符串", in: "", want: ""},
		{name: "弯引号", in: "“quoted” and ‘single’", want: `"quoted" and 'single'`},
		{name: "破折号与省略号", in: "a—b–c…", want: "a--b-c..."},
		{name: "项目符号与不换行空格", in: "\u2022\u00a0item", want: "* item"},
		{name: "重音字母保留基础字母", in: "café naïve", want: "cafe naive"},
		{name: "去掉非 ASCII", in: "hello 世界 🚀", want: "hello"},
		{name: "保留换行和制表符", in: "line1\n\tline2\r\n", want: "line1\n\tline2"},
		{name: "去掉控制字符", in: "a\x00b\x1bc\x7f", want: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "exact", Truncate("exact", 5))
	assert.Equal(t, "abc"+TruncationMarker, Truncate("abcdef", 3))
	assert.Equal(t, "no limit", Truncate("no limit", 0))

	long := strings.Repeat("x", MaxContentLength+100)
	got := Truncate(long, MaxContentLength)
	assert.Len(t, got, MaxContentLength+len(TruncationMarker))
	assert.True(t, strings.HasSuffix(got, "\n... (truncated)"))
}

func TestLimitAndSanitize(t *testing.T) {
	assert.Equal(t, "N/A", LimitAndSanitize("", MaxContentLength))
	assert.Equal(t, "N/A", LimitAndSanitize("你好", MaxContentLength))
	assert.Equal(t, "abc"+TruncationMarker, LimitAndSanitize("  abcdef  ", 3))
}
