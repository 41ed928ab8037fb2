package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"portfolio-miner/internal/common"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "❌", err)
			if hint := errorHint(err); hint != "" {
				fmt.Fprintln(os.Stderr, "💡", hint)
			}
		}
		os.Exit(1)
	}
}

// errorHint 针对常见错误码给出处理建议
func errorHint(err error) string {
	switch {
	case common.HasCode(err, common.ErrCodeConfig):
		return "请检查配置文件或环境变量，可用 `config sample` 生成示例配置"
	case common.HasCode(err, common.ErrCodeAuth):
		return "GitHub 认证失败，请确认 GITHUB_TOKEN 有效且具有 repo 权限"
	case common.HasCode(err, common.ErrCodeDatabase):
		return "数据库不可用，请检查 DATABASE_DSN"
	default:
		return ""
	}
}
