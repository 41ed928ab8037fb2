package config

import (
	"fmt"
	"strings"

	"portfolio-miner/internal/common"
)

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"text", "json"}
)

// Validate 检查配置是否可用；缺少 GitHub token 是致命错误
func (c *Config) Validate() error {
	if strings.TrimSpace(c.GitHub.Token) == "" {
		return common.NewError(common.ErrCodeConfig,
			"github.token 未配置，请设置 GITHUB_TOKEN 环境变量或编辑配置文件 (可用 'portfolio-miner config sample' 生成)")
	}
	if c.GitHub.MinStars < 0 {
		return invalid("github.min_stars 不能为负数")
	}
	if c.GitHub.Concurrency < 1 {
		return invalid("github.concurrency 必须大于 0")
	}
	if c.GitHub.RequestsPerSecond < 0 {
		return invalid("github.requests_per_second 不能为负数")
	}
	if c.Gemini.TimeoutSeconds < 1 {
		return invalid("gemini.timeout_seconds 必须大于 0")
	}
	if c.Pipeline.TopK < 1 {
		return invalid("pipeline.top_k 必须大于 0")
	}
	if c.Pipeline.Concurrency < 1 {
		return invalid("pipeline.concurrency 必须大于 0")
	}
	if !contains(validLevels, c.Logging.Level) {
		return invalid(fmt.Sprintf("logging.level 必须是 %s 之一", strings.Join(validLevels, "/")))
	}
	if !contains(validFormats, c.Logging.Format) {
		return invalid(fmt.Sprintf("logging.format 必须是 %s 之一", strings.Join(validFormats, "/")))
	}
	return nil
}

func invalid(msg string) error {
	return common.NewError(common.ErrCodeConfig, msg)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
