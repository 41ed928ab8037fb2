// Package logging 按配置初始化全局 logrus
package logging

import (
	"io"
	"os"
	"strings"

	"portfolio-miner/internal/config"

	"github.com/sirupsen/logrus"
)

// Init 设置日志级别、格式和输出位置
// 返回的函数用于关闭日志文件 (输出到终端时什么也不做)
func Init(cfg config.Logging) func() {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.Warnf("⚠️ 无效的日志级别 '%s'，改用 info: %v", cfg.Level, err)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	output, closeFn := openOutput(cfg.Output)
	logrus.SetOutput(output)

	logrus.Debug("日志初始化完成")
	return closeFn
}

func openOutput(target string) (io.Writer, func()) {
	noop := func() {}
	switch strings.ToLower(strings.TrimSpace(target)) {
	case "", "stderr":
		return os.Stderr, noop
	case "stdout":
		return os.Stdout, noop
	}

	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logrus.Warnf("⚠️ 无法打开日志文件 '%s'，改用 stderr: %v", target, err)
		return os.Stderr, noop
	}
	return file, func() { _ = file.Close() }
}
