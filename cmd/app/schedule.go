package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// runScheduled 立即执行一次；interval > 0 时之后按间隔重复，直到 ctx 结束
// 定时模式下单轮失败只记录日志
func runScheduled(ctx context.Context, interval time.Duration, cycle func(context.Context) error) error {
	err := cycle(ctx)
	if interval <= 0 {
		return err
	}
	if err != nil {
		logrus.Errorf("❌ 本轮执行失败: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logrus.Infof("⏰ 定时执行模式已启动，每 %s 执行一次，按下 Ctrl+C 可以优雅停止程序", interval)
	for {
		select {
		case <-ctx.Done():
			logrus.Info("👋 收到停止信号，正在退出...")
			return nil
		case <-ticker.C:
			if err := cycle(ctx); err != nil {
				logrus.Errorf("❌ 本轮执行失败: %v", err)
			}
		}
	}
}
