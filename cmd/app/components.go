package main

import (
	"context"
	"math"
	"time"

	"portfolio-miner/internal/adapter/analyzer"
	"portfolio-miner/internal/adapter/feishu"
	"portfolio-miner/internal/adapter/gemini"
	"portfolio-miner/internal/adapter/github"
	"portfolio-miner/internal/adapter/repository"
	"portfolio-miner/internal/config"
	"portfolio-miner/internal/port"
	"portfolio-miner/internal/scoring"
	"portfolio-miner/internal/service"

	"github.com/sirupsen/logrus"
)

func newHarvester(cfg *config.Config) (*github.Harvester, error) {
	rps := cfg.GitHub.RequestsPerSecond
	burst := int(math.Ceil(rps))
	return github.NewHarvester(cfg.GitHub.Token,
		github.WithConcurrency(cfg.GitHub.Concurrency),
		github.WithRateLimit(rps, burst),
	)
}

func newStore(cfg *config.Config) (*repository.PostgresStore, error) {
	return repository.NewPostgresStore(cfg.Storage.DSN)
}

// pipeline 组装好的流水线及需要释放的资源
type pipeline struct {
	harvester *github.Harvester
	service   *service.PipelineService
	cleanup   func()
}

// runCycle 执行一轮；每轮先清空仓库列表缓存，定时模式下才能看到新仓库和最新 star 数
func (p *pipeline) runCycle(ctx context.Context, opts port.HarvestOptions) (*service.RunResult, error) {
	p.harvester.Reset()
	return p.service.Run(ctx, opts)
}

// buildPipeline 按配置组装各组件；dryRun 时不保存也不推送
func buildPipeline(ctx context.Context, cfg *config.Config, dryRun bool) (*pipeline, error) {
	harvester, err := newHarvester(cfg)
	if err != nil {
		return nil, err
	}

	generator, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		return nil, err
	}

	policy, err := scoring.LoadPolicy(cfg.Scoring.PolicyFile)
	if err != nil {
		generator.Close()
		return nil, err
	}

	semantic := analyzer.NewSemanticAnalyzer(generator,
		analyzer.WithTimeout(time.Duration(cfg.Gemini.TimeoutSeconds)*time.Second),
		analyzer.WithMaxGoroutines(cfg.Pipeline.Concurrency),
	)

	opts := []service.Option{service.WithTopK(cfg.Pipeline.TopK)}
	if dryRun {
		logrus.Info("🧪 dry-run 模式：不保存也不推送")
	} else {
		if cfg.Storage.DSN != "" {
			store, err := newStore(cfg)
			if err != nil {
				generator.Close()
				return nil, err
			}
			opts = append(opts, service.WithStore(store))
		}
		if cfg.Notify.FeishuWebhook != "" {
			opts = append(opts, service.WithNotifier(feishu.NewNotifier(cfg.Notify.FeishuWebhook)))
		}
	}

	return &pipeline{
		harvester: harvester,
		service:   service.NewPipelineService(harvester, semantic, scoring.NewEngine(policy), opts...),
		cleanup: func() {
			if err := generator.Close(); err != nil {
				logrus.Warnf("⚠️ 关闭 Gemini 客户端失败: %v", err)
			}
		},
	}, nil
}
