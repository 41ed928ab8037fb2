package service

import (
	"context"
	"math"
	"time"

	"portfolio-miner/internal/common"
	"portfolio-miner/internal/domain"
	"portfolio-miner/internal/port"
	"portfolio-miner/internal/ranking"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RunResult 一次完整运行的结果
type RunResult struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	// 全部评分结果，顺序与抓取顺序一致
	Projects []domain.ScoredProject
	// 排名前 K 的项目
	Top []domain.ScoredProject
}

// PipelineService 串联 抓取 -> 分析 -> 评分 -> 排名 -> 保存/推送
type PipelineService struct {
	harvester port.Harvester
	analyzer  port.Analyzer
	scorer    port.Scorer
	store     port.ProjectStore // 可选
	notifier  port.Notifier     // 可选
	topK      int
	log       *logrus.Entry
	now       func() time.Time
}

type Option func(*PipelineService)

// WithStore 每次运行后保存结果
func WithStore(store port.ProjectStore) Option {
	return func(s *PipelineService) { s.store = store }
}

// WithNotifier 每次运行后推送排行
func WithNotifier(n port.Notifier) Option {
	return func(s *PipelineService) { s.notifier = n }
}

// WithTopK 覆盖默认的 K
func WithTopK(k int) Option {
	return func(s *PipelineService) {
		if k > 0 {
			s.topK = k
		}
	}
}

// NewPipelineService 创建流水线服务
func NewPipelineService(h port.Harvester, a port.Analyzer, sc port.Scorer, opts ...Option) *PipelineService {
	s := &PipelineService{
		harvester: h,
		analyzer:  a,
		scorer:    sc,
		topK:      ranking.DefaultTopK,
		log:       logrus.WithField("component", "pipeline"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate 抓取、分析并评分；N 个仓库一定得到 N 个结果
// 只有抓取阶段的错误会返回
func (s *PipelineService) Evaluate(ctx context.Context, opts port.HarvestOptions) ([]domain.ScoredProject, error) {
	if s.harvester == nil || s.analyzer == nil || s.scorer == nil {
		return nil, common.NewError(common.ErrCodeConfig, "流水线缺少必要组件")
	}

	s.log.Info("📥 正在抓取仓库...")
	records, err := s.harvester.Harvest(ctx, opts)
	if err != nil {
		return nil, err
	}
	s.log.Infof("✅ 成功获取 %d 个仓库", len(records))
	if len(records) == 0 {
		return []domain.ScoredProject{}, nil
	}

	s.log.Info("🧠 开始语义分析...")
	analyses := s.analyzer.AnalyzeAll(ctx, records)

	projects := make([]domain.ScoredProject, 0, len(records))
	for i, rec := range records {
		var analysis domain.AnalysisRecord
		if i < len(analyses) {
			analysis = analyses[i]
		} else {
			s.log.Warnf("⚠️ %s 没有分析结果，使用降级记录", rec.FullName)
			analysis = domain.FallbackAnalysis(rec.Name, "analysis result missing")
		}

		p := domain.Merge(rec, analysis)
		projects = append(projects, p.WithScore(roundScore(s.scorer.Score(p))))
	}
	s.log.Infof("✅ 已完成 %d 个项目的评分", len(projects))
	return projects, nil
}

// Run 完整运行一次；保存和推送失败只记录日志
func (s *PipelineService) Run(ctx context.Context, opts port.HarvestOptions) (*RunResult, error) {
	started := s.now()
	result := &RunResult{RunID: uuid.NewString(), StartedAt: started}
	log := s.log.WithField("run_id", result.RunID)

	log.Info("🚀 开始新一轮项目评估")
	projects, err := s.Evaluate(ctx, opts)
	if err != nil {
		log.Errorf("❌ 抓取失败: %v", err)
		return nil, err
	}
	result.Projects = projects
	result.Top = ranking.RankAndSelect(projects, s.topK)

	if s.store != nil {
		if err := s.store.SaveRun(ctx, result.RunID, result.Top); err != nil {
			log.Errorf("❌ 保存运行结果失败: %v", err)
		}
	} else {
		log.Debug("未配置存储，跳过保存")
	}

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, result.RunID, result.Top); err != nil {
			log.Errorf("❌ 推送排行失败: %v", err)
		}
	} else {
		log.Debug("未配置通知通道，跳过推送")
	}

	result.Duration = s.now().Sub(started)
	log.Infof("🎉 本轮完成: %d 个项目，选出 %d 个，耗时 %s",
		len(result.Projects), len(result.Top), result.Duration.Round(time.Millisecond))
	return result, nil
}

// roundScore 保留两位小数
func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}
