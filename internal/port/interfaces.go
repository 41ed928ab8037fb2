package port

import (
	"context"

	"portfolio-miner/internal/domain"
)

// HarvestOptions 每次抓取的过滤条件
type HarvestOptions struct {
	// 是否包含私有仓库 (私有仓库不受 star 限制)
	IncludePrivate bool
	// 公开仓库的最低 star 数
	MinStars int
}

// Harvester (采集员): 负责从代码托管平台拉取用户的仓库快照
type Harvester interface {
	// 返回通过过滤条件的仓库；认证失败等致命错误直接返回
	Harvest(ctx context.Context, opts HarvestOptions) ([]domain.RepositoryRecord, error)
}

// Message 发给 LLM 的单条消息
type Message struct {
	Role  string // "user" 或 "model"
	Parts []string
}

// Generator (语言模型): 负责把消息发给 LLM，返回原始文本
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Analyzer (分析师): 负责语义增强，第 i 个结果对应第 i 个输入
type Analyzer interface {
	AnalyzeAll(ctx context.Context, records []domain.RepositoryRecord) []domain.AnalysisRecord
}

// Scorer (评分员): 确定性打分
type Scorer interface {
	Score(project domain.ScoredProject) float64
}

// ProjectStore (仓库管理员): 保存每次运行的评分快照
type ProjectStore interface {
	SaveRun(ctx context.Context, runID string, projects []domain.ScoredProject) error
	// LatestRun 返回最近一次运行的结果 (按名次排序)
	LatestRun(ctx context.Context) ([]domain.ScoredProject, error)
}

// Notifier (信使): 负责把排行推送到飞书
type Notifier interface {
	Notify(ctx context.Context, runID string, top []domain.ScoredProject) error
}
