// Package scoring 按固定规则给项目打分，给定时钟时结果完全确定
package scoring

import (
	"math"
	"sort"
	"strings"
	"time"

	"portfolio-miner/internal/domain"

	"github.com/sirupsen/logrus"
)

// Breakdown 各项得分明细
type Breakdown struct {
	Complexity   float64 `json:"complexity"`
	Enrichment   float64 `json:"enrichment"` // 技能/技术/成就数量
	Recency      float64 `json:"recency"`
	Popularity   float64 `json:"popularity"`
	Languages    float64 `json:"languages"`
	Technologies float64 `json:"technologies"`
	Diversity    float64 `json:"diversity"`
	Metrics      float64 `json:"metrics"`
	Total        float64 `json:"total"`
}

// Engine 实现了 port.Scorer 接口
type Engine struct {
	policy  Policy
	nowFunc func() time.Time
	log     *logrus.Entry
}

// Option 配置 Engine
type Option func(*Engine)

// WithClock 注入当前时间，便于测试
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.nowFunc = now
		}
	}
}

// NewEngine 创建评分引擎
func NewEngine(policy Policy, opts ...Option) *Engine {
	e := &Engine{
		policy:  normalizePolicy(policy),
		nowFunc: time.Now,
		log:     logrus.WithField("component", "scoring"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy 当前使用的规则
func (e *Engine) Policy() Policy {
	return e.policy
}

// Score 总分，不小于 0
func (e *Engine) Score(p domain.ScoredProject) float64 {
	return e.Breakdown(p).Total
}

// Breakdown 计算各项得分
func (e *Engine) Breakdown(p domain.ScoredProject) Breakdown {
	b := Breakdown{
		Complexity:   e.policy.Complexity[string(domain.ParseComplexity(string(p.Complexity)))],
		Enrichment:   e.enrichment(p.AnalysisRecord),
		Recency:      e.recency(p.RepositoryRecord),
		Popularity:   float64(p.Stars)*e.policy.PerStar + float64(p.Forks)*e.policy.PerFork,
		Languages:    e.languages(p.Languages),
		Technologies: e.technologies(p.Technologies),
		Diversity:    e.diversity(len(p.Languages)),
		Metrics:      e.metrics(p.FullName, p.PerformanceMetrics),
	}
	total := b.Complexity + b.Enrichment + b.Recency + b.Popularity +
		b.Languages + b.Technologies + b.Diversity + b.Metrics
	b.Total = math.Max(0, total)
	return b
}

func (e *Engine) enrichment(a domain.AnalysisRecord) float64 {
	return float64(len(a.Skills))*e.policy.PerSkill +
		float64(len(a.Technologies))*e.policy.PerTechnology +
		float64(len(a.Achievements))*e.policy.PerAchievement
}

// recency 按整天数 (向下取整) 匹配区间；时间未知时不加分
func (e *Engine) recency(r domain.RepositoryRecord) float64 {
	if r.LastPushedAt.IsZero() {
		e.log.Warnf("⚠️ %s 缺少最后推送时间，时效分记 0", r.FullName)
		return 0
	}
	days := int(math.Floor(e.nowFunc().Sub(r.LastPushedAt).Hours() / 24))
	for _, band := range e.policy.Recency {
		if days <= band.MaxDays {
			return band.Points
		}
	}
	return 0
}

func (e *Engine) languages(langs map[string]int) float64 {
	var total float64
	for name := range langs {
		total += e.policy.Languages[name]
	}
	return total
}

// technologies 每个分组最多加一次分，名称比较忽略大小写
func (e *Engine) technologies(techs []string) float64 {
	present := make(map[string]struct{}, len(techs))
	for _, t := range techs {
		present[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}

	var total float64
	for _, group := range e.policy.TechnologyGroups {
		for _, name := range group.Names {
			if _, ok := present[strings.ToLower(name)]; ok {
				total += group.Points
				break
			}
		}
	}
	return total
}

func (e *Engine) diversity(count int) float64 {
	var total float64
	for _, band := range e.policy.Diversity {
		if count > band.MoreThan {
			total += band.Points
		}
	}
	return total
}

func (e *Engine) metrics(name string, metrics map[string]float64) float64 {
	if len(metrics) == 0 {
		return 0
	}
	e.log.Debugf("📈 %s 检测到性能指标: %v", name, metrics)

	mp := e.policy.Metrics
	total := mp.Presence
	if v, ok := lookupMetric(metrics, mp.AccuracyKeys); ok {
		total += tierPoints(v, mp.AccuracyTiers)
	}
	if v, ok := lookupMetric(metrics, mp.F1Keys); ok {
		total += tierPoints(v, mp.F1Tiers)
	}
	return total
}

// lookupMetric 按 keys 的顺序取第一个匹配的指标 (忽略大小写)
// 1 < v <= 100 视为百分比
func lookupMetric(metrics map[string]float64, keys []string) (float64, bool) {
	lowered := make(map[string]float64, len(metrics))
	for k, v := range metrics {
		lowered[strings.ToLower(strings.TrimSpace(k))] = v
	}
	for _, key := range keys {
		v, ok := lowered[strings.ToLower(key)]
		if !ok {
			continue
		}
		if v > 1 && v <= 100 {
			v /= 100
		}
		return v, true
	}
	return 0, false
}

func tierPoints(v float64, tiers []Tier) float64 {
	for _, tier := range tiers {
		if v >= tier.Min {
			return tier.Points
		}
	}
	return 0
}

// normalizePolicy 复制规则并把区间排好序
func normalizePolicy(p Policy) Policy {
	out := p
	out.Recency = append([]RecencyBand(nil), p.Recency...)
	sort.SliceStable(out.Recency, func(i, j int) bool { return out.Recency[i].MaxDays < out.Recency[j].MaxDays })

	out.Metrics.AccuracyTiers = append([]Tier(nil), p.Metrics.AccuracyTiers...)
	sort.SliceStable(out.Metrics.AccuracyTiers, func(i, j int) bool {
		return out.Metrics.AccuracyTiers[i].Min > out.Metrics.AccuracyTiers[j].Min
	})
	out.Metrics.F1Tiers = append([]Tier(nil), p.Metrics.F1Tiers...)
	sort.SliceStable(out.Metrics.F1Tiers, func(i, j int) bool {
		return out.Metrics.F1Tiers[i].Min > out.Metrics.F1Tiers[j].Min
	})
	return out
}
