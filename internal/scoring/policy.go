package scoring

import (
	"os"

	"portfolio-miner/internal/common"

	"github.com/pelletier/go-toml/v2"
)

// Policy 评分规则表，全部可以在 TOML 中覆盖
type Policy struct {
	// 复杂度基础分，key 为 domain.Complexity 的取值
	Complexity map[string]float64 `toml:"complexity"`

	PerSkill       float64 `toml:"per_skill"`
	PerTechnology  float64 `toml:"per_technology"`
	PerAchievement float64 `toml:"per_achievement"`

	// 按 MaxDays 升序匹配第一个区间
	Recency []RecencyBand `toml:"recency"`

	PerStar float64 `toml:"per_star"`
	PerFork float64 `toml:"per_fork"`

	// 语言名 (GitHub 的写法) -> 加分
	Languages map[string]float64 `toml:"languages"`
	// 同一组内只加一次分
	TechnologyGroups []TechnologyGroup `toml:"technology_groups"`
	// 语言数量严格大于 MoreThan 时累加
	Diversity []DiversityBand `toml:"diversity"`

	Metrics MetricsPolicy `toml:"metrics"`
}

type RecencyBand struct {
	MaxDays int     `toml:"max_days"`
	Points  float64 `toml:"points"`
}

type TechnologyGroup struct {
	Names  []string `toml:"names"`
	Points float64  `toml:"points"`
}

type DiversityBand struct {
	MoreThan int     `toml:"more_than"`
	Points   float64 `toml:"points"`
}

// Tier 数值不小于 Min 时得 Points；按 Min 降序取第一个
type Tier struct {
	Min    float64 `toml:"min"`
	Points float64 `toml:"points"`
}

type MetricsPolicy struct {
	// 有任意指标时的基础分
	Presence      float64  `toml:"presence"`
	AccuracyKeys  []string `toml:"accuracy_keys"`
	AccuracyTiers []Tier   `toml:"accuracy_tiers"`
	F1Keys        []string `toml:"f1_keys"`
	F1Tiers       []Tier   `toml:"f1_tiers"`
}

// DefaultPolicy 默认评分规则
func DefaultPolicy() Policy {
	return Policy{
		Complexity: map[string]float64{
			"Low":       10,
			"Medium":    30,
			"High":      60,
			"Very High": 100,
		},
		PerSkill:       8,
		PerTechnology:  5,
		PerAchievement: 10,
		Recency: []RecencyBand{
			{MaxDays: 30, Points: 20},
			{MaxDays: 90, Points: 15},
			{MaxDays: 180, Points: 10},
			{MaxDays: 365, Points: 5},
		},
		PerStar: 0.5,
		PerFork: 1.0,
		Languages: map[string]float64{
			"Python":     20,
			"JavaScript": 15,
			"TypeScript": 15,
			"Java":       15,
			"C#":         15,
			"Go":         10,
			"Rust":       10,
			"C++":        20,
			"C":          15,
			"PHP":        10,
			"Ruby":       10,
			"Swift":      15,
			"Kotlin":     15,
			"Scala":      10,
			"R":          10,
		},
		TechnologyGroups: []TechnologyGroup{
			{Names: []string{"React"}, Points: 15},
			{Names: []string{"Angular"}, Points: 15},
			{Names: []string{"Vue.js"}, Points: 15},
			{Names: []string{"Django"}, Points: 10},
			{Names: []string{"Flask"}, Points: 10},
			{Names: []string{"Node.js"}, Points: 10},
			{Names: []string{"Docker"}, Points: 10},
			{Names: []string{"Kubernetes"}, Points: 15},
			{Names: []string{"AWS", "Azure", "GCP"}, Points: 20},
			{Names: []string{"Jupyter Notebook", "Jupyter"}, Points: 10},
			{Names: []string{"TensorFlow", "PyTorch"}, Points: 15},
			{Names: []string{"SQL", "PostgreSQL", "MySQL", "MongoDB"}, Points: 10},
		},
		Diversity: []DiversityBand{
			{MoreThan: 2, Points: 5},
			{MoreThan: 4, Points: 10},
		},
		Metrics: MetricsPolicy{
			Presence:      25,
			AccuracyKeys:  []string{"accuracy", "acc", "test_accuracy"},
			AccuracyTiers: []Tier{{Min: 0.8, Points: 30}, {Min: 0.7, Points: 15}},
			F1Keys:        []string{"f1_score", "f1", "f1-score"},
			F1Tiers:       []Tier{{Min: 0.7, Points: 10}},
		},
	}
}

// LoadPolicy 在默认规则上叠加 TOML 文件中的配置
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, common.WrapError(common.ErrCodeConfig, "读取评分规则失败", err)
	}
	if err := toml.Unmarshal(data, &policy); err != nil {
		return Policy{}, common.WrapError(common.ErrCodeConfig, "解析评分规则失败", err)
	}
	return policy, nil
}
