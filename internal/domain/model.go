package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RepositoryRecord 代表一次抓取得到的仓库快照 (来自 GitHub)
// 抓取后不再修改；子请求失败的字段保持空值
type RepositoryRecord struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"` // 例如 "octocat/hello-world"
	Description   string `json:"description"`
	ReadmeContent string `json:"readme_content"`
	HTMLURL       string `json:"html_url"`
	CloneURL      string `json:"clone_url"`
	IsPrivate     bool   `json:"is_private"`

	// 语言 -> 字节数
	Languages map[string]int `json:"languages"`

	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastPushedAt time.Time `json:"last_pushed_at"` // 零值表示未知

	Stars    int `json:"stargazers_count"`
	Forks    int `json:"forks_count"`
	Watchers int `json:"watchers_count"`

	// 最近 10 条 commit message
	RecentCommits []string `json:"recent_commits"`
	// 去重后的依赖名 (已排序)
	Dependencies        []string `json:"dependencies"`
	HasJupyterNotebooks bool     `json:"has_jupyter_notebooks"`
}

// MaxRecentCommits 每个仓库保留的 commit message 上限
const MaxRecentCommits = 10

// Clone 深拷贝，保证快照之间不共享 map/slice
func (r RepositoryRecord) Clone() RepositoryRecord {
	out := r
	out.Languages = cloneIntMap(r.Languages)
	out.RecentCommits = cloneStrings(r.RecentCommits)
	out.Dependencies = cloneStrings(r.Dependencies)
	return out
}

// LanguageNames 按字节数降序返回语言名，字节数相同按名字排序
func (r RepositoryRecord) LanguageNames() []string {
	names := make([]string, 0, len(r.Languages))
	for name := range r.Languages {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if r.Languages[names[i]] != r.Languages[names[j]] {
			return r.Languages[names[i]] > r.Languages[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// Complexity LLM 给出的定性复杂度
type Complexity string

const (
	ComplexityLow      Complexity = "Low"
	ComplexityMedium   Complexity = "Medium"
	ComplexityHigh     Complexity = "High"
	ComplexityVeryHigh Complexity = "Very High"
	ComplexityNA       Complexity = "N/A"
)

// ParseComplexity 宽松解析 (忽略大小写/多余空白/连字符)，无法识别时返回 N/A
func ParseComplexity(s string) Complexity {
	normalized := strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(s, "-", " ")), " "))
	switch normalized {
	case "low":
		return ComplexityLow
	case "medium":
		return ComplexityMedium
	case "high":
		return ComplexityHigh
	case "very high":
		return ComplexityVeryHigh
	default:
		return ComplexityNA
	}
}

// AnalysisRecord LLM 语义分析结果
// 无论成功还是降级，结构都完全一致
type AnalysisRecord struct {
	Skills             []string           `json:"skills"`
	Technologies       []string           `json:"technologies"`
	Achievements       []string           `json:"achievements"`
	Summary            string             `json:"summary"`
	Keywords           []string           `json:"keywords"`
	Complexity         Complexity         `json:"estimated_complexity_qualitative"`
	PerformanceMetrics map[string]float64 `json:"performance_metrics"`
}

// EmptyAnalysis 默认值表：所有列表为空、复杂度 N/A、指标为空 map
func EmptyAnalysis() AnalysisRecord {
	return AnalysisRecord{
		Skills:             []string{},
		Technologies:       []string{},
		Achievements:       []string{},
		Summary:            "",
		Keywords:           []string{},
		Complexity:         ComplexityNA,
		PerformanceMetrics: map[string]float64{},
	}
}

// WithDefaults 用默认值表补齐缺失字段，返回新的记录
func (a AnalysisRecord) WithDefaults() AnalysisRecord {
	out := EmptyAnalysis()
	if a.Skills != nil {
		out.Skills = cloneStrings(a.Skills)
	}
	if a.Technologies != nil {
		out.Technologies = cloneStrings(a.Technologies)
	}
	if a.Achievements != nil {
		out.Achievements = cloneStrings(a.Achievements)
	}
	if a.Keywords != nil {
		out.Keywords = cloneStrings(a.Keywords)
	}
	if a.PerformanceMetrics != nil {
		out.PerformanceMetrics = cloneFloatMap(a.PerformanceMetrics)
	}
	out.Summary = a.Summary
	out.Complexity = ParseComplexity(string(a.Complexity))
	return out
}

// FallbackAnalysis 分析失败时的降级结果
func FallbackAnalysis(name, reason string) AnalysisRecord {
	if strings.TrimSpace(name) == "" {
		name = "Unknown"
	}
	out := EmptyAnalysis()
	out.Summary = fmt.Sprintf("Semantic enrichment was unavailable for %s.", name)
	out.Achievements = []string{fmt.Sprintf("Insight could not be fully gained for project '%s': %s", name, reason)}
	return out
}

// ScoredProject 仓库快照 + 分析结果 + 评分
type ScoredProject struct {
	RepositoryRecord
	AnalysisRecord
	Score float64 `json:"score"`
}

// Merge 类型化合并，字段集合固定，Score 留给评分引擎
func Merge(repo RepositoryRecord, analysis AnalysisRecord) ScoredProject {
	return ScoredProject{
		RepositoryRecord: repo.Clone(),
		AnalysisRecord:   analysis.WithDefaults(),
	}
}

// WithScore 返回带评分的副本 (负分按 0 处理)
func (p ScoredProject) WithScore(score float64) ScoredProject {
	if score < 0 {
		score = 0
	}
	p.Score = score
	return p
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneIntMap(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneFloatMap(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
