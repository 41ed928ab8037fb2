// Package ranking 对评分后的项目排序并截取前 K 个
package ranking

import (
	"sort"

	"portfolio-miner/internal/domain"
)

// DefaultTopK 默认选出的项目数
const DefaultTopK = 4

// RankAndSelect 按分数降序排序后取前 k 个，不修改输入
// 分数相同时按 FullName 升序，再按 ID 升序；k <= 0 返回空列表
func RankAndSelect(projects []domain.ScoredProject, k int) []domain.ScoredProject {
	if k <= 0 || len(projects) == 0 {
		return []domain.ScoredProject{}
	}

	sorted := make([]domain.ScoredProject, len(projects))
	copy(sorted, projects)
	sort.SliceStable(sorted, func(i, j int) bool {
		return less(sorted[i], sorted[j])
	})

	if k > len(sorted) {
		k = len(sorted)
	}
	return sorted[:k:k]
}

func less(a, b domain.ScoredProject) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.FullName != b.FullName {
		return a.FullName < b.FullName
	}
	return a.ID < b.ID
}
